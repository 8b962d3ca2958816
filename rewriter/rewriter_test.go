package rewriter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadermp/engine/rewriter"
)

func TestChannelResolutionIndexGetsXYAppended(t *testing.T) {
	got := rewriter.Rewrite("vec2 r = iChannelResolution[0];")
	assert.Equal(t, "vec2 r = iChannelResolution[0].xy;", got)
}

func TestChannelResolutionIndexAlreadySwizzledIsNoop(t *testing.T) {
	src := "vec2 r = iChannelResolution[0].xy;"
	assert.Equal(t, src, rewriter.Rewrite(src))
}

func TestChannelResolutionIndexAlreadyIndexedIsNoop(t *testing.T) {
	src := "float r = iChannelResolution[0][0];"
	assert.Equal(t, src, rewriter.Rewrite(src))
}

func TestTextureChannelCallGetsXYWrap(t *testing.T) {
	got := rewriter.Rewrite("vec4 c = texture(iChannel0, uv);")
	assert.Equal(t, "vec4 c = texture(iChannel0, (uv).xy);", got)
}

func TestTextureChannelCallAlreadySwizzledIsNoop(t *testing.T) {
	src := "vec4 c = texture(iChannel0, uv.xy);"
	assert.Equal(t, src, rewriter.Rewrite(src))
}

func TestTextureChannelCallWithExtraArgIsHandled(t *testing.T) {
	got := rewriter.Rewrite("vec4 c = texture(iChannel0, pos, 0.0);")
	assert.Equal(t, "vec4 c = texture(iChannel0, (pos).xy, 0.0);", got)
}

func TestTextureChannelCallWithNestedParensExpr(t *testing.T) {
	got := rewriter.Rewrite("vec4 c = texture(iChannel0, fract(p * 2.0));")
	assert.Equal(t, "vec4 c = texture(iChannel0, (fract(p * 2.0)).xy);", got)
}

func TestMultipleChannelsInOneLine(t *testing.T) {
	got := rewriter.Rewrite("vec4 c = texture(iChannel0, a) + texture(iChannel1, b.xy);")
	assert.Equal(t, "vec4 c = texture(iChannel0, (a).xy) + texture(iChannel1, b.xy);", got)
}
