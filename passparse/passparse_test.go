package passparse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadermp/engine/passparse"
)

func TestSinglePassIsImage(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ c = vec4(p/iResolution.xy, 0, 1); }`
	res, err := passparse.Parse(src)
	require.NoError(t, err)
	assert.False(t, res.IsMultipass)
	require.Len(t, res.Passes, 1)
	assert.Equal(t, passparse.Image, res.Passes[0].Type)
	assert.Equal(t, src, res.Passes[0].Source)
}

func TestNoMainImageAndNoMainIsParseError(t *testing.T) {
	_, err := passparse.Parse("vec4 foo() { return vec4(1.0); }")
	assert.ErrorIs(t, err, passparse.ErrNotAShader)
}

func TestPlainMainIsSingleImagePass(t *testing.T) {
	src := `void main(){ gl_FragColor = vec4(1.0); }`
	res, err := passparse.Parse(src)
	require.NoError(t, err)
	assert.False(t, res.IsMultipass)
	assert.Equal(t, passparse.Image, res.Passes[0].Type)
}

func TestFiveMainImagesAssignBufferABCDImage(t *testing.T) {
	src := `#version 300 es
void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }
void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }
void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }
void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }
void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }
`
	res, err := passparse.Parse(src)
	require.NoError(t, err)
	assert.True(t, res.IsMultipass)
	require.Len(t, res.Passes, 5)
	want := []passparse.PassType{passparse.BufferA, passparse.BufferB, passparse.BufferC, passparse.BufferD, passparse.Image}
	for i, p := range res.Passes {
		assert.Equal(t, want[i], p.Type, "pass %d", i)
	}
	assert.Equal(t, "#version 300 es\n", res.CommonSource)
}

func TestNineMainImagesCapAtEightLastIsImage(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 9; i++ {
		b.WriteString("void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }\n")
	}
	res, err := passparse.Parse(b.String())
	require.NoError(t, err)
	require.Len(t, res.Passes, 8)
	assert.Equal(t, passparse.Image, res.Passes[7].Type)
	assert.Equal(t, passparse.BufferD, res.Passes[6].Type)
}

func TestExplicitBufferMarkerOverridesDefaultAssignment(t *testing.T) {
	src := `// Buffer A
void mainImage(out vec4 c, in vec2 p){ c = vec4(texture(iChannel0, p).x); }
// Image
void mainImage(out vec4 c, in vec2 p){ c = texture(iChannel0, p); }
`
	res, err := passparse.Parse(src)
	require.NoError(t, err)
	require.Len(t, res.Passes, 2)
	assert.Equal(t, passparse.BufferA, res.Passes[0].Type)
	assert.Equal(t, passparse.Image, res.Passes[1].Type)
}

func TestHelperCodeBetweenPassesIsAvailableToLaterPassesOnly(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ c = vec4(0); }
float helper(float x) { return x * 2.0; }
void mainImage(out vec4 c, in vec2 p){ c = vec4(helper(1.0)); }
`
	res, err := passparse.Parse(src)
	require.NoError(t, err)
	require.Len(t, res.Passes, 2)
	assert.NotContains(t, res.Passes[0].Source, "helper(float x)")
	assert.Contains(t, res.Passes[1].Source, "helper(float x)")
	// the earlier pass's own mainImage body never leaks into a later pass
	assert.Equal(t, 0, strings.Count(res.Passes[1].Source, "c = vec4(0)"))
}
