package channels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadermp/engine/channels"
	"github.com/shadermp/engine/passparse"
)

func TestChannelNeverMentionedBindsNoise(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ c = vec4(1.0); }`
	got := channels.Infer(src, false)
	for i, s := range got {
		assert.Equal(t, channels.Noise, s.Kind, "channel %d", i)
	}
}

func TestNoiseAtlasDivideByPowerOfTwoBindsNoise(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ c = vec4(texture(iChannel0, p/1024.0).x); }`
	got := channels.Infer(src, false)
	assert.Equal(t, channels.Noise, got[0].Kind)
}

func TestSelfFeedbackMixBindsSelfOnChannel0(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ vec2 uv=p/iResolution.xy; c = mix(texture(iChannel0, uv), vec4(1.0), 0.02); }`
	got := channels.Infer(src, false)
	assert.Equal(t, channels.Self, got[0].Kind)
}

func TestBufferSamplingOnChannel1BindsBufferA(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ vec2 uv = p/iResolution.xy; c = texture(iChannel1, uv); }`
	got := channels.Infer(src, false)
	assert.Equal(t, channels.Buffer, got[1].Kind)
	assert.Equal(t, passparse.BufferA, got[1].Buffer)
}

func TestImagePassChannelsAreHardWiredToBuffersRegardlessOfContent(t *testing.T) {
	src := `void mainImage(out vec4 c, in vec2 p){ c = texture(iChannel0, p/1024.0); }`
	got := channels.Infer(src, true)
	want := []passparse.PassType{passparse.BufferA, passparse.BufferB, passparse.BufferC, passparse.BufferD}
	for i, s := range got {
		assert.Equal(t, channels.Buffer, s.Kind, "channel %d", i)
		assert.Equal(t, want[i], s.Buffer, "channel %d", i)
	}
}
