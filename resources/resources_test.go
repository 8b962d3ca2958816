package resources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadermp/engine/capability"
	"github.com/shadermp/engine/gpu/gpumock"
	"github.com/shadermp/engine/passparse"
	"github.com/shadermp/engine/resources"
	"github.com/shadermp/engine/wrapper"
)

const singlePassSrc = `
void mainImage(out vec4 fragColor, in vec2 fragCoord) {
	fragColor = vec4(1.0);
}
`

const multipassSrc = `
// Buffer A
void mainImage(out vec4 fragColor, in vec2 fragCoord) {
	vec2 uv = fragCoord / iResolution.xy;
	fragColor = texture(iChannel0, uv);
}

// Image
void mainImage(out vec4 fragColor, in vec2 fragCoord) {
	vec2 uv = fragCoord / iResolution.xy;
	fragColor = texture(iChannel0, uv);
}
`

// renamingTranslator fakes a translator that renames iTime, the way
// the real ANGLE-backed translator is free to, so tests can assert
// that the uniform location query follows the rename instead of
// assuming the source name survives translation.
type renamingTranslator struct{}

func (renamingTranslator) Translate(source string, _ capability.OutputProfile) (string, error) {
	return source, nil
}

func (renamingTranslator) MappedName(sourceName string) (string, bool) {
	if sourceName == "iTime" {
		return "_utime42", true
	}
	return "", false
}

var _ wrapper.Translator = renamingTranslator{}
var _ wrapper.NameMapper = renamingTranslator{}

func newAttached(t *testing.T, src string) (*resources.MultipassShader, *gpumock.Mock) {
	t.Helper()
	m, err := resources.New(src)
	require.NoError(t, err)
	mock := gpumock.New()
	m.Attach(mock, wrapper.PassThroughTranslator{}, capability.ProfileGLSL330)
	return m, mock
}

func TestNewSinglePassIsImageOnly(t *testing.T) {
	m, err := resources.New(singlePassSrc)
	require.NoError(t, err)
	require.Len(t, m.Passes, 1)
	assert.Equal(t, passparse.Image, m.Passes[0].Type)
	assert.Equal(t, 0, m.ImagePassIndex)
}

func TestNewMultipassResolvesBufferProducer(t *testing.T) {
	m, err := resources.New(multipassSrc)
	require.NoError(t, err)
	require.Len(t, m.Passes, 2)

	bufferA := m.Passes[0]
	image := m.Passes[1]
	assert.Equal(t, passparse.BufferA, bufferA.Type)
	assert.Equal(t, passparse.Image, image.Type)

	// Image pass channel 0 is hard-wired to BufferA regardless of
	// scoring, and BufferA exists at index 0.
	assert.Equal(t, 0, image.ChannelBufferIndex[0])
}

func TestNewMissingBufferProducerFallsBackToNoProducer(t *testing.T) {
	m, err := resources.New(singlePassSrc)
	require.NoError(t, err)
	image := m.Passes[0]
	// Image pass always hard-wires to BufferA..D; none of those passes
	// exist in a single-pass shader, so every channel falls back.
	for c := 0; c < 4; c++ {
		assert.Equal(t, -1, image.ChannelBufferIndex[c])
	}
}

func TestCompileAllSucceedsAndResolvesUniforms(t *testing.T) {
	m, _ := newAttached(t, singlePassSrc)
	err := m.CompileAll()
	require.NoError(t, err)
	assert.NoError(t, m.Passes[0].CompileError)
	assert.NotZero(t, m.Passes[0].Program)
}

func TestCompileAllRecordsNoErrorWhenNoCompileFails(t *testing.T) {
	m, mock := newAttached(t, multipassSrc)
	mock.FailCompileContaining = "Buffer A marker never present so fail nothing"
	err := m.CompileAll()
	require.NoError(t, err)
	for _, p := range m.Passes {
		assert.NoError(t, p.CompileError)
	}
}

func TestCompileFailureOnOnePassDoesNotDeallocateOthers(t *testing.T) {
	m, mock := newAttached(t, multipassSrc)
	mock.SetFailLinkProgram(false)
	require.NoError(t, m.CompilePass(0))
	assert.NoError(t, m.Passes[0].CompileError)

	mock.SetFailLinkProgram(true)
	require.NoError(t, m.CompilePass(1))
	assert.Error(t, m.Passes[1].CompileError)

	// Pass 0's program must remain valid and untouched.
	assert.NotZero(t, m.Passes[0].Program)
}

func TestCompilePassHonorsTranslatorRenamedUniforms(t *testing.T) {
	plain, err := resources.New(singlePassSrc)
	require.NoError(t, err)
	plainMock := gpumock.New()
	plain.Attach(plainMock, wrapper.PassThroughTranslator{}, capability.ProfileGLSL330)
	require.NoError(t, plain.CompileAll())

	renamed, err := resources.New(singlePassSrc)
	require.NoError(t, err)
	renamedMock := gpumock.New()
	renamed.Attach(renamedMock, renamingTranslator{}, capability.ProfileGLSL330)
	require.NoError(t, renamed.CompileAll())

	// gpumock.UniformLocationOf derives a location deterministically
	// from the queried name, so honoring the rename must produce a
	// different iTime location than querying the unrenamed name.
	assert.NotEqual(t, plain.Passes[0].Uniforms.Time, renamed.Passes[0].Uniforms.Time)
}

func TestInitGLAllocatesBufferPassFBOsNotImage(t *testing.T) {
	m, _ := newAttached(t, multipassSrc)
	require.NoError(t, m.InitGL(800, 600))

	bufferA := m.Passes[0]
	image := m.Passes[1]

	assert.NotZero(t, bufferA.FBO)
	assert.NotZero(t, bufferA.Textures[0])
	assert.NotZero(t, bufferA.Textures[1])
	assert.Zero(t, image.FBO)
	assert.Equal(t, 800, image.Width)
	assert.Equal(t, 600, image.Height)
}

func TestSetScaleAffectsOnlyBufferPassSize(t *testing.T) {
	m, _ := newAttached(t, multipassSrc)
	m.SetScale(0.5)
	require.NoError(t, m.InitGL(800, 600))

	bufferA := m.Passes[0]
	image := m.Passes[1]

	assert.Equal(t, 400, bufferA.Width)
	assert.Equal(t, 300, bufferA.Height)
	assert.Equal(t, 800, image.Width)
	assert.Equal(t, 600, image.Height)
}

func TestPassResolverOverridesUniformScalingPerPass(t *testing.T) {
	m, _ := newAttached(t, multipassSrc)
	m.SetPassResolver(func(i, baseW, baseH int) (int, int) {
		if i == 0 {
			return 32, 32 // e.g. a NoiseOnly-classified buffer pass
		}
		return baseW, baseH
	})
	require.NoError(t, m.InitGL(800, 600))

	bufferA := m.Passes[0]
	image := m.Passes[1]

	assert.Equal(t, 32, bufferA.Width)
	assert.Equal(t, 32, bufferA.Height)
	assert.Equal(t, 800, image.Width)
	assert.Equal(t, 600, image.Height)

	m.SetPassResolver(func(i, baseW, baseH int) (int, int) {
		if i == 0 {
			return 64, 64
		}
		return baseW, baseH
	})
	m.Resize(800, 600)
	assert.Equal(t, 64, bufferA.Width)
	assert.Equal(t, 64, bufferA.Height)
}

func TestResizeReallocatesOnlyChangedPasses(t *testing.T) {
	m, mock := newAttached(t, multipassSrc)
	require.NoError(t, m.InitGL(800, 600))

	before := len(mock.Calls)
	m.Resize(800, 600) // no-op, nothing changed size
	assert.Equal(t, before, len(mock.Calls))

	m.Resize(1600, 1200)
	bufferA := m.Passes[0]
	assert.Equal(t, 1600, bufferA.Width)
	assert.Equal(t, 1200, bufferA.Height)
	assert.True(t, bufferA.NeedsClear)
}

func TestDestroyReleasesEveryOwnedObject(t *testing.T) {
	m, mock := newAttached(t, multipassSrc)
	require.NoError(t, m.InitGL(400, 300))
	require.NoError(t, m.CompileAll())

	m.Destroy()

	var deletes int
	for _, c := range mock.Calls {
		switch c.Name {
		case "DeleteProgram", "DeleteFramebuffer", "DeleteTexture", "DeleteQuad":
			deletes++
		}
	}
	assert.Greater(t, deletes, 0)
}
