// Package gpumock is an in-memory fake of gpu.Commands so the
// resource-lifecycle and render-orchestrator packages can be unit
// tested without a real GL context, the same way the teacher keeps
// all real GL calls isolated behind a single context boundary
// (glfwcontext is "the ONLY package in the project that should
// import glfw").
package gpumock

import (
	"fmt"

	"github.com/shadermp/engine/gpu"
)

// Call records one invocation for assertions in tests that care about
// call sequencing (e.g. "Image pass renders last").
type Call struct {
	Name string
	Args []interface{}
}

// Mock implements gpu.Commands by recording state in plain maps; it
// never touches any real graphics API.
type Mock struct {
	Calls []Call

	nextHandle      uint32
	textures        map[gpu.Texture]*textureState
	framebuffers    map[gpu.Framebuffer]*framebufferState
	programs        map[gpu.Program]bool
	uniformValues   map[gpu.UniformLocation]gpu.UniformValue
	currentFBO      gpu.Framebuffer
	currentProgram  gpu.Program
	boundUnits      map[int]gpu.Texture
	timerQueries    map[gpu.TimerQuery]*timerState
	nextTimerNanos  uint64
	failLinkProgram bool
	// FailCompileContaining makes CompileShader report a compile error for any
	// source containing this substring. Empty disables the feature.
	FailCompileContaining string
}

type textureState struct {
	width, height int
	format        gpu.TextureFormat
	minFilter     gpu.Filter
	magFilter     gpu.Filter
	wrapS, wrapT  gpu.Wrap
	mipmapsGenerated int
	pixels        []byte
}

type framebufferState struct {
	complete bool
	color    gpu.Texture
}

type timerState struct {
	available bool
	nanos     uint64
}

// New returns a ready-to-use Mock.
func New() *Mock {
	return &Mock{
		textures:      make(map[gpu.Texture]*textureState),
		framebuffers:  make(map[gpu.Framebuffer]*framebufferState),
		programs:      make(map[gpu.Program]bool),
		uniformValues: make(map[gpu.UniformLocation]gpu.UniformValue),
		boundUnits:    make(map[int]gpu.Texture),
		timerQueries:  make(map[gpu.TimerQuery]*timerState),
	}
}

func (m *Mock) record(name string, args ...interface{}) {
	m.Calls = append(m.Calls, Call{Name: name, Args: args})
}

func (m *Mock) handle() uint32 {
	m.nextHandle++
	return m.nextHandle
}

func (m *Mock) CompileShader(source string, stage gpu.ShaderStage) (uint32, string, error) {
	m.record("CompileShader", stage)
	if m.FailCompileContaining != "" && containsSubstring(source, m.FailCompileContaining) {
		return 0, "mock compile error: found " + m.FailCompileContaining, fmt.Errorf("compile failed")
	}
	return m.handle(), "", nil
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func (m *Mock) LinkProgram(vertex, fragment uint32) (gpu.Program, string, error) {
	m.record("LinkProgram", vertex, fragment)
	if m.failLinkProgram {
		return 0, "mock link error", fmt.Errorf("link failed")
	}
	p := gpu.Program(m.handle())
	m.programs[p] = true
	return p, "", nil
}

func (m *Mock) DeleteShader(handle uint32) { m.record("DeleteShader", handle) }
func (m *Mock) DeleteProgram(p gpu.Program) {
	m.record("DeleteProgram", p)
	delete(m.programs, p)
}
func (m *Mock) UseProgram(p gpu.Program) {
	m.record("UseProgram", p)
	m.currentProgram = p
}

func (m *Mock) UniformLocationOf(p gpu.Program, name string) gpu.UniformLocation {
	// Deterministic non-negative location per name so tests can assert
	// on "present" vs "-1" without caring about the exact number.
	if name == "" {
		return gpu.NoLocation
	}
	h := uint32(0)
	for _, c := range name {
		h = h*31 + uint32(c)
	}
	return gpu.UniformLocation(h % 4096)
}

func (m *Mock) SetUniform(loc gpu.UniformLocation, v gpu.UniformValue) {
	m.record("SetUniform", loc, v)
	m.uniformValues[loc] = v
}

func (m *Mock) CreateTexture(width, height int, format gpu.TextureFormat) gpu.Texture {
	t := gpu.Texture(m.handle())
	m.textures[t] = &textureState{width: width, height: height, format: format}
	m.record("CreateTexture", t, width, height, format)
	return t
}

func (m *Mock) ResizeTexture(t gpu.Texture, width, height int, format gpu.TextureFormat) {
	m.record("ResizeTexture", t, width, height, format)
	if st, ok := m.textures[t]; ok {
		st.width, st.height, st.format = width, height, format
	}
}

func (m *Mock) SetTextureFilter(t gpu.Texture, minFilter, magFilter gpu.Filter) {
	m.record("SetTextureFilter", t, minFilter, magFilter)
	if st, ok := m.textures[t]; ok {
		st.minFilter, st.magFilter = minFilter, magFilter
	}
}

func (m *Mock) SetTextureWrap(t gpu.Texture, s, tw gpu.Wrap) {
	m.record("SetTextureWrap", t, s, tw)
	if st, ok := m.textures[t]; ok {
		st.wrapS, st.wrapT = s, tw
	}
}

func (m *Mock) UploadTexture2D(t gpu.Texture, width, height int, format gpu.TextureFormat, pixels []byte) {
	m.record("UploadTexture2D", t, width, height, format)
	if st, ok := m.textures[t]; ok {
		st.width, st.height, st.format = width, height, format
		st.pixels = pixels
	}
}

func (m *Mock) GenerateMipmap(t gpu.Texture) {
	m.record("GenerateMipmap", t)
	if st, ok := m.textures[t]; ok {
		st.mipmapsGenerated++
	}
}

// MipmapGenerationCount returns how many times GenerateMipmap was
// called for t, for tests asserting mipmap-regen-every-frame behavior.
func (m *Mock) MipmapGenerationCount(t gpu.Texture) int {
	if st, ok := m.textures[t]; ok {
		return st.mipmapsGenerated
	}
	return 0
}

// TextureFilterOf exposes the current filter for assertions.
func (m *Mock) TextureFilterOf(t gpu.Texture) (min, mag gpu.Filter) {
	if st, ok := m.textures[t]; ok {
		return st.minFilter, st.magFilter
	}
	return 0, 0
}

func (m *Mock) DeleteTexture(t gpu.Texture) {
	m.record("DeleteTexture", t)
	delete(m.textures, t)
}

func (m *Mock) BindTextureUnit(unit int, t gpu.Texture) {
	m.record("BindTextureUnit", unit, t)
	m.boundUnits[unit] = t
}

// BoundTextureUnit exposes what is currently bound to unit, for tests.
func (m *Mock) BoundTextureUnit(unit int) gpu.Texture { return m.boundUnits[unit] }

func (m *Mock) CreateFramebuffer() gpu.Framebuffer {
	f := gpu.Framebuffer(m.handle())
	m.framebuffers[f] = &framebufferState{complete: true}
	m.record("CreateFramebuffer", f)
	return f
}

func (m *Mock) DeleteFramebuffer(f gpu.Framebuffer) {
	m.record("DeleteFramebuffer", f)
	delete(m.framebuffers, f)
}

func (m *Mock) AttachColorTexture(f gpu.Framebuffer, t gpu.Texture) {
	m.record("AttachColorTexture", f, t)
	if fb, ok := m.framebuffers[f]; ok {
		fb.color = t
		fb.complete = true
	}
}

func (m *Mock) FramebufferComplete(f gpu.Framebuffer) bool {
	if fb, ok := m.framebuffers[f]; ok {
		return fb.complete
	}
	return f == 0 // default framebuffer is always "complete"
}

func (m *Mock) BindFramebuffer(f gpu.Framebuffer) {
	m.record("BindFramebuffer", f)
	m.currentFBO = f
}

func (m *Mock) CurrentFramebuffer() gpu.Framebuffer {
	return m.currentFBO
}

func (m *Mock) CreateQuad(vertices []float32) gpu.VertexArray {
	v := gpu.VertexArray(m.handle())
	m.record("CreateQuad", v, len(vertices))
	return v
}

func (m *Mock) BindQuad(v gpu.VertexArray) { m.record("BindQuad", v) }
func (m *Mock) DeleteQuad(v gpu.VertexArray) { m.record("DeleteQuad", v) }
func (m *Mock) DrawQuad()                    { m.record("DrawQuad") }

func (m *Mock) SetDepthTest(enabled bool)    { m.record("SetDepthTest", enabled) }
func (m *Mock) SetBlend(enabled bool)        { m.record("SetBlend", enabled) }
func (m *Mock) SetCullFace(enabled bool)     { m.record("SetCullFace", enabled) }
func (m *Mock) SetScissorTest(enabled bool)  { m.record("SetScissorTest", enabled) }
func (m *Mock) SetDepthMask(enabled bool)    { m.record("SetDepthMask", enabled) }
func (m *Mock) SetColorMask(r, g, b, a bool) { m.record("SetColorMask", r, g, b, a) }
func (m *Mock) SetViewport(x, y, width, height int) {
	m.record("SetViewport", x, y, width, height)
}
func (m *Mock) ClearColor(r, g, b, a float32) { m.record("ClearColor", r, g, b, a) }
func (m *Mock) Clear()                        { m.record("Clear") }

func (m *Mock) CreateTimerQuery() gpu.TimerQuery {
	q := gpu.TimerQuery(m.handle())
	m.timerQueries[q] = &timerState{}
	return q
}
func (m *Mock) DeleteTimerQuery(q gpu.TimerQuery) { delete(m.timerQueries, q) }
func (m *Mock) BeginTimerQuery(q gpu.TimerQuery)  { m.record("BeginTimerQuery", q) }
func (m *Mock) EndTimerQuery()                    { m.record("EndTimerQuery") }

func (m *Mock) TimerQueryResultAvailable(q gpu.TimerQuery) bool {
	ts, ok := m.timerQueries[q]
	return ok && ts.available
}

func (m *Mock) TimerQueryResultNanoseconds(q gpu.TimerQuery) uint64 {
	if ts, ok := m.timerQueries[q]; ok {
		return ts.nanos
	}
	return 0
}

func (m *Mock) SupportsTimerQueries() bool { return true }

// CompleteTimerQuery is a test hook simulating the GPU finishing an
// asynchronous timer query with the given elapsed time.
func (m *Mock) CompleteTimerQuery(q gpu.TimerQuery, nanos uint64) {
	if ts, ok := m.timerQueries[q]; ok {
		ts.available = true
		ts.nanos = nanos
	}
}

// SetFailLinkProgram makes every LinkProgram call fail while fail is
// true, for testing CompileError propagation.
func (m *Mock) SetFailLinkProgram(fail bool) { m.failLinkProgram = fail }

var _ gpu.Commands = (*Mock)(nil)
