// Package gpu declares the small, surface-agnostic GPU command
// interface the engine core requires from its host, per spec.md §6.
// Everything outside this package and its implementations (glhost,
// gpumock) is portable memory and arithmetic — no concrete graphics
// API is ever named above this boundary.
package gpu

// TextureFormat enumerates the pixel storage formats this engine
// uses. RGBA8 backs the noise texture; RGBA16F backs buffer-pass
// ping-pong pairs (spec.md §3 "RGBA-half-float").
type TextureFormat int

const (
	RGBA8 TextureFormat = iota
	RGBA16F
)

// Filter enumerates the minification/magnification filters a texture
// can use.
type Filter int

const (
	Nearest Filter = iota
	Linear
	LinearMipmapLinear
)

// Wrap enumerates texture wrap modes.
type Wrap int

const (
	Repeat Wrap = iota
	ClampToEdge
)

// ShaderStage identifies a compiled shader object's stage.
type ShaderStage int

const (
	VertexStage ShaderStage = iota
	FragmentStage
)

// UniformValue is a tagged union of every uniform shape the render
// loop uploads. Exactly one field is meaningful per Kind.
type UniformValue struct {
	Kind  UniformKind
	F1    float32
	F2    [2]float32
	F3    [3]float32
	F4    [4]float32
	I1    int32
	FV    []float32 // flattened array upload (e.g. iChannelResolution[4])
	Count int32      // element count for array uploads
}

type UniformKind int

const (
	Float1 UniformKind = iota
	Float2
	Float3
	Float4
	Int1
	Float3Array
	Float1Array
)

// Texture is an opaque handle to a 2D texture object.
type Texture uint32

// Framebuffer is an opaque handle to a framebuffer object. The zero
// value denotes the host's default (on-screen) framebuffer.
type Framebuffer uint32

// Program is an opaque handle to a linked shader program.
type Program uint32

// VertexArray is an opaque handle to a vertex array object.
type VertexArray uint32

// TimerQuery is an opaque handle to a GPU timer query object.
type TimerQuery uint32

// UniformLocation is an opaque per-program uniform slot. A value of
// -1 means "this uniform is not present in the program" (spec.md §3).
type UniformLocation int32

const NoLocation UniformLocation = -1

// Commands is the GPU command set the host must implement. It is the
// engine's only coupling to a concrete graphics API (spec.md §6).
type Commands interface {
	// Program lifecycle.
	CompileShader(source string, stage ShaderStage) (uint32, string, error)
	LinkProgram(vertex, fragment uint32) (Program, string, error)
	DeleteShader(handle uint32)
	DeleteProgram(p Program)
	UseProgram(p Program)
	UniformLocationOf(p Program, name string) UniformLocation
	SetUniform(loc UniformLocation, v UniformValue)

	// Texture lifecycle.
	CreateTexture(width, height int, format TextureFormat) Texture
	ResizeTexture(t Texture, width, height int, format TextureFormat)
	SetTextureFilter(t Texture, minFilter, magFilter Filter)
	SetTextureWrap(t Texture, s, tw Wrap)
	UploadTexture2D(t Texture, width, height int, format TextureFormat, pixels []byte)
	GenerateMipmap(t Texture)
	DeleteTexture(t Texture)
	BindTextureUnit(unit int, t Texture)

	// Framebuffer lifecycle.
	CreateFramebuffer() Framebuffer
	DeleteFramebuffer(f Framebuffer)
	AttachColorTexture(f Framebuffer, t Texture)
	FramebufferComplete(f Framebuffer) bool
	BindFramebuffer(f Framebuffer)
	CurrentFramebuffer() Framebuffer

	// Vertex buffer / quad geometry.
	CreateQuad(vertices []float32) VertexArray
	BindQuad(v VertexArray)
	DeleteQuad(v VertexArray)
	DrawQuad()

	// Fixed-function state (elided by statecache before reaching here
	// in the common case, but always safe to call redundantly).
	SetDepthTest(enabled bool)
	SetBlend(enabled bool)
	SetCullFace(enabled bool)
	SetScissorTest(enabled bool)
	SetDepthMask(enabled bool)
	SetColorMask(r, g, b, a bool)
	SetViewport(x, y, width, height int)
	ClearColor(r, g, b, a float32)
	Clear()

	// Timer queries (§4.8, §9 "double-buffered handles").
	CreateTimerQuery() TimerQuery
	DeleteTimerQuery(q TimerQuery)
	BeginTimerQuery(q TimerQuery)
	EndTimerQuery()
	TimerQueryResultAvailable(q TimerQuery) bool
	TimerQueryResultNanoseconds(q TimerQuery) uint64
	SupportsTimerQueries() bool
}
