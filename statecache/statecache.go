// Package statecache wraps gpu.Commands with a redundant-call-eliding
// cache (spec.md §4.10). The teacher issues every GL call
// unconditionally every pass (renderer.go's RenderFrame always calls
// gl.UseProgram/gl.Viewport/etc regardless of whether the value
// changed) — this package is grounded on the absence of such a cache
// there, built in the teacher's plain-struct-around-an-interface
// style.
package statecache

import (
	"math"

	"github.com/shadermp/engine/gpu"
)

const uniformEpsilon = 1e-4

// Stats counts attempted vs avoided calls per class, per spec.md
// §4.10's closing sentence.
type Stats struct {
	Attempted map[string]int
	Avoided   map[string]int
}

func newStats() Stats {
	return Stats{Attempted: map[string]int{}, Avoided: map[string]int{}}
}

// Reset zeroes every counter without forgetting the current cached
// state (so the next redundant call is still correctly elided).
func (s *Stats) Reset() {
	s.Attempted = map[string]int{}
	s.Avoided = map[string]int{}
}

type fixedFunctionState struct {
	depthTest, blend, cullFace, scissorTest bool
	depthMask                               bool
	colorMaskR, colorMaskG, colorMaskB, colorMaskA bool
	clearR, clearG, clearB, clearA float32
	viewportX, viewportY, viewportW, viewportH int
	haveViewport bool
	haveClear bool
	haveDepthMask bool
}

// Cache decorates a gpu.Commands with state tracking. It implements
// gpu.Commands itself so callers can use it as a drop-in replacement
// for the raw host implementation.
type Cache struct {
	inner gpu.Commands
	Stats Stats

	haveProgram bool
	program     gpu.Program
	haveVAO     bool
	vao         gpu.VertexArray
	haveFBO     bool
	fbo         gpu.Framebuffer
	activeUnit  int
	haveActiveUnit bool
	boundTexture map[int]gpu.Texture

	ff fixedFunctionState

	uniformValues map[cacheKey]gpu.UniformValue
}

type cacheKey struct {
	program gpu.Program
	loc     gpu.UniformLocation
}

// New wraps inner with a fresh, empty cache.
func New(inner gpu.Commands) *Cache {
	return &Cache{
		inner:         inner,
		Stats:         newStats(),
		boundTexture:  map[int]gpu.Texture{},
		uniformValues: map[cacheKey]gpu.UniformValue{},
	}
}

func (c *Cache) attempt(class string)         { c.Stats.Attempted[class]++ }
func (c *Cache) avoid(class string)           { c.Stats.Avoided[class]++ }

// UseProgram elides a redundant bind of the already-current program.
func (c *Cache) UseProgram(p gpu.Program) {
	c.attempt("program")
	if c.haveProgram && c.program == p {
		c.avoid("program")
		return
	}
	c.haveProgram, c.program = true, p
	c.inner.UseProgram(p)
}

// BindQuad elides a redundant VAO bind.
func (c *Cache) BindQuad(v gpu.VertexArray) {
	c.attempt("vao")
	if c.haveVAO && c.vao == v {
		c.avoid("vao")
		return
	}
	c.haveVAO, c.vao = true, v
	c.inner.BindQuad(v)
}

// BindFramebuffer elides a redundant FBO bind.
func (c *Cache) BindFramebuffer(f gpu.Framebuffer) {
	c.attempt("fbo")
	if c.haveFBO && c.fbo == f {
		c.avoid("fbo")
		return
	}
	c.haveFBO, c.fbo = true, f
	c.inner.BindFramebuffer(f)
}

func (c *Cache) CurrentFramebuffer() gpu.Framebuffer { return c.inner.CurrentFramebuffer() }

// BindTextureUnit elides a redundant bind of the same texture to the
// same unit. The wrapped Commands interface models unit activation and
// bind as one call, so an elided bind issues no call at all.
func (c *Cache) BindTextureUnit(unit int, t gpu.Texture) {
	c.attempt("texture")
	if bound, ok := c.boundTexture[unit]; ok && bound == t {
		c.avoid("texture")
		return
	}
	c.boundTexture[unit] = t
	c.inner.BindTextureUnit(unit, t)
}

func (c *Cache) SetDepthTest(enabled bool) {
	c.attempt("fixed-function")
	if c.ff.depthTest == enabled {
		c.avoid("fixed-function")
		return
	}
	c.ff.depthTest = enabled
	c.inner.SetDepthTest(enabled)
}

func (c *Cache) SetBlend(enabled bool) {
	c.attempt("fixed-function")
	if c.ff.blend == enabled {
		c.avoid("fixed-function")
		return
	}
	c.ff.blend = enabled
	c.inner.SetBlend(enabled)
}

func (c *Cache) SetCullFace(enabled bool) {
	c.attempt("fixed-function")
	if c.ff.cullFace == enabled {
		c.avoid("fixed-function")
		return
	}
	c.ff.cullFace = enabled
	c.inner.SetCullFace(enabled)
}

func (c *Cache) SetScissorTest(enabled bool) {
	c.attempt("fixed-function")
	if c.ff.scissorTest == enabled {
		c.avoid("fixed-function")
		return
	}
	c.ff.scissorTest = enabled
	c.inner.SetScissorTest(enabled)
}

func (c *Cache) SetDepthMask(enabled bool) {
	c.attempt("depth-mask")
	if c.ff.haveDepthMask && c.ff.depthMask == enabled {
		c.avoid("depth-mask")
		return
	}
	c.ff.haveDepthMask = true
	c.ff.depthMask = enabled
	c.inner.SetDepthMask(enabled)
}

func (c *Cache) SetColorMask(r, g, b, a bool) {
	c.attempt("color-mask")
	if c.ff.colorMaskR == r && c.ff.colorMaskG == g && c.ff.colorMaskB == b && c.ff.colorMaskA == a {
		c.avoid("color-mask")
		return
	}
	c.ff.colorMaskR, c.ff.colorMaskG, c.ff.colorMaskB, c.ff.colorMaskA = r, g, b, a
	c.inner.SetColorMask(r, g, b, a)
}

func (c *Cache) SetViewport(x, y, width, height int) {
	c.attempt("viewport")
	if c.ff.haveViewport && c.ff.viewportX == x && c.ff.viewportY == y && c.ff.viewportW == width && c.ff.viewportH == height {
		c.avoid("viewport")
		return
	}
	c.ff.haveViewport = true
	c.ff.viewportX, c.ff.viewportY, c.ff.viewportW, c.ff.viewportH = x, y, width, height
	c.inner.SetViewport(x, y, width, height)
}

func (c *Cache) ClearColor(r, g, b, a float32) {
	c.attempt("clear-color")
	if c.ff.haveClear && c.ff.clearR == r && c.ff.clearG == g && c.ff.clearB == b && c.ff.clearA == a {
		c.avoid("clear-color")
		return
	}
	c.ff.haveClear = true
	c.ff.clearR, c.ff.clearG, c.ff.clearB, c.ff.clearA = r, g, b, a
	c.inner.ClearColor(r, g, b, a)
}

func (c *Cache) Clear() { c.inner.Clear() }

// SetUniform elides re-uploading a per-program uniform value that is
// within uniformEpsilon of the last value uploaded for that program
// and location (spec.md §4.10).
func (c *Cache) SetUniform(loc gpu.UniformLocation, v gpu.UniformValue) {
	c.attempt("uniform")
	key := cacheKey{program: c.program, loc: loc}
	if prev, ok := c.uniformValues[key]; ok && uniformValuesEqual(prev, v) {
		c.avoid("uniform")
		return
	}
	c.uniformValues[key] = v
	c.inner.SetUniform(loc, v)
}

func uniformValuesEqual(a, b gpu.UniformValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case gpu.Float1:
		return closeEnough(a.F1, b.F1)
	case gpu.Float2:
		return closeEnough(a.F2[0], b.F2[0]) && closeEnough(a.F2[1], b.F2[1])
	case gpu.Float3:
		return closeEnough(a.F3[0], b.F3[0]) && closeEnough(a.F3[1], b.F3[1]) && closeEnough(a.F3[2], b.F3[2])
	case gpu.Float4:
		return closeEnough(a.F4[0], b.F4[0]) && closeEnough(a.F4[1], b.F4[1]) && closeEnough(a.F4[2], b.F4[2]) && closeEnough(a.F4[3], b.F4[3])
	case gpu.Int1:
		return a.I1 == b.I1
	case gpu.Float3Array, gpu.Float1Array:
		if len(a.FV) != len(b.FV) {
			return false
		}
		for i := range a.FV {
			if !closeEnough(a.FV[i], b.FV[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func closeEnough(a, b float32) bool {
	return math.Abs(float64(a-b)) < uniformEpsilon
}

// Everything below passes straight through: these calls have no
// meaningful "redundant" form to elide (object creation/destruction,
// one-shot draw/compile operations, timer queries).

func (c *Cache) CompileShader(source string, stage gpu.ShaderStage) (uint32, string, error) {
	return c.inner.CompileShader(source, stage)
}
func (c *Cache) LinkProgram(vertex, fragment uint32) (gpu.Program, string, error) {
	return c.inner.LinkProgram(vertex, fragment)
}
func (c *Cache) DeleteShader(handle uint32)  { c.inner.DeleteShader(handle) }
func (c *Cache) DeleteProgram(p gpu.Program) { c.inner.DeleteProgram(p) }
func (c *Cache) UniformLocationOf(p gpu.Program, name string) gpu.UniformLocation {
	return c.inner.UniformLocationOf(p, name)
}

func (c *Cache) CreateTexture(width, height int, format gpu.TextureFormat) gpu.Texture {
	return c.inner.CreateTexture(width, height, format)
}
func (c *Cache) ResizeTexture(t gpu.Texture, width, height int, format gpu.TextureFormat) {
	c.inner.ResizeTexture(t, width, height, format)
}
func (c *Cache) SetTextureFilter(t gpu.Texture, minFilter, magFilter gpu.Filter) {
	c.inner.SetTextureFilter(t, minFilter, magFilter)
}
func (c *Cache) SetTextureWrap(t gpu.Texture, s, tw gpu.Wrap) { c.inner.SetTextureWrap(t, s, tw) }
func (c *Cache) UploadTexture2D(t gpu.Texture, width, height int, format gpu.TextureFormat, pixels []byte) {
	c.inner.UploadTexture2D(t, width, height, format, pixels)
}
func (c *Cache) GenerateMipmap(t gpu.Texture) { c.inner.GenerateMipmap(t) }
func (c *Cache) DeleteTexture(t gpu.Texture)  { c.inner.DeleteTexture(t) }

func (c *Cache) CreateFramebuffer() gpu.Framebuffer { return c.inner.CreateFramebuffer() }
func (c *Cache) DeleteFramebuffer(f gpu.Framebuffer) { c.inner.DeleteFramebuffer(f) }
func (c *Cache) AttachColorTexture(f gpu.Framebuffer, t gpu.Texture) {
	c.inner.AttachColorTexture(f, t)
}
func (c *Cache) FramebufferComplete(f gpu.Framebuffer) bool { return c.inner.FramebufferComplete(f) }

func (c *Cache) CreateQuad(vertices []float32) gpu.VertexArray { return c.inner.CreateQuad(vertices) }
func (c *Cache) DeleteQuad(v gpu.VertexArray)                  { c.inner.DeleteQuad(v) }
func (c *Cache) DrawQuad()                                     { c.inner.DrawQuad() }

func (c *Cache) CreateTimerQuery() gpu.TimerQuery         { return c.inner.CreateTimerQuery() }
func (c *Cache) DeleteTimerQuery(q gpu.TimerQuery)        { c.inner.DeleteTimerQuery(q) }
func (c *Cache) BeginTimerQuery(q gpu.TimerQuery)         { c.inner.BeginTimerQuery(q) }
func (c *Cache) EndTimerQuery()                           { c.inner.EndTimerQuery() }
func (c *Cache) TimerQueryResultAvailable(q gpu.TimerQuery) bool {
	return c.inner.TimerQueryResultAvailable(q)
}
func (c *Cache) TimerQueryResultNanoseconds(q gpu.TimerQuery) uint64 {
	return c.inner.TimerQueryResultNanoseconds(q)
}
func (c *Cache) SupportsTimerQueries() bool { return c.inner.SupportsTimerQueries() }

var _ gpu.Commands = (*Cache)(nil)
