// Package resources owns the lifecycle of every GPU object a
// multipass shader needs: compiled programs, buffer-pass FBOs and
// ping-pong textures, the shared noise texture, and the fullscreen
// quad. Grounded on renderer.InitScene (quad + per-buffer creation)
// and inputs.NewBuffer (per-buffer FBO+texture pair), generalized from
// "buffers named in JSON" to "buffers discovered by pass parsing".
package resources

import (
	"fmt"
	"strings"

	"github.com/shadermp/engine/capability"
	"github.com/shadermp/engine/channels"
	"github.com/shadermp/engine/gpu"
	"github.com/shadermp/engine/passparse"
	"github.com/shadermp/engine/rewriter"
	"github.com/shadermp/engine/uniforms"
	"github.com/shadermp/engine/wrapper"
)

// NoiseTextureSize is the fixed extent of the built-in procedural
// noise texture (spec.md §3).
const NoiseTextureSize = 1024

// QuadVertices is the fixed fullscreen-quad geometry every pass draws
// (spec.md glossary "Fullscreen quad"): a four-vertex triangle strip
// spanning [-1,1]^2.
var QuadVertices = []float32{
	-1, -1,
	1, -1,
	-1, 1,
	1, 1,
}

// Pass is one compilable unit of the multipass pipeline (spec.md §3).
type Pass struct {
	Type   passparse.PassType
	Name   string
	Source string // extracted source, pre-wrap

	CompileError error
	Program      gpu.Program

	Channels            [4]channels.Source
	ChannelBufferIndex  [4]int // resolved producer pass index, or uniforms.NoProducer

	// Buffer-pass-only fields; zero for the Image pass.
	FBO           gpu.Framebuffer
	Textures      [2]gpu.Texture
	PingPongIndex int

	Width, Height int
	NeedsClear    bool
	NeedsMipmaps  bool

	Uniforms uniforms.Locations
}

// IsBufferPass reports whether this pass renders to an offscreen
// ping-pong texture pair rather than the display framebuffer.
func (p *Pass) IsBufferPass() bool {
	return p.Type == passparse.BufferA || p.Type == passparse.BufferB ||
		p.Type == passparse.BufferC || p.Type == passparse.BufferD
}

// ReadTexture returns the texture a reader should currently sample:
// the one most recently completed (spec.md §3 invariant).
func (p *Pass) ReadTexture() gpu.Texture {
	return p.Textures[p.PingPongIndex]
}

// WriteTexture returns the texture the next render of this pass will
// write into.
func (p *Pass) WriteTexture() gpu.Texture {
	return p.Textures[1-p.PingPongIndex]
}

// MultipassShader owns the parsed passes and every GPU object they
// share (spec.md §3). The adaptive controller, multipass optimizer,
// and render-optimizer state are owned one level up by engine.Engine,
// since in Go they are better modeled as independent collaborators
// than as fields baked into the resource-lifecycle type (spec.md §9:
// "resist the urge to merge them").
type MultipassShader struct {
	CommonSource    string
	Passes          []*Pass
	ImagePassIndex  int // -1 if none

	VAO          gpu.VertexArray
	NoiseTexture gpu.Texture

	DefaultFramebuffer gpu.Framebuffer

	FrameCounter int64

	BaseScale                float64
	ScaledWidth, ScaledHeight int

	// PassResolver, when set, overrides scaledSize's uniform scaling
	// for buffer passes with the multipass optimizer's per-pass
	// resolution hint (spec.md §3: "Buffer-pass texture extents equal
	// (pass.width, pass.height) where width,height are determined by
	// the multipass optimizer's per-pass resolution function"). Left
	// nil, every buffer pass falls back to the uniform base scale.
	PassResolver func(index, baseWidth, baseHeight int) (int, int)

	cmds       gpu.Commands
	translator wrapper.Translator
	profile    capability.OutputProfile
}

// SetPassResolver installs the per-pass resolution function the
// multipass optimizer exposes. Must be called before InitGL/Resize to
// take effect.
func (m *MultipassShader) SetPassResolver(f func(index, baseWidth, baseHeight int) (int, int)) {
	m.PassResolver = f
}

func (m *MultipassShader) passSize(i, width, height int) (int, int) {
	if m.PassResolver != nil {
		return m.PassResolver(i, width, height)
	}
	return width, height
}

// New parses src and builds an unresolved MultipassShader: passes are
// typed and channel-bound, but no GPU object exists yet (create() is
// pure, per spec.md §6).
func New(src string) (*MultipassShader, error) {
	parsed, err := passparse.Parse(src)
	if err != nil {
		return nil, err
	}

	m := &MultipassShader{
		CommonSource:   parsed.CommonSource,
		ImagePassIndex: -1,
		BaseScale:      1.0,
	}

	for _, ps := range parsed.Passes {
		rewritten := rewriter.Rewrite(ps.Source)
		pass := &Pass{
			Type:          ps.Type,
			Name:          ps.Type.String(),
			Source:        rewritten,
			PingPongIndex: 0,
			NeedsClear:    true,
		}
		m.Passes = append(m.Passes, pass)
	}

	for i, pass := range m.Passes {
		if pass.Type == passparse.Image {
			m.ImagePassIndex = i
		}
	}

	m.inferChannels()
	m.resolveProducers()

	return m, nil
}

func (m *MultipassShader) inferChannels() {
	for _, pass := range m.Passes {
		pass.Channels = channels.Infer(pass.Source, pass.Type == passparse.Image)
	}
}

// resolveProducers computes each Buffer(T) channel's concrete producer
// pass index once, per spec.md §3 invariant: if a pass of type T
// exists its index is cached, otherwise -1 (falls back to noise).
func (m *MultipassShader) resolveProducers() {
	indexOf := map[passparse.PassType]int{}
	for i, pass := range m.Passes {
		if pass.IsBufferPass() {
			indexOf[pass.Type] = i
		}
	}
	for _, pass := range m.Passes {
		for c := 0; c < 4; c++ {
			pass.ChannelBufferIndex[c] = uniforms.NoProducer
			if pass.Channels[c].Kind == channels.Buffer {
				if idx, ok := indexOf[pass.Channels[c].Buffer]; ok {
					pass.ChannelBufferIndex[c] = idx
				}
			}
		}
	}
}

// Attach binds the GPU command surface, translator, and output
// profile this shader will use for the rest of its lifetime. Must be
// called before InitGL/CompileAll.
func (m *MultipassShader) Attach(cmds gpu.Commands, t wrapper.Translator, profile capability.OutputProfile) {
	m.cmds = cmds
	m.translator = t
	m.profile = profile
}

// CompilePass compiles one pass's wrapped source and resolves its
// uniform locations. A compile/link failure is recorded on the pass
// and does not propagate: the pass is simply skipped every frame
// thereafter (spec.md §7).
func (m *MultipassShader) CompilePass(i int) error {
	pass := m.Passes[i]
	wrapped, err := wrapper.WrapAndTranslate(m.translator, m.CommonSource, pass.Source, m.profile)
	if err != nil {
		pass.CompileError = err
		return nil
	}

	vs, vsLog, err := m.cmds.CompileShader(wrapper.VertexSource, gpu.VertexStage)
	if err != nil {
		pass.CompileError = fmt.Errorf("vertex shader: %s: %w", vsLog, err)
		return nil
	}
	fs, fsLog, err := m.cmds.CompileShader(wrapped, gpu.FragmentStage)
	if err != nil {
		pass.CompileError = fmt.Errorf("fragment shader: %s: %w", fsLog, err)
		m.cmds.DeleteShader(vs)
		return nil
	}

	program, linkLog, err := m.cmds.LinkProgram(vs, fs)
	m.cmds.DeleteShader(vs)
	m.cmds.DeleteShader(fs)
	if err != nil {
		pass.CompileError = fmt.Errorf("link: %s: %w", linkLog, err)
		return nil
	}

	pass.CompileError = nil
	pass.Program = program
	pass.Uniforms = uniforms.Resolve(m.cmds, program, m.resolveUniformName)
	pass.NeedsMipmaps = strings.Contains(pass.Source, "textureLod")
	return nil
}

// resolveUniformName maps a source-level uniform name through the
// attached translator's NameMapper when it implements one (the real
// GSTTranslator does, since ANGLE is free to rename uniforms); falls
// back to the unchanged source name otherwise.
func (m *MultipassShader) resolveUniformName(sourceName string) string {
	mapper, ok := m.translator.(wrapper.NameMapper)
	if !ok {
		return sourceName
	}
	if mapped, ok := mapper.MappedName(sourceName); ok {
		return mapped
	}
	return sourceName
}

// CompileAll compiles every pass, then propagates needs-mipmaps: a
// buffer ends up needing mipmaps if it samples textureLod itself OR
// any reader of it does (spec.md §4.5).
func (m *MultipassShader) CompileAll() error {
	for i := range m.Passes {
		if err := m.CompilePass(i); err != nil {
			return err
		}
	}

	for _, reader := range m.Passes {
		if !reader.NeedsMipmaps {
			continue
		}
		for c := 0; c < 4; c++ {
			if reader.Channels[c].Kind == channels.Buffer {
				if idx := reader.ChannelBufferIndex[c]; idx != uniforms.NoProducer {
					m.Passes[idx].NeedsMipmaps = true
				}
			}
		}
	}

	for _, pass := range m.Passes {
		if pass.IsBufferPass() && pass.NeedsMipmaps && pass.Textures[0] != 0 {
			m.cmds.SetTextureFilter(pass.Textures[0], gpu.LinearMipmapLinear, gpu.Linear)
			m.cmds.SetTextureFilter(pass.Textures[1], gpu.LinearMipmapLinear, gpu.Linear)
		}
	}

	return nil
}

// InitGL creates the quad, the noise texture, and every buffer pass's
// FBO/ping-pong textures for the given surface size. Must be called
// once the GPU context is current.
func (m *MultipassShader) InitGL(width, height int) error {
	m.VAO = m.cmds.CreateQuad(QuadVertices)
	m.NoiseTexture = m.createNoiseTexture()

	m.ScaledWidth, m.ScaledHeight = scaledSize(width, height, m.BaseScale)

	for i, pass := range m.Passes {
		if !pass.IsBufferPass() {
			pass.Width, pass.Height = width, height
			continue
		}
		pass.Width, pass.Height = m.passSize(i, m.ScaledWidth, m.ScaledHeight)
		if err := m.allocateBufferPass(pass); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultipassShader) allocateBufferPass(pass *Pass) error {
	pass.FBO = m.cmds.CreateFramebuffer()
	for i := 0; i < 2; i++ {
		tex := m.cmds.CreateTexture(pass.Width, pass.Height, gpu.RGBA16F)
		m.cmds.SetTextureFilter(tex, gpu.Linear, gpu.Linear)
		m.cmds.SetTextureWrap(tex, gpu.ClampToEdge, gpu.ClampToEdge)
		pass.Textures[i] = tex
	}
	m.cmds.AttachColorTexture(pass.FBO, pass.Textures[1-pass.PingPongIndex])
	if !m.cmds.FramebufferComplete(pass.FBO) {
		return fmt.Errorf("resources: framebuffer for pass %s is incomplete", pass.Name)
	}
	pass.NeedsClear = true
	return nil
}

// Resize recomputes the base scaled extent from the current scale and
// reallocates any pass whose target size changed, marking it for a
// clear on next render (spec.md §4.5 resize, §3 lifecycle).
func (m *MultipassShader) Resize(width, height int) {
	m.ScaledWidth, m.ScaledHeight = scaledSize(width, height, m.BaseScale)

	for i, pass := range m.Passes {
		var targetW, targetH int
		if pass.IsBufferPass() {
			targetW, targetH = m.passSize(i, m.ScaledWidth, m.ScaledHeight)
		} else {
			targetW, targetH = width, height
		}
		if targetW == pass.Width && targetH == pass.Height {
			continue
		}
		pass.Width, pass.Height = targetW, targetH
		if pass.IsBufferPass() {
			for i := 0; i < 2; i++ {
				m.cmds.ResizeTexture(pass.Textures[i], targetW, targetH, gpu.RGBA16F)
			}
			m.cmds.AttachColorTexture(pass.FBO, pass.Textures[1-pass.PingPongIndex])
			pass.NeedsClear = true
		}
	}
}

// SetScale updates the global resolution scale applied to buffer
// passes, clamped to the configured [min,max] bounds by the caller
// (engine owns the adaptive controller's bounds).
func (m *MultipassShader) SetScale(scale float64) {
	m.BaseScale = scale
}

// Destroy releases every GPU object this shader owns.
func (m *MultipassShader) Destroy() {
	for _, pass := range m.Passes {
		if pass.Program != 0 {
			m.cmds.DeleteProgram(pass.Program)
		}
		if pass.IsBufferPass() {
			if pass.FBO != 0 {
				m.cmds.DeleteFramebuffer(pass.FBO)
			}
			for _, t := range pass.Textures {
				if t != 0 {
					m.cmds.DeleteTexture(t)
				}
			}
		}
	}
	if m.NoiseTexture != 0 {
		m.cmds.DeleteTexture(m.NoiseTexture)
	}
	if m.VAO != 0 {
		m.cmds.DeleteQuad(m.VAO)
	}
}

// createNoiseTexture fills a 1024x1024 RGBA8 texture using the fixed
// LCG sequence from spec.md §4.5: seed = seed*1664525 + 1013904223,
// four draws per texel, seeded at 12345.
func (m *MultipassShader) createNoiseTexture() gpu.Texture {
	const size = NoiseTextureSize
	pixels := make([]byte, size*size*4)
	seed := uint32(12345)
	next := func() byte {
		seed = seed*1664525 + 1013904223
		return byte(seed >> 24)
	}
	for i := 0; i < size*size; i++ {
		pixels[i*4+0] = next()
		pixels[i*4+1] = next()
		pixels[i*4+2] = next()
		pixels[i*4+3] = next()
	}
	tex := m.cmds.CreateTexture(size, size, gpu.RGBA8)
	m.cmds.SetTextureFilter(tex, gpu.Nearest, gpu.Nearest)
	m.cmds.SetTextureWrap(tex, gpu.Repeat, gpu.Repeat)
	m.cmds.UploadTexture2D(tex, size, size, gpu.RGBA8, pixels)
	return tex
}

func scaledSize(width, height int, scale float64) (int, int) {
	w := int(float64(width) * scale)
	h := int(float64(height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
