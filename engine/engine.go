// Package engine composes the source parser, channel inference, GPU
// resource lifecycle, adaptive controller, multipass optimizer, and
// state cache into the single external surface a host drives
// (spec.md §6). Grounded on richinsley-goshadertoy's renderer.Renderer
// (owns passes, buffers, quad, offscreen target) and cmd/main.go's
// runShadertoy orchestration sequence, re-targeted at this spec's
// source-driven pass model instead of a Shadertoy-JSON-driven one.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/shadermp/engine/adaptive"
	"github.com/shadermp/engine/capability"
	"github.com/shadermp/engine/channels"
	"github.com/shadermp/engine/gpu"
	"github.com/shadermp/engine/optimizer"
	"github.com/shadermp/engine/passparse"
	"github.com/shadermp/engine/resources"
	"github.com/shadermp/engine/statecache"
	"github.com/shadermp/engine/wrapper"
)

// Engine is one render engine per display surface.
type Engine struct {
	shader *resources.MultipassShader
	cmds   gpu.Commands
	cache  *statecache.Cache

	adaptiveCtrl    *adaptive.Controller
	adaptiveEnabled bool
	opt             *optimizer.Optimizer

	width, height int
	defaultFB     gpu.Framebuffer

	timerQueries  [2]gpu.TimerQuery
	timerIndex    int
	timerPending  [2]bool
	timerSupported bool

	ready  bool
	errors []error

	frameCount int64
}

// Create parses source and builds an unattached Engine. Pure: it
// touches no GPU object (spec.md §6 "create(source_text) → Engine
// (pure, no GPU)").
func Create(source string) (*Engine, error) {
	shader, err := resources.New(source)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		shader:          shader,
		adaptiveCtrl:    adaptive.New(adaptive.DefaultConfig()),
		adaptiveEnabled: true,
	}, nil
}

// InitGL must be called once the GPU context is current. cmds is the
// host's raw command surface; it is wrapped in a statecache.Cache so
// every subsequent call benefits from redundant-call elision.
func (e *Engine) InitGL(cmds gpu.Commands, translator wrapper.Translator, profile capability.OutputProfile, width, height int) error {
	e.cache = statecache.New(cmds)
	e.cmds = e.cache
	e.shader.Attach(e.cmds, translator, profile)

	sources := make([]string, len(e.shader.Passes))
	for i, p := range e.shader.Passes {
		sources[i] = p.Source
	}
	e.opt = optimizer.New(sources)
	e.shader.SetPassResolver(e.opt.GetPassResolution)

	if err := e.shader.InitGL(width, height); err != nil {
		return fmt.Errorf("engine: init_gl: %w", err)
	}
	e.width, e.height = width, height

	e.timerSupported = cmds.SupportsTimerQueries()
	if e.timerSupported {
		e.timerQueries[0] = cmds.CreateTimerQuery()
		e.timerQueries[1] = cmds.CreateTimerQuery()
	}

	e.ready = true
	return nil
}

// CompileAll compiles every pass and reports whether at least the
// Image pass (if present) compiled successfully.
func (e *Engine) CompileAll() bool {
	if err := e.shader.CompileAll(); err != nil {
		e.errors = append(e.errors, err)
		return false
	}
	for _, p := range e.shader.Passes {
		if p.CompileError != nil {
			e.errors = append(e.errors, fmt.Errorf("pass %s: %w", p.Name, p.CompileError))
		}
	}
	if e.shader.ImagePassIndex < 0 {
		return true
	}
	return e.shader.Passes[e.shader.ImagePassIndex].CompileError == nil
}

// Resize notifies the engine of a surface-size change.
func (e *Engine) Resize(width, height int) {
	e.width, e.height = width, height
	e.shader.Resize(width, height)
}

// SetResolutionScale sets an explicit base scale, clamped into
// [0.1, 2.0] per spec.md §8's documented hard floor/ceiling.
func (e *Engine) SetResolutionScale(f float64) {
	if f < 0.1 {
		f = 0.1
	}
	if f > 2.0 {
		f = 2.0
	}
	e.adaptiveEnabled = false
	e.shader.SetScale(f)
	e.shader.Resize(e.width, e.height)
}

// SetAdaptiveResolution toggles adaptive control and, when enabling
// it, reconfigures its target/min/max.
func (e *Engine) SetAdaptiveResolution(enabled bool, targetFPS, min, max float64) {
	e.adaptiveEnabled = enabled
	if enabled {
		cfg := adaptive.DefaultConfig()
		cfg.TargetFPS, cfg.MinScale, cfg.MaxScale = targetFPS, min, max
		e.adaptiveCtrl = adaptive.New(cfg)
	}
}

// ConfigureAdaptive replaces the full adaptive configuration.
func (e *Engine) ConfigureAdaptive(cfg adaptive.Config) {
	e.adaptiveCtrl = adaptive.New(cfg)
}

// Reset returns the adaptive controller to its initial state and
// clears recorded errors, without reparsing the source or
// reallocating GPU objects.
func (e *Engine) Reset() {
	e.adaptiveCtrl.Reset()
	e.errors = nil
}

// Destroy releases every GPU object the engine owns.
func (e *Engine) Destroy() {
	e.shader.Destroy()
	if e.timerSupported {
		e.cmds.DeleteTimerQuery(e.timerQueries[0])
		e.cmds.DeleteTimerQuery(e.timerQueries[1])
	}
	e.ready = false
}

// GetCurrentFPS returns the adaptive controller's current fps estimate.
func (e *Engine) GetCurrentFPS() float64 { return e.adaptiveCtrl.CurrentFPS() }

// GetResolutionScale returns the scale currently applied to buffer passes.
func (e *Engine) GetResolutionScale() float64 { return e.shader.BaseScale }

// IsReady reports whether InitGL has completed successfully.
func (e *Engine) IsReady() bool { return e.ready }

// HasErrors reports whether any compile or resource error has been recorded.
func (e *Engine) HasErrors() bool { return len(e.errors) > 0 }

// GetError returns the i-th recorded error, or nil if out of range.
func (e *Engine) GetError(i int) error {
	if i < 0 || i >= len(e.errors) {
		return nil
	}
	return e.errors[i]
}

// GetAllErrors returns every recorded error.
func (e *Engine) GetAllErrors() []error { return e.errors }

// Render executes the full per-frame orchestration sequence (spec.md
// §4.7).
func (e *Engine) Render(timeSeconds, mouseX, mouseY float64, mouseClick bool) {
	readTimer := e.timerIndex
	writeTimer := 1 - e.timerIndex

	if e.timerSupported {
		if e.timerPending[readTimer] && e.cmds.TimerQueryResultAvailable(e.timerQueries[readTimer]) {
			nanos := e.cmds.TimerQueryResultNanoseconds(e.timerQueries[readTimer])
			e.adaptiveCtrl.ReportGPUTimerResult(nanos)
			e.timerPending[readTimer] = false
		}
		e.cmds.BeginTimerQuery(e.timerQueries[writeTimer])
	}

	if e.adaptiveEnabled {
		before := e.shader.BaseScale
		e.adaptiveCtrl.Update(timeSeconds)
		after := e.adaptiveCtrl.CurrentScale()
		if after != before {
			e.shader.SetScale(after)
			e.shader.Resize(e.width, e.height)
		}
	}

	e.opt.BeginFrame(timeSeconds, mouseX, mouseY, mouseClick)
	e.opt.SyncMode(e.adaptiveCtrl.Emergency(), e.adaptiveCtrl.FPSRatio(), e.adaptiveCtrl.StabilityRatio())

	e.defaultFB = e.cmds.CurrentFramebuffer()

	e.cmds.SetDepthTest(false)
	e.cmds.SetBlend(false)
	e.cmds.SetCullFace(false)
	e.cmds.SetScissorTest(false)
	e.cmds.SetDepthMask(false)
	e.cmds.SetColorMask(true, true, true, true)
	e.cmds.BindQuad(e.shader.VAO)

	bufferTypes := []passparse.PassType{passparse.BufferA, passparse.BufferB, passparse.BufferC, passparse.BufferD}
	for _, pt := range bufferTypes {
		for i, pass := range e.shader.Passes {
			if pass.Type != pt {
				continue
			}
			if !e.opt.ShouldRenderPass(i) {
				continue
			}
			e.renderPass(i, timeSeconds, mouseX, mouseY, mouseClick)
			e.opt.RecordRendered(i)
		}
	}

	if e.shader.ImagePassIndex >= 0 {
		i := e.shader.ImagePassIndex
		pass := e.shader.Passes[i]
		e.cmds.BindFramebuffer(e.defaultFB)
		e.cmds.SetViewport(0, 0, pass.Width, pass.Height)
		e.cmds.ClearColor(0, 0, 0, 1)
		e.cmds.Clear()
		e.renderPassBody(i, timeSeconds, mouseX, mouseY, mouseClick)
	}

	e.opt.EndFrame()
	e.adaptiveCtrl.ReportWorkloadRatio(e.opt.WorkloadRatio())
	if e.timerSupported {
		e.cmds.EndTimerQuery()
		e.timerPending[writeTimer] = true
	}
	e.timerIndex = writeTimer
	e.frameCount++
}

func (e *Engine) renderPass(i int, t, mouseX, mouseY float64, mouseClick bool) {
	pass := e.shader.Passes[i]
	e.cmds.BindFramebuffer(pass.FBO)
	e.cmds.AttachColorTexture(pass.FBO, pass.Textures[1-pass.PingPongIndex])
	if pass.NeedsClear {
		e.cmds.ClearColor(0, 0, 0, 1)
		e.cmds.Clear()
		pass.NeedsClear = false
	}
	e.cmds.SetViewport(0, 0, pass.Width, pass.Height)
	e.renderPassBody(i, t, mouseX, mouseY, mouseClick)

	if pass.NeedsMipmaps {
		e.cmds.GenerateMipmap(pass.Textures[1-pass.PingPongIndex])
	}
	pass.PingPongIndex = 1 - pass.PingPongIndex
}

func (e *Engine) renderPassBody(i int, t, mouseX, mouseY float64, mouseClick bool) {
	pass := e.shader.Passes[i]
	if pass.CompileError != nil || pass.Program == 0 {
		return
	}
	e.cmds.UseProgram(pass.Program)
	e.uploadUniforms(pass, t, mouseX, mouseY, mouseClick)
	e.bindChannels(i)
	e.cmds.DrawQuad()
}

func (e *Engine) uploadUniforms(pass *resources.Pass, t, mouseX, mouseY float64, mouseClick bool) {
	u := pass.Uniforms
	set := e.cmds.SetUniform

	if u.Time != gpu.NoLocation {
		set(u.Time, gpu.UniformValue{Kind: gpu.Float1, F1: float32(t)})
	}
	if u.TimeDelta != gpu.NoLocation {
		set(u.TimeDelta, gpu.UniformValue{Kind: gpu.Float1, F1: 1.0 / 60.0})
	}
	if u.FrameRate != gpu.NoLocation {
		set(u.FrameRate, gpu.UniformValue{Kind: gpu.Float1, F1: 60.0})
	}
	if u.Frame != gpu.NoLocation {
		set(u.Frame, gpu.UniformValue{Kind: gpu.Int1, I1: int32(e.frameCount)})
	}
	if u.Resolution != gpu.NoLocation {
		w, h := float32(pass.Width), float32(pass.Height)
		aspect := float32(0)
		if h != 0 {
			aspect = w / h
		}
		set(u.Resolution, gpu.UniformValue{Kind: gpu.Float3, F3: [3]float32{w, h, aspect}})
	}
	if u.Mouse != gpu.NoLocation {
		click := float32(0)
		if mouseClick {
			click = 1
		}
		set(u.Mouse, gpu.UniformValue{Kind: gpu.Float4, F4: [4]float32{float32(mouseX), float32(mouseY), click, click}})
	}
	if u.Date != gpu.NoLocation {
		now := wallClockDate()
		set(u.Date, gpu.UniformValue{Kind: gpu.Float4, F4: now})
	}
	if u.SampleRate != gpu.NoLocation {
		set(u.SampleRate, gpu.UniformValue{Kind: gpu.Float1, F1: 44100})
	}
	if u.ChannelResolution != gpu.NoLocation {
		fv := make([]float32, 0, 12)
		for c := 0; c < 4; c++ {
			fv = append(fv, 256, 256, 1)
		}
		set(u.ChannelResolution, gpu.UniformValue{Kind: gpu.Float3Array, FV: fv, Count: 4})
	}
}

// wallClockDate is a seam so tests never depend on time.Now().
var wallClockDate = func() [4]float32 {
	now := time.Now()
	secondsSinceMidnight := float32(now.Hour()*3600 + now.Minute()*60 + now.Second())
	return [4]float32{float32(now.Year()), float32(now.Month()), float32(now.Day()), secondsSinceMidnight}
}

func (e *Engine) bindChannels(i int) {
	pass := e.shader.Passes[i]
	for c := 0; c < 4; c++ {
		loc := pass.Uniforms.Channel[c]
		if loc == gpu.NoLocation {
			continue
		}
		tex := e.resolveChannelTexture(pass, c)
		e.cmds.BindTextureUnit(c, tex)
		e.cmds.SetUniform(loc, gpu.UniformValue{Kind: gpu.Int1, I1: int32(c)})
	}
}

func (e *Engine) resolveChannelTexture(pass *resources.Pass, c int) gpu.Texture {
	switch pass.Channels[c].Kind {
	case channels.Self:
		return pass.ReadTexture()
	case channels.Buffer:
		idx := pass.ChannelBufferIndex[c]
		if idx < 0 {
			log.Printf("engine: channel %d of pass %s has no producer, falling back to noise", c, pass.Name)
			return e.shader.NoiseTexture
		}
		return e.shader.Passes[idx].ReadTexture()
	default:
		return e.shader.NoiseTexture
	}
}
