// Package uniforms resolves and caches the GL uniform locations every
// pass program exposes, so the render loop never re-queries a
// location at frame time (spec.md §3 UniformLocations, §4.6).
package uniforms

import "github.com/shadermp/engine/gpu"

// Locations caches the resolved handle of every well-known Shadertoy
// uniform for one compiled program. A value of gpu.NoLocation means
// the uniform is not present in this particular program.
type Locations struct {
	Time               gpu.UniformLocation
	TimeDelta          gpu.UniformLocation
	FrameRate          gpu.UniformLocation
	Frame              gpu.UniformLocation
	Resolution         gpu.UniformLocation
	Mouse              gpu.UniformLocation
	Date               gpu.UniformLocation
	SampleRate         gpu.UniformLocation
	ChannelResolution  gpu.UniformLocation
	Channel            [4]gpu.UniformLocation
}

// Resolve queries every well-known uniform's location once, right
// after linking, mirroring GetRenderPass's GetUniformLocation calls.
// resolveName, when non-nil, maps a source-level uniform name to the
// translator's (possibly renamed) output identifier before the
// location query runs — mirroring the teacher's per-pass
// `uniformMap := fsShader.Variables` lookup, since the real
// ANGLE-backed translator is free to rename uniforms during
// translation. A nil resolveName (or one that reports no mapping)
// queries the source name unchanged, which is exactly what
// PassThroughTranslator requires.
func Resolve(cmds gpu.Commands, p gpu.Program, resolveName func(string) string) Locations {
	name := func(n string) string {
		if resolveName == nil {
			return n
		}
		return resolveName(n)
	}

	var l Locations
	l.Time = cmds.UniformLocationOf(p, name("iTime"))
	l.TimeDelta = cmds.UniformLocationOf(p, name("iTimeDelta"))
	l.FrameRate = cmds.UniformLocationOf(p, name("iFrameRate"))
	l.Frame = cmds.UniformLocationOf(p, name("iFrame"))
	l.Resolution = cmds.UniformLocationOf(p, name("iResolution"))
	l.Mouse = cmds.UniformLocationOf(p, name("iMouse"))
	l.Date = cmds.UniformLocationOf(p, name("iDate"))
	l.SampleRate = cmds.UniformLocationOf(p, name("iSampleRate"))
	l.ChannelResolution = cmds.UniformLocationOf(p, name("iChannelResolution[0]"))
	for i := 0; i < 4; i++ {
		l.Channel[i] = cmds.UniformLocationOf(p, name(channelName(i)))
	}
	return l
}

func channelName(i int) string {
	switch i {
	case 0:
		return "iChannel0"
	case 1:
		return "iChannel1"
	case 2:
		return "iChannel2"
	default:
		return "iChannel3"
	}
}

// ProducerIndex maps a resolved Buffer channel source to the index of
// the pass that produces it, or -1 if no such pass exists (spec.md §3
// invariant: falls back to noise when absent). The producer indices are
// computed once, when resources.New parses the passes, and never
// re-looked-up per frame.
type ProducerIndex [4]int

// NoProducer is the sentinel meaning "this channel's buffer producer
// does not exist; bind noise instead".
const NoProducer = -1
