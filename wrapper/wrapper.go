// Package wrapper emits the fixed GLSL preamble/suffix that turns an
// extracted pass body into a complete compilable fragment shader, and
// hands the result to goshadertranslator for the host's selected
// output profile. Grounded on the teacher's shader.GeneratePreamble /
// GetMain / GetFragmentShader.
package wrapper

import (
	"fmt"

	"github.com/shadermp/engine/capability"
)

// Preamble declares every well-known Shadertoy uniform plus the four
// iChannel samplers (always sampler2D: this spec's non-goals exclude
// cubemap/volume channels, so there is no dynamic sampler-type
// selection to make, unlike the teacher's GeneratePreamble).
const Preamble = `#version 300 es
precision highp float;
precision highp int;

uniform vec3      iResolution;
uniform float     iTime;
uniform float     iTimeDelta;
uniform float     iFrameRate;
uniform int       iFrame;
uniform float     iChannelTime[4];
uniform vec3      iChannelResolution[4];
uniform vec4      iMouse;
uniform vec4      iDate;
uniform float     iSampleRate;
uniform sampler2D iChannel0;
uniform sampler2D iChannel1;
uniform sampler2D iChannel2;
uniform sampler2D iChannel3;

out vec4 fragColor;
`

// Suffix wires the wrapped mainImage into a GLSL entry point.
const Suffix = `
void main(){ mainImage(fragColor, gl_FragCoord.xy); }
`

// VertexSource is the single fullscreen-quad vertex shader every pass
// shares, grounded on shader.GenerateVertexShader.
const VertexSource = `#version 300 es
layout (location = 0) in vec2 in_vert;
void main() {
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// Wrap combines the preamble, common (pre-first-mainImage) source, a
// pass's extracted source, and the entry-point suffix into one
// compilable fragment shader, per spec.md §4.3 and §6.
func Wrap(commonSource, passSource string) string {
	return Preamble + commonSource + passSource + Suffix
}

// Translator is the subset of goshadertranslator's API the wrapper
// needs, kept as an interface so tests can substitute a pass-through
// fake instead of loading the real ANGLE-backed translator.
type Translator interface {
	Translate(source string, profile capability.OutputProfile) (string, error)
}

// NameMapper is implemented by translators that may rename source
// uniforms during translation (GSTTranslator's real ANGLE backend
// does; PassThroughTranslator does not). Callers resolving uniform
// locations after a Translate call should consult MappedName when a
// translator implements this, instead of assuming the source name
// survived translation unchanged.
type NameMapper interface {
	MappedName(sourceName string) (string, bool)
}

// PassThroughTranslator returns its input unmodified. Used when no
// real translator is configured (e.g. in unit tests, or hosts that
// feed GLSL 300 es straight to a driver that accepts it).
type PassThroughTranslator struct{}

func (PassThroughTranslator) Translate(source string, _ capability.OutputProfile) (string, error) {
	return source, nil
}

// WrapAndTranslate wraps the pass source and then runs it through t,
// selecting the output profile the capability registry resolved.
func WrapAndTranslate(t Translator, commonSource, passSource string, profile capability.OutputProfile) (string, error) {
	wrapped := Wrap(commonSource, passSource)
	translated, err := t.Translate(wrapped, profile)
	if err != nil {
		return "", fmt.Errorf("wrapper: translation failed: %w", err)
	}
	return translated, nil
}
