package wrapper

import (
	"context"
	"fmt"

	gst "github.com/richinsley/goshadertranslator"

	"github.com/shadermp/engine/capability"
)

// GSTTranslator backs Translator with the real ANGLE-based
// goshadertranslator the teacher uses, translating the WebGL2-flavor
// GLSL this engine wraps shaders in into the GLSL profile the host's
// capability registry selected.
type GSTTranslator struct {
	t             *gst.ShaderTranslator
	lastVariables map[string]gst.ShaderVariable
}

// NewGSTTranslator constructs a translator backed by goshadertranslator.
func NewGSTTranslator(ctx context.Context) (*GSTTranslator, error) {
	t, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("wrapper: failed to create shader translator: %w", err)
	}
	return &GSTTranslator{t: t}, nil
}

// Translate converts source to the GLSL dialect profile selects and
// keeps the result's uniform name-mapping table for MappedName,
// mirroring the teacher's per-pass
// `uniformMap := fsShader.Variables` lookup used right after
// translation to resolve GL uniform locations by the translator's
// (possibly renamed) output identifier.
func (g *GSTTranslator) Translate(source string, profile capability.OutputProfile) (string, error) {
	outputFormat := gst.OutputFormatGLSL330
	if profile == capability.ProfileESSL {
		outputFormat = gst.OutputFormatESSL
	}
	result, err := g.t.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return "", fmt.Errorf("wrapper: fragment shader translation failed: %w", err)
	}
	g.lastVariables = result.Variables
	return result.Code, nil
}

// MappedName looks up the translator-assigned name for a source
// uniform from the most recent Translate call, since some output
// profiles rename uniforms. ok is false if the uniform was optimized
// out as unused or never seen.
func (g *GSTTranslator) MappedName(sourceName string) (string, bool) {
	if g.lastVariables == nil {
		return "", false
	}
	v, ok := g.lastVariables[sourceName]
	if !ok {
		return "", false
	}
	return v.MappedName, true
}
