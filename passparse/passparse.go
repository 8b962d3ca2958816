// Package passparse splits a Shadertoy-style multi-mainImage source
// into independently compilable passes, preserving shared helper code
// written between pass bodies.
package passparse

import (
	"errors"
	"log"
	"strings"

	"github.com/shadermp/engine/scanner"
)

// PassType identifies the role a pass plays in the pipeline. Only the
// first five variants are ever rendered; Common and Sound are either
// discarded or used as prefix source.
type PassType int

const (
	BufferA PassType = iota
	BufferB
	BufferC
	BufferD
	Image
	Common
	Sound
)

func (t PassType) String() string {
	switch t {
	case BufferA:
		return "BufferA"
	case BufferB:
		return "BufferB"
	case BufferC:
		return "BufferC"
	case BufferD:
		return "BufferD"
	case Image:
		return "Image"
	case Common:
		return "Common"
	case Sound:
		return "Sound"
	default:
		return "Unknown"
	}
}

// MaxPasses is the hard cap on the number of mainImage occurrences
// this parser will turn into passes.
const MaxPasses = 8

// ErrNotAShader is returned when the source contains neither a
// mainImage function definition nor a plain GLSL main().
var ErrNotAShader = errors.New("passparse: source has no mainImage or main function")

// PassSource is one extracted, independently compilable pass.
type PassSource struct {
	Type   PassType
	Source string
}

// ParseResult is the output of Parse: whether the source was
// multipass, the shared prefix source, and the ordered passes.
type ParseResult struct {
	IsMultipass  bool
	CommonSource string
	Passes       []PassSource
}

type occurrence struct {
	lineStart int
	bodyEnd   int
}

// Parse splits src into passes per spec: a single mainImage becomes a
// lone Image pass; multiple mainImage functions are split so that
// helper code written between two pass bodies is available to that
// pass and every later pass, but never to an earlier one.
func Parse(src string) (*ParseResult, error) {
	occs := findMainImageOccurrences(src)
	if len(occs) == 0 {
		if scanner.FindPattern(src, "void main(", 0) < 0 {
			return nil, ErrNotAShader
		}
		// A plain GLSL main() with no mainImage at all: treat the whole
		// source as a single Image pass verbatim.
		return &ParseResult{
			IsMultipass: false,
			Passes:      []PassSource{{Type: Image, Source: src}},
		}, nil
	}

	if len(occs) == 1 {
		return &ParseResult{
			IsMultipass: false,
			Passes:      []PassSource{{Type: Image, Source: src}},
		}, nil
	}

	if len(occs) > MaxPasses {
		log.Printf("passparse: source has %d mainImage functions, capping at %d", len(occs), MaxPasses)
		occs = occs[:MaxPasses]
	}

	result := &ParseResult{
		IsMultipass:  true,
		CommonSource: src[:occs[0].lineStart],
	}

	for i, occ := range occs {
		var helper strings.Builder
		for j := 1; j <= i; j++ {
			helper.WriteString(src[occs[j-1].bodyEnd:occs[j].lineStart])
		}
		helper.WriteString(src[occ.lineStart:occ.bodyEnd])

		passType := classifyPass(src, occ.lineStart, i, len(occs))
		result.Passes = append(result.Passes, PassSource{
			Type:   passType,
			Source: helper.String(),
		})
	}

	return result, nil
}

// findMainImageOccurrences locates every `mainImage` that is defined
// as a function (i.e. followed by '(' after optional whitespace), and
// returns, for each, the start of its line and the offset one past
// its body's closing brace.
func findMainImageOccurrences(src string) []occurrence {
	var occs []occurrence
	pos := 0
	for {
		off := scanner.FindPattern(src, "mainImage", pos)
		if off < 0 {
			break
		}
		after := off + len("mainImage")
		i := after
		for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
			i++
		}
		if i >= len(src) || src[i] != '(' {
			pos = after
			continue
		}

		lineStart := startOfLine(src, off)
		bodyEnd := scanner.FindFunctionEnd(src, off)
		occs = append(occs, occurrence{lineStart: lineStart, bodyEnd: bodyEnd})
		pos = bodyEnd
	}
	return occs
}

func startOfLine(src string, pos int) int {
	i := strings.LastIndexByte(src[:pos], '\n')
	if i < 0 {
		return 0
	}
	return i + 1
}

// classifyPass inspects up to five lines above the pass's function
// definition for an explicit "Buffer A|B|C|D" or "// Image" marker
// comment. If none is found, the last pass defaults to Image and the
// earlier passes default to BufferA..BufferD in order, saturating at
// BufferD. When several marker lines fall in the window, the one
// nearest the function wins.
func classifyPass(src string, lineStart, index, total int) PassType {
	lookback := strings.Split(scanBackLines(src, lineStart, 5), "\n")
	for k := len(lookback) - 1; k >= 0; k-- {
		line := lookback[k]
		switch {
		case strings.Contains(line, "Buffer A"):
			return BufferA
		case strings.Contains(line, "Buffer B"):
			return BufferB
		case strings.Contains(line, "Buffer C"):
			return BufferC
		case strings.Contains(line, "Buffer D"):
			return BufferD
		case strings.Contains(line, "// Image"):
			return Image
		}
	}

	if index == total-1 {
		return Image
	}
	switch {
	case index < 4:
		return []PassType{BufferA, BufferB, BufferC, BufferD}[index]
	default:
		return BufferD
	}
}

// scanBackLines returns the text of the numLines lines immediately
// preceding pos (pos itself must already be the start of a line).
func scanBackLines(src string, pos, numLines int) string {
	start := pos
	for count := 0; start > 0 && count < numLines; count++ {
		start--
		for start > 0 && src[start-1] != '\n' {
			start--
		}
	}
	return src[start:pos]
}
