// Package channels implements the static heuristic that infers what
// each pass's four iChannel slots should be bound to: a ring buffer,
// the pass's own previous frame, or the procedural noise texture.
package channels

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shadermp/engine/passparse"
)

// Source is the closed set of things a channel can resolve to. No
// strings survive past Infer: callers get back this tagged variant,
// never a channel "name".
type Source struct {
	Kind   Kind
	Buffer passparse.PassType // only meaningful when Kind == Buffer
}

// Kind discriminates the Source variant.
type Kind int

const (
	Noise Kind = iota
	Self
	Buffer
)

// scores is the raw (noise, buffer, self) tuple computed for one
// channel before the decision function maps it to a Source.
type scores struct {
	noise, buffer, self int
	appeared            bool
}

// Infer scores every iChannel0..3 in pass source and returns the
// resolved Source for each, in channel order. isImagePass hard-wires
// the Image pass's four channels to BufferA..BufferD regardless of
// scoring, per spec.
func Infer(source string, isImagePass bool) [4]Source {
	var out [4]Source
	for c := 0; c < 4; c++ {
		if isImagePass {
			out[c] = Source{Kind: Buffer, Buffer: bufferTypeForImageChannel(c)}
			continue
		}
		out[c] = decide(score(source, c), c)
	}
	return out
}

func bufferTypeForImageChannel(c int) passparse.PassType {
	switch c {
	case 0:
		return passparse.BufferA
	case 1:
		return passparse.BufferB
	case 2:
		return passparse.BufferC
	default:
		return passparse.BufferD
	}
}

var lineSplitter = regexp.MustCompile(`\r?\n`)

// score scans every line of source for occurrences of iChannelN and
// accumulates the (noise, buffer, self) tuple per spec.md §4.4.
func score(source string, channel int) scores {
	name := "iChannel" + strconv.Itoa(channel)
	var s scores
	for _, line := range lineSplitter.Split(source, -1) {
		if !strings.Contains(line, name) {
			continue
		}
		s.appeared = true
		s.noise += noiseScoreForLine(line, name)
		s.buffer += bufferScoreForLine(line)
		s.self += selfScoreForLine(line, name)
	}
	return s
}

var powerOfTwoDivisors = []string{"256", "512", "1024"}

func noiseScoreForLine(line, name string) int {
	score := 0
	for _, p := range powerOfTwoDivisors {
		if strings.Contains(line, "/"+p) || strings.Contains(line, "/ "+p) {
			score += 100
			break
		}
	}
	if strings.Contains(line, "*0.00") || strings.Contains(line, "* 0.00") {
		if !strings.Contains(line, "mix(") && !strings.Contains(line, "smoothstep(") {
			score += 80
		}
	}
	idx := strings.Index(line, name)
	if idx >= 0 {
		after := line[idx+len(name):]
		if strings.HasPrefix(after, ".x") || strings.HasPrefix(after, ".r") {
			// single-component access right after the bare channel name
			score += 30
		} else if strings.Contains(after, ").x") || strings.Contains(after, ").r") {
			score += 30
		}
	}
	return score
}

func bufferScoreForLine(line string) int {
	score := 0
	if strings.Contains(line, "fragCoord") || strings.Contains(line, "iResolution") {
		score += 50
	}
	if containsIdentifier(line, "uv") {
		score += 40
	}
	if containsIdentifier(line, "coord") || containsIdentifier(line, "pos") || containsIdentifier(line, "st") {
		score += 30
	}
	return score
}

func selfScoreForLine(line, name string) int {
	score := 0
	if strings.Contains(line, "mix(") && strings.Contains(line, name) {
		score += 60
	}
	if strings.Contains(line, "+=") || strings.Contains(line, "*=") {
		score += 20
	}
	return score
}

// containsIdentifier is a loose word-boundary check: good enough for
// the heuristic without pulling in a GLSL tokenizer.
func containsIdentifier(line, ident string) bool {
	idx := 0
	for {
		i := strings.Index(line[idx:], ident)
		if i < 0 {
			return false
		}
		pos := idx + i
		before := byte(' ')
		if pos > 0 {
			before = line[pos-1]
		}
		afterPos := pos + len(ident)
		after := byte(' ')
		if afterPos < len(line) {
			after = line[afterPos]
		}
		if !isIdentChar(before) && !isIdentChar(after) {
			return true
		}
		idx = pos + len(ident)
		if idx >= len(line) {
			return false
		}
	}
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// decide maps a scored tuple plus the channel index to a Source, per
// the ordered decision list in spec.md §4.4. A channel that never
// appears in the source at all should be passed in with a zero
// scores{} from a caller that separately checked for the name's
// absence; Infer handles that via score() naturally returning all
// zeros when the name never occurs.
func decide(s scores, channel int) Source {
	if !s.appeared {
		return Source{Kind: Noise}
	}

	maxOfBufferSelf := s.buffer
	if s.self > maxOfBufferSelf {
		maxOfBufferSelf = s.self
	}
	if s.noise >= maxOfBufferSelf && s.noise >= 50 {
		return Source{Kind: Noise}
	}

	if s.buffer > 0 || s.self > 0 {
		if channel == 0 {
			if s.noise >= 50 {
				return Source{Kind: Noise}
			}
			return Source{Kind: Self}
		}
		// channel 1 reads BufferA, 2 reads BufferB, 3 reads BufferC
		target := bufferTypeForImageChannel(channel - 1)
		if s.self > s.buffer {
			return Source{Kind: Self}
		}
		return Source{Kind: Buffer, Buffer: target}
	}

	// Used but ambiguous: the channel appears, but no rule scored it
	// (e.g. sampled with a coordinate name none of the rules recognize).
	if channel == 0 {
		return Source{Kind: Self}
	}
	return Source{Kind: Buffer, Buffer: bufferTypeForImageChannel(channel - 1)}
}
