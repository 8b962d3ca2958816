// Package optimizer implements the multipass optimizer (spec.md
// §4.9): per-pass resolution hints, half-rate update scheduling, and
// static-scene culling. It has no teacher analogue and shares the
// category-scoring idiom introduced in the channels package.
package optimizer

import "strings"

// Category is the coarse classification a pass's source is scored
// into at analysis time.
type Category int

const (
	Generic Category = iota
	BlurHeavy
	NoiseOnly
	SelfFeedback
	HighFrequencyDetail
	Animated
	MouseDependent
)

// recommendation pairs a category with its buffer scale and minimum
// pixel dimension, per spec.md §4.9's fixed table.
type recommendation struct {
	scale       float64
	minPixels   int
}

var recommendations = map[Category]recommendation{
	Generic:              {scale: 1.0, minPixels: 64},
	BlurHeavy:            {scale: 0.5, minPixels: 64},
	NoiseOnly:            {scale: 0.25, minPixels: 32},
	SelfFeedback:         {scale: 0.75, minPixels: 64},
	HighFrequencyDetail:  {scale: 1.0, minPixels: 128},
	Animated:             {scale: 0.75, minPixels: 64},
	MouseDependent:       {scale: 1.0, minPixels: 64},
}

// Classify inspects a pass's source with substring counts similar to
// the channels package's heuristic and returns its recommended
// category. The first matching rule, checked in the priority order
// below, wins.
func Classify(source string) Category {
	switch {
	case strings.Count(source, "iMouse") >= 2:
		return MouseDependent
	case strings.Count(source, "blur")+strings.Count(source, "Blur") >= 1 &&
		(strings.Count(source, "for") >= 1):
		return BlurHeavy
	case isNoiseOnly(source):
		return NoiseOnly
	case isSelfFeedback(source):
		return SelfFeedback
	case strings.Count(source, "fwidth")+strings.Count(source, "dFdx")+strings.Count(source, "dFdy") >= 1 ||
		strings.Count(source, "sin(") >= 6 || strings.Count(source, "mod(") >= 6:
		return HighFrequencyDetail
	case strings.Count(source, "iTime") >= 1:
		return Animated
	default:
		return Generic
	}
}

func isNoiseOnly(source string) bool {
	hasDivisor := strings.Contains(source, "/256") || strings.Contains(source, "/512") || strings.Contains(source, "/1024")
	samplesChannel := strings.Contains(source, "iChannel")
	return hasDivisor && samplesChannel && !strings.Contains(source, "mainImage(out")
}

func isSelfFeedback(source string) bool {
	return (strings.Contains(source, "mix(texture") || strings.Contains(source, "mix( texture")) &&
		(strings.Contains(source, "+=") || strings.Contains(source, "*="))
}

// Recommend returns the recommended buffer scale and minimum pixel
// dimension for a category.
func Recommend(c Category) (scale float64, minPixels int) {
	r := recommendations[c]
	return r.scale, r.minPixels
}

// Mode is the render orchestrator's synchronized posture, driven by
// the adaptive controller's state (spec.md §4.7 step 4).
type Mode int

const (
	ModeNormal Mode = iota
	ModeAggressive
	ModeEmergency
)

// PassState tracks one pass's per-frame scheduling state: the
// analysis-time category, the last time it actually rendered, its
// half-rate phase bit, and static-scene tracking.
type PassState struct {
	Category  Category
	phaseBit  bool
	lastRenderTime float64
	lastWidth, lastHeight int
}

// NewPassState analyzes src once at compile time and returns its
// scheduling state.
func NewPassState(src string) *PassState {
	return &PassState{Category: Classify(src)}
}

// staticSceneFrameThreshold is the number of consecutive frames of no
// mouse motion and no significant input change after which a pass may
// be culled, per spec.md §4.9 should_render_pass rule (a).
const staticSceneFrameThreshold = 30

// Optimizer owns every pass's PassState plus the frame-global mode and
// static-scene tracker.
type Optimizer struct {
	states []*PassState

	mode       Mode
	halfRate   bool
	qualityBias float64

	frameIndex int64

	lastMouseMoveTime float64
	lastInputChangeTime float64
	currentTime       float64
	lastMouseX, lastMouseY float64
	haveLastMouse     bool

	staticFrameCount int

	lastRecordedWork map[int][2]int
}

// New builds an Optimizer over the given per-pass source analyses, in
// pass index order.
func New(sources []string) *Optimizer {
	o := &Optimizer{qualityBias: 1.0, lastRecordedWork: map[int][2]int{}}
	for _, s := range sources {
		o.states = append(o.states, NewPassState(s))
	}
	return o
}

// SyncMode applies §4.7 step 4's mode derivation from adaptive state.
func (o *Optimizer) SyncMode(emergency bool, fpsRatio, stability float64) {
	switch {
	case emergency:
		o.mode = ModeEmergency
		o.halfRate = true
		o.qualityBias = 0.5
	case fpsRatio < 0.90:
		o.mode = ModeAggressive
		o.halfRate = true
		o.qualityBias = 0.6
	case fpsRatio > 0.98 && stability > 0.7:
		o.mode = ModeNormal
		o.halfRate = false
		o.qualityBias = 0.8
	}
}

// Mode exposes the synchronized mode, mostly for tests.
func (o *Optimizer) Mode() Mode { return o.mode }

// BeginFrame updates the static-scene tracker and advances the frame
// counter used for half-rate phase alternation.
func (o *Optimizer) BeginFrame(time, mouseX, mouseY float64, mouseClick bool) {
	o.currentTime = time
	o.frameIndex++

	moved := false
	if o.haveLastMouse {
		moved = mouseX != o.lastMouseX || mouseY != o.lastMouseY
	}
	o.lastMouseX, o.lastMouseY = mouseX, mouseY
	o.haveLastMouse = true

	if moved || mouseClick {
		o.lastMouseMoveTime = time
		o.lastInputChangeTime = time
		o.staticFrameCount = 0
	} else {
		o.staticFrameCount++
	}
}

// GetPassResolution computes a pass's target extent: base extent
// scaled by its recommended buffer scale, clamped so neither dimension
// falls below the category's minimum pixel size.
func (o *Optimizer) GetPassResolution(i, baseW, baseH int) (int, int) {
	if i < 0 || i >= len(o.states) {
		return baseW, baseH
	}
	scale, minPixels := Recommend(o.states[i].Category)
	w := int(float64(baseW) * scale)
	h := int(float64(baseH) * scale)
	if w < minPixels {
		w = minPixels
	}
	if h < minPixels {
		h = minPixels
	}
	o.lastRecordedWork[i] = [2]int{w, h}
	return w, h
}

// ShouldRenderPass implements spec.md §4.9's three culling rules.
func (o *Optimizer) ShouldRenderPass(i int) bool {
	if i < 0 || i >= len(o.states) {
		return true
	}
	s := o.states[i]

	mouseDependent := s.Category == MouseDependent
	if o.staticFrameCount > staticSceneFrameThreshold && !mouseDependent {
		return false
	}

	if o.halfRate {
		parity := o.frameIndex % 2
		phaseWant := int64(0)
		if s.phaseBit {
			phaseWant = 1
		}
		if parity != phaseWant {
			return false
		}
	}

	idleTooLong := o.currentTime-o.lastMouseMoveTime > 2.0
	dtTooSmall := o.mode == ModeAggressive || o.mode == ModeEmergency
	if dtTooSmall && idleTooLong && !mouseDependent {
		return false
	}

	return true
}

// RecordRendered marks a pass as actually having rendered this frame,
// remembering the render time. The half-rate phase bit is left
// unchanged, so under half-rate the pass renders only on frames whose
// parity matches it.
func (o *Optimizer) RecordRendered(i int) {
	if i < 0 || i >= len(o.states) {
		return
	}
	o.states[i].lastRenderTime = o.currentTime
}

// EndFrame finalizes per-frame bookkeeping. Present for symmetry with
// BeginFrame and the render orchestrator's step 10.
func (o *Optimizer) EndFrame() {}

// WorkloadRatio reports the fraction of the maximum possible per-frame
// pixel workload (every pass at its full recommended resolution) that
// was actually rendered this frame, feeding back to the adaptive
// controller per spec.md §4.9's closing paragraph.
func (o *Optimizer) WorkloadRatio() float64 {
	if len(o.lastRecordedWork) == 0 {
		return 1.0
	}
	var total, max int
	for i, wh := range o.lastRecordedWork {
		w, h := wh[0], wh[1]
		max += w * h
		if o.renderedThisFrame(i) {
			total += w * h
		}
	}
	if max == 0 {
		return 1.0
	}
	return float64(total) / float64(max)
}

func (o *Optimizer) renderedThisFrame(i int) bool {
	return o.states[i].lastRenderTime == o.currentTime
}
