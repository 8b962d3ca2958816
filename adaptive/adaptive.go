// Package adaptive implements the resolution-scale controller that
// keeps buffer-pass render targets at the largest size the host GPU
// can sustain at the target frame rate (spec.md §4.8). It has no
// teacher analogue — richinsley-goshadertoy always renders at native
// resolution — so this is built directly from spec.md in the
// teacher's plain-struct-plus-methods idiom.
package adaptive

import "math"

// Config holds every tunable of the controller (spec.md §4.8).
type Config struct {
	TargetFPS                 float64
	MinScale                  float64
	MaxScale                  float64
	DeadbandFPS               float64
	EMAAlpha                  float64
	ScaleDownRatePerSecond    float64
	ScaleUpRatePerSecond      float64
	StabilityThresholdSeconds float64
	UseGPUTiming              bool
	Verbose                   bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		TargetFPS:                 60,
		MinScale:                  0.25,
		MaxScale:                  1.0,
		DeadbandFPS:               2.0,
		EMAAlpha:                  0.15,
		ScaleDownRatePerSecond:    0.5,
		ScaleUpRatePerSecond:      0.2,
		StabilityThresholdSeconds: 1.0,
		UseGPUTiming:              true,
		Verbose:                   false,
	}
}

// Phase is the controller's current lifecycle stage.
type Phase int

const (
	Calibrating Phase = iota
	SteadyState
)

const calibrationFrameCount = 12
const calibrationSeconds = 0.2

// Controller tracks EMA frame time / fps / derivative and drives
// current_scale toward a target the steady-state adjustment step
// computes, per spec.md §4.8.
type Controller struct {
	cfg Config

	phase           Phase
	calibFrames     int
	calibElapsed    float64
	calibTimeSum    float64

	lastWallTime    float64
	haveLastWall    bool

	emaFrameTime float64
	currentFPS   float64
	emaDeltaFPS  float64
	havePrevFPS  bool

	stableTime      float64
	locked          bool
	lockedScale     float64
	adaptiveDeadband float64

	lastAdjustTime   float64
	haveLastAdjust   bool
	lastDirection    int // -1 down, +1 up, 0 none
	reversalWindowStart float64
	reversalCount    int

	currentScale float64
	targetScale  float64

	emergency bool
	thermalThrottling bool

	pendingGPUNanos uint64
	havePendingGPU  bool

	workloadRatio float64
}

// New constructs a Controller at scale 1.0, clamped into [min,max].
func New(cfg Config) *Controller {
	c := &Controller{cfg: cfg, phase: Calibrating}
	c.currentScale = clamp(1.0, cfg.MinScale, cfg.MaxScale)
	c.targetScale = c.currentScale
	c.adaptiveDeadband = cfg.DeadbandFPS
	c.workloadRatio = 1.0
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetThermalThrottling lets the host report a thermal-throttling
// signal, consumed as part of the emergency condition (spec.md §4.8).
func (c *Controller) SetThermalThrottling(throttling bool) {
	c.thermalThrottling = throttling
}

// ReportGPUTimerResult feeds back a previous frame's completed GPU
// timer query, per §5's double-buffered-handle tolerance.
func (c *Controller) ReportGPUTimerResult(nanos uint64) {
	c.pendingGPUNanos = nanos
	c.havePendingGPU = true
}

// ReportWorkloadRatio feeds back the multipass optimizer's per-frame
// effective-workload ratio (rendered pixels versus each pass's full
// recommended extent): a ratio well under 1 means passes are already
// running cheap, so the controller can raise scale faster instead of
// waiting to confirm headroom the slow way (spec.md §4.9's optimizer/
// controller coupling).
func (c *Controller) ReportWorkloadRatio(ratio float64) {
	if ratio <= 0 {
		ratio = 1.0
	}
	c.workloadRatio = ratio
}

// Update advances the controller by one frame at wall_time (seconds,
// monotonic, host-supplied — never time.Now() internally, so the
// controller is deterministic and testable without real clocks).
func (c *Controller) Update(wallTime float64) {
	dt := 0.0
	if c.haveLastWall {
		dt = wallTime - c.lastWallTime
	}
	c.lastWallTime = wallTime
	c.haveLastWall = true

	frameTime := dt
	if c.cfg.UseGPUTiming && c.havePendingGPU {
		frameTime = float64(c.pendingGPUNanos) / 1e9
		c.havePendingGPU = false
	}
	if frameTime <= 0 {
		frameTime = 1.0 / c.cfg.TargetFPS
	}

	switch c.phase {
	case Calibrating:
		c.calibFrames++
		c.calibElapsed += dt
		c.calibTimeSum += frameTime
		if c.calibFrames >= calibrationFrameCount || c.calibElapsed >= calibrationSeconds {
			c.finishCalibration()
		}
	case SteadyState:
		c.stepSteadyState(frameTime, wallTime, dt)
	}
}

func (c *Controller) finishCalibration() {
	measured := c.calibTimeSum / float64(c.calibFrames)
	c.emaFrameTime = measured
	c.currentFPS = 1.0 / measured
	c.havePrevFPS = true

	measuredFPS := c.currentFPS
	if measuredFPS < c.cfg.TargetFPS*0.92 {
		ratio := measuredFPS / c.cfg.TargetFPS
		c.currentScale = clamp(c.currentScale*math.Sqrt(ratio)*0.88, c.cfg.MinScale, c.cfg.MaxScale)
		c.targetScale = c.currentScale
	}
	c.phase = SteadyState
}

func (c *Controller) stepSteadyState(frameTime, wallTime, dt float64) {
	c.emaFrameTime = ema(c.emaFrameTime, frameTime, c.cfg.EMAAlpha)
	newFPS := 1.0 / c.emaFrameTime

	if c.havePrevFPS {
		delta := newFPS - c.currentFPS
		c.emaDeltaFPS = ema(c.emaDeltaFPS, delta, c.cfg.EMAAlpha)
	}
	c.currentFPS = newFPS
	c.havePrevFPS = true

	c.updateStability(dt)
	c.updateEmergency()

	if !c.locked {
		c.maybeAdjust(wallTime, dt)
	}

	c.interpolateScale()
}

func ema(prev, sample, alpha float64) float64 {
	if prev == 0 {
		return sample
	}
	return prev*(1-alpha) + sample*alpha
}

func (c *Controller) updateStability(dt float64) {
	within := math.Abs(c.currentFPS-c.cfg.TargetFPS) < c.adaptiveDeadband+1 && math.Abs(c.emaDeltaFPS) < 2
	if within {
		c.stableTime += dt
	} else {
		c.stableTime = 0
	}
	c.adaptiveDeadband = c.cfg.DeadbandFPS * (1 + math.Min(c.stableTime/c.cfg.StabilityThresholdSeconds, 1))

	if c.stableTime >= c.cfg.StabilityThresholdSeconds {
		c.locked = true
		c.lockedScale = c.currentScale
	}

	if c.locked {
		err := math.Abs(c.currentFPS - c.cfg.TargetFPS)
		if err > 3*c.adaptiveDeadband {
			c.locked = false
		}
	}
}

func (c *Controller) updateEmergency() {
	c.emergency = c.thermalThrottling || c.currentFPS < c.cfg.TargetFPS*0.5
}

func (c *Controller) maybeAdjust(wallTime, dt float64) {
	if c.haveLastAdjust && wallTime-c.lastAdjustTime < 0.1 {
		return
	}
	c.lastAdjustTime = wallTime
	c.haveLastAdjust = true

	effectiveFPS := c.currentFPS + c.emaDeltaFPS*0.3
	deadband := c.cfg.DeadbandFPS

	direction := 0
	switch {
	case effectiveFPS < c.cfg.TargetFPS-deadband:
		errRatio := (c.cfg.TargetFPS - effectiveFPS) / c.cfg.TargetFPS
		step := errRatio - c.emaDeltaFPS/c.cfg.TargetFPS*0.3
		if step < 0 {
			step = 0
		}
		maxStep := c.cfg.ScaleDownRatePerSecond * dt
		if step > maxStep {
			step = maxStep
		}
		c.targetScale = clamp(c.targetScale-step, c.cfg.MinScale, c.cfg.MaxScale)
		direction = -1
	case effectiveFPS > c.cfg.TargetFPS+deadband+1 && c.emaDeltaFPS >= -0.5 && c.currentScale < c.cfg.MaxScale-0.01:
		desired := c.currentScale * math.Sqrt(c.currentFPS/c.cfg.TargetFPS)
		headroomBonus := 1.0
		if c.workloadRatio < 0.9 {
			headroomBonus = 1.0 / math.Max(c.workloadRatio, 0.25)
		}
		maxStep := c.cfg.ScaleUpRatePerSecond * dt * headroomBonus
		step := desired - c.currentScale
		if step > maxStep {
			step = maxStep
		}
		if step > 0 {
			c.targetScale = clamp(c.targetScale+step, c.cfg.MinScale, c.cfg.MaxScale)
			direction = 1
		}
	}

	if direction != 0 {
		c.trackReversal(direction, wallTime)
	}
}

func (c *Controller) trackReversal(direction int, wallTime float64) {
	if c.reversalCount == 0 && c.lastDirection == 0 {
		c.reversalWindowStart = wallTime
	}
	if wallTime-c.reversalWindowStart > 1.0 {
		c.reversalCount = 0
		c.reversalWindowStart = wallTime
	}
	if c.lastDirection != 0 && direction != c.lastDirection {
		c.reversalCount++
	}
	c.lastDirection = direction

	if c.reversalCount >= 2 {
		c.targetScale = (c.targetScale + c.currentScale) / 2
		c.locked = true
		c.lockedScale = c.targetScale
		c.reversalCount = 0
	}
}

func (c *Controller) interpolateScale() {
	diff := c.targetScale - c.currentScale
	if math.Abs(diff) < 0.0003 {
		c.currentScale = c.targetScale
		return
	}
	rate := 0.12
	if math.Abs(diff) > 0.1 {
		rate = 0.35
	}
	c.currentScale += diff * rate
}

// CurrentScale is the resolution scale the render orchestrator should
// apply to buffer passes this frame.
func (c *Controller) CurrentScale() float64 { return c.currentScale }

// CurrentFPS is the controller's current EMA-smoothed fps estimate.
func (c *Controller) CurrentFPS() float64 { return c.currentFPS }

// Locked reports whether the controller has settled and stopped
// adjusting scale.
func (c *Controller) Locked() bool { return c.locked }

// Emergency reports the emergency condition consumed by the multipass
// optimizer (spec.md §4.8). A thermal-throttling signal counts as soon
// as it is reported, including during calibration.
func (c *Controller) Emergency() bool { return c.emergency || c.thermalThrottling }

// FPSRatio is current_fps / target_fps, used by the render orchestrator
// to choose the optimizer's Normal/Aggressive/Emergency mode (spec.md
// §4.7 step 4).
func (c *Controller) FPSRatio() float64 {
	if c.cfg.TargetFPS == 0 {
		return 1
	}
	return c.currentFPS / c.cfg.TargetFPS
}

// StabilityRatio is stable_time / threshold, clamped to [0,1].
func (c *Controller) StabilityRatio() float64 {
	return math.Min(c.stableTime/c.cfg.StabilityThresholdSeconds, 1)
}

// Phase exposes the current lifecycle stage, mostly for tests.
func (c *Controller) Phase() Phase { return c.phase }

// Reset returns the controller to its initial calibrating state at
// scale 1.0, per the engine-level reset() operation (spec.md §6).
func (c *Controller) Reset() {
	cfg := c.cfg
	*c = *New(cfg)
}
