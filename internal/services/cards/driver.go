package cards

import (
	"math"
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
	"github.com/pawmatch/backend/internal/domain/model"
)

// Pose is the full transform of a card at one instant.
type Pose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

type Mode string

const (
	// ModeIdle: both cards rest at their neutral poses.
	ModeIdle Mode = "idle"
	// ModeDirect: the active card mirrors the finger with zero smoothing.
	ModeDirect Mode = "direct"
	// ModeExit: the active card flies off stage while the next card
	// grows to full prominence.
	ModeExit Mode = "exit"
	// ModeSpringBack: the active card eases back to neutral after an
	// undecided release.
	ModeSpringBack Mode = "spring_back"
)

type Config struct {
	StageWidth            float64
	StageHeight           float64
	RotationDivisor       float64
	DragScale             float64
	ExitDuration          time.Duration
	SuperLikeExitDuration time.Duration
	SpringBackDuration    time.Duration
	ExitLift              float64
	ExitRotation          float64
	ExitScale             float64
	SuperLikeExitScale    float64
	NextCardRestScale     float64
	NextCardDragScale     float64
	NextCardNudgeRatio    float64
	NextCardNudgeAfter    float64
}

// Driver owns the poses of the active card and the card behind it. It
// is not goroutine safe; the engine serialises access.
type Driver struct {
	cfg Config

	mode   Mode
	active Pose
	next   Pose

	animStart time.Time
	animDur   time.Duration
	fromA     Pose
	toA       Pose
	fromN     Pose
	toN       Pose
}

func NewDriver(cfg Config) *Driver {
	if cfg.StageWidth <= 0 {
		cfg.StageWidth = 390
	}
	if cfg.StageHeight <= 0 {
		cfg.StageHeight = 844
	}
	if cfg.RotationDivisor <= 0 {
		cfg.RotationDivisor = 10
	}
	if cfg.DragScale <= 0 {
		cfg.DragScale = 1.05
	}
	if cfg.ExitDuration <= 0 {
		cfg.ExitDuration = 600 * time.Millisecond
	}
	if cfg.SuperLikeExitDuration <= 0 {
		cfg.SuperLikeExitDuration = time.Second
	}
	if cfg.SpringBackDuration <= 0 {
		cfg.SpringBackDuration = 300 * time.Millisecond
	}
	if cfg.ExitLift <= 0 {
		cfg.ExitLift = 50
	}
	if cfg.ExitRotation <= 0 {
		cfg.ExitRotation = 30
	}
	if cfg.ExitScale <= 0 {
		cfg.ExitScale = 0.9
	}
	if cfg.SuperLikeExitScale <= 0 {
		cfg.SuperLikeExitScale = 1.1
	}
	if cfg.NextCardRestScale <= 0 {
		cfg.NextCardRestScale = 0.95
	}
	if cfg.NextCardDragScale <= 0 {
		cfg.NextCardDragScale = 0.98
	}
	if cfg.NextCardNudgeRatio <= 0 {
		cfg.NextCardNudgeRatio = 0.05
	}
	if cfg.NextCardNudgeAfter <= 0 {
		cfg.NextCardNudgeAfter = 40
	}

	d := &Driver{cfg: cfg, mode: ModeIdle}
	d.active = neutralPose()
	d.next = d.nextRestPose()

	return d
}

func neutralPose() Pose {
	return Pose{Scale: 1}
}

func (d *Driver) nextRestPose() Pose {
	return Pose{Scale: d.cfg.NextCardRestScale}
}

func (d *Driver) Mode() Mode {
	return d.mode
}

// Track applies one active drag sample directly: no smoothing, no
// interpolation. Rotation follows horizontal displacement only, and the
// card behind starts creeping forward once the drag passes the nudge
// threshold.
func (d *Driver) Track(sample model.GestureSample) {
	d.mode = ModeDirect

	d.active = Pose{
		X:        sample.DX,
		Y:        sample.DY,
		Rotation: sample.DX / d.cfg.RotationDivisor,
		Scale:    d.cfg.DragScale,
	}

	d.next = d.nextRestPose()
	if math.Abs(sample.DX) > d.cfg.NextCardNudgeAfter || math.Abs(sample.DY) > d.cfg.NextCardNudgeAfter {
		d.next = Pose{
			X:     sample.DX * d.cfg.NextCardNudgeRatio,
			Scale: d.cfg.NextCardDragScale,
		}
	}
}

// StartExit launches the commit animation for the given decision and
// returns its duration. Horizontal exits fly the card 1.5 stage widths
// sideways with lift and tilt; the super-like exit sails straight up,
// slightly enlarged and held on screen longer. The card behind always
// animates to full prominence in the same window.
func (d *Driver) StartExit(kind enums.DecisionKind, now time.Time) time.Duration {
	from := d.active

	var to Pose
	dur := d.cfg.ExitDuration
	switch kind {
	case enums.DecisionSuperLike:
		to = Pose{X: from.X, Y: -d.cfg.StageHeight, Rotation: 0, Scale: d.cfg.SuperLikeExitScale}
		dur = d.cfg.SuperLikeExitDuration
	case enums.DecisionLike:
		to = Pose{
			X:        1.5 * d.cfg.StageWidth,
			Y:        -d.cfg.ExitLift,
			Rotation: d.cfg.ExitRotation,
			Scale:    d.cfg.ExitScale,
		}
	default:
		to = Pose{
			X:        -1.5 * d.cfg.StageWidth,
			Y:        d.cfg.ExitLift,
			Rotation: -d.cfg.ExitRotation,
			Scale:    d.cfg.ExitScale,
		}
	}

	d.mode = ModeExit
	d.animStart = now
	d.animDur = dur
	d.fromA = from
	d.toA = to
	d.fromN = d.next
	d.toN = neutralPose()

	return dur
}

// StartSpringBack eases the active card home after an undecided
// release. The duration is fixed regardless of how far the card sits
// from neutral.
func (d *Driver) StartSpringBack(now time.Time) time.Duration {
	d.mode = ModeSpringBack
	d.animStart = now
	d.animDur = d.cfg.SpringBackDuration
	d.fromA = d.active
	d.toA = neutralPose()
	d.fromN = d.next
	d.toN = d.nextRestPose()

	return d.animDur
}

// ActivePose evaluates the active card's pose at the given instant.
func (d *Driver) ActivePose(now time.Time) Pose {
	switch d.mode {
	case ModeExit, ModeSpringBack:
		return lerpPose(d.fromA, d.toA, d.progress(now))
	default:
		return d.active
	}
}

// NextPose evaluates the pose of the card behind the active one.
func (d *Driver) NextPose(now time.Time) Pose {
	switch d.mode {
	case ModeExit, ModeSpringBack:
		return lerpPose(d.fromN, d.toN, d.progress(now))
	default:
		return d.next
	}
}

// Settled reports whether the current animation, if any, has run to
// completion.
func (d *Driver) Settled(now time.Time) bool {
	switch d.mode {
	case ModeExit, ModeSpringBack:
		return !now.Before(d.animStart.Add(d.animDur))
	default:
		return true
	}
}

// Finish acknowledges a completed animation and returns the driver to
// idle. After an exit the next card has been promoted, so both poses
// reset to the idle arrangement.
func (d *Driver) Finish() {
	d.Reset()
}

// Reset discards any in-flight animation and restores the idle
// arrangement immediately. Used on rewind, where the restored card
// reappears at neutral rather than replaying an exit in reverse.
func (d *Driver) Reset() {
	d.mode = ModeIdle
	d.active = neutralPose()
	d.next = d.nextRestPose()
	d.animStart = time.Time{}
	d.animDur = 0
}

func (d *Driver) progress(now time.Time) float64 {
	if d.animDur <= 0 {
		return 1
	}
	elapsed := now.Sub(d.animStart)
	if elapsed <= 0 {
		return 0
	}
	t := float64(elapsed) / float64(d.animDur)
	if t >= 1 {
		return 1
	}
	return easeOutCubic(t)
}

func easeOutCubic(t float64) float64 {
	inv := 1 - t
	return 1 - inv*inv*inv
}

func lerpPose(from, to Pose, t float64) Pose {
	return Pose{
		X:        from.X + (to.X-from.X)*t,
		Y:        from.Y + (to.Y-from.Y)*t,
		Rotation: from.Rotation + (to.Rotation-from.Rotation)*t,
		Scale:    from.Scale + (to.Scale-from.Scale)*t,
	}
}
