package gestures

import (
	"math"
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
	"github.com/pawmatch/backend/internal/domain/model"
)

// Outcome is the discrete result of feeding one gesture sample to the
// classifier. At most one deciding outcome is produced per
// press-drag-release cycle.
type Outcome string

const (
	// OutcomeDragging: the pointer is still down; the sample should
	// drive the card directly.
	OutcomeDragging Outcome = "dragging"
	// OutcomeRest: released without crossing any threshold; the card
	// springs back to neutral.
	OutcomeRest Outcome = "rest"
	// OutcomeTap: near-zero displacement and duration; forwarded to the
	// host as a profile-inspection intent, never a decision.
	OutcomeTap         Outcome = "tap"
	OutcomeDecideLeft  Outcome = "decide_left"
	OutcomeDecideRight Outcome = "decide_right"
	OutcomeDecideUp    Outcome = "decide_up"
)

func (o Outcome) IsDecision() bool {
	switch o {
	case OutcomeDecideLeft, OutcomeDecideRight, OutcomeDecideUp:
		return true
	default:
		return false
	}
}

// DecisionKind maps a deciding outcome to the decision it stands for.
func (o Outcome) DecisionKind() (enums.DecisionKind, bool) {
	switch o {
	case OutcomeDecideLeft:
		return enums.DecisionDislike, true
	case OutcomeDecideRight:
		return enums.DecisionLike, true
	case OutcomeDecideUp:
		return enums.DecisionSuperLike, true
	default:
		return "", false
	}
}

type Config struct {
	TriggerDistance float64
	TriggerVelocity float64
	TapSlop         float64
	TapMaxDuration  time.Duration
}

type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.TriggerDistance <= 0 {
		cfg.TriggerDistance = 80
	}
	if cfg.TriggerVelocity <= 0 {
		cfg.TriggerVelocity = 0.3
	}
	if cfg.TapSlop <= 0 {
		cfg.TapSlop = 10
	}
	if cfg.TapMaxDuration <= 0 {
		cfg.TapMaxDuration = 250 * time.Millisecond
	}

	return &Classifier{cfg: cfg}
}

// Classify inspects a single sample of the current drag. Active samples
// always classify as dragging; the deciding classification happens once,
// on the released sample. Displacement and velocity are independent
// triggers: a fast flick with small displacement counts the same as a
// slow, large displacement. Vertical wins over horizontal when both
// trigger.
func (c *Classifier) Classify(sample model.GestureSample) Outcome {
	if sample.Phase == enums.GestureActive {
		return OutcomeDragging
	}

	if c.isTap(sample) {
		return OutcomeTap
	}

	if c.triggersUp(sample) {
		return OutcomeDecideUp
	}

	if c.triggersHorizontal(sample) {
		if c.pointsRight(sample) {
			return OutcomeDecideRight
		}
		return OutcomeDecideLeft
	}

	return OutcomeRest
}

func (c *Classifier) isTap(sample model.GestureSample) bool {
	if sample.Elapsed <= 0 || sample.Elapsed > c.cfg.TapMaxDuration {
		return false
	}
	return math.Abs(sample.DX) <= c.cfg.TapSlop && math.Abs(sample.DY) <= c.cfg.TapSlop
}

func (c *Classifier) triggersUp(sample model.GestureSample) bool {
	if -sample.DY > c.cfg.TriggerDistance {
		return true
	}
	upward := sample.DirectionY < 0 || (sample.DirectionY == 0 && sample.DY < 0)
	return upward && sample.VelocityY > c.cfg.TriggerVelocity
}

func (c *Classifier) triggersHorizontal(sample model.GestureSample) bool {
	if math.Abs(sample.DX) > c.cfg.TriggerDistance {
		return true
	}
	return sample.VelocityX > c.cfg.TriggerVelocity
}

func (c *Classifier) pointsRight(sample model.GestureSample) bool {
	if sample.DX != 0 {
		return sample.DX > 0
	}
	return sample.DirectionX >= 0
}
