package model

import (
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
)

// GestureSample is one observation of an in-progress drag. Transient:
// it exists only for the duration of a single press-drag-release cycle
// and is never persisted.
type GestureSample struct {
	DX         float64
	DY         float64
	VelocityX  float64
	VelocityY  float64
	DirectionX float64
	DirectionY float64
	Phase      enums.GesturePhase
	Elapsed    time.Duration
}
