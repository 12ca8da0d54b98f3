package model

import (
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
)

// SwipeDecision is created exactly once per resolved gesture or button
// press and never mutated afterwards; rewinding produces a deletion
// effect, not an edit.
type SwipeDecision struct {
	ID          string             `json:"id"`
	CandidateID int64              `json:"candidate_id"`
	Kind        enums.DecisionKind `json:"kind"`
	CreatedAt   time.Time          `json:"created_at"`
}
