package enums

type DecisionKind string

const (
	DecisionLike      DecisionKind = "LIKE"
	DecisionDislike   DecisionKind = "DISLIKE"
	DecisionSuperLike DecisionKind = "SUPERLIKE"
)

func (k DecisionKind) Valid() bool {
	switch k {
	case DecisionLike, DecisionDislike, DecisionSuperLike:
		return true
	default:
		return false
	}
}

// IsLike reports whether the decision produces a persisted like effect.
func (k DecisionKind) IsLike() bool {
	return k == DecisionLike || k == DecisionSuperLike
}
