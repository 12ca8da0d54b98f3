package dto

// DecisionRequest is a button-press decision on the current candidate.
type DecisionRequest struct {
	Kind string `json:"kind"`
}

// GestureRequest is one drag sample forwarded by the client. Velocities
// are magnitudes in px/ms; directions are -1, 0 or 1.
type GestureRequest struct {
	DX         float64 `json:"dx"`
	DY         float64 `json:"dy"`
	VelocityX  float64 `json:"velocity_x"`
	VelocityY  float64 `json:"velocity_y"`
	DirectionX float64 `json:"direction_x"`
	DirectionY float64 `json:"direction_y"`
	Phase      string  `json:"phase"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}

type FiltersRequest struct {
	Breed            string  `json:"breed"`
	MaxDistanceMiles float64 `json:"max_distance_miles"`
	AgeMin           int     `json:"age_min"`
	AgeMax           int     `json:"age_max"`
	Gender           string  `json:"gender"`
	VerifiedOnly     bool    `json:"verified_only"`
}

type DecisionResponse struct {
	DecisionID string `json:"decision_id"`
	Kind       string `json:"kind"`
	ExitMS     int64  `json:"exit_ms"`
}

type GestureResponse struct {
	Outcome      string            `json:"outcome"`
	Decision     *DecisionResponse `json:"decision,omitempty"`
	AnimationMS  int64             `json:"animation_ms,omitempty"`
	InspectPetID int64             `json:"inspect_pet_id,omitempty"`
}

type RewindResponse struct {
	DecisionID    string `json:"decision_id"`
	RestoredPetID int64  `json:"restored_pet_id"`
	RewindsLeft   int    `json:"rewinds_left"`
}

type FiltersResponse struct {
	Applied  bool `json:"applied"`
	Deferred bool `json:"deferred"`
}
