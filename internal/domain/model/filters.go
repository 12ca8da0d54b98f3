package model

const (
	AnyBreed  = "Any Breed"
	AnyGender = "any"
)

// Filters mirrors the discovery filter sheet. Zero values fall back to
// the configured defaults when the queue is built.
type Filters struct {
	Breed            string  `json:"breed"`
	MaxDistanceMiles float64 `json:"max_distance_miles"`
	AgeMin           int     `json:"age_min"`
	AgeMax           int     `json:"age_max"`
	Gender           string  `json:"gender"`
	VerifiedOnly     bool    `json:"verified_only"`
}
