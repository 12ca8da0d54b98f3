package model

import "time"

// Candidate is one swipeable profile. Immutable once loaded into the
// queue for a session; only the queue cursor moves.
type Candidate struct {
	PetID         int64     `json:"pet_id"`
	OwnerUserID   int64     `json:"owner_user_id"`
	Name          string    `json:"name"`
	Breed         string    `json:"breed"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender"`
	Verified      bool      `json:"verified"`
	Description   string    `json:"description"`
	PhotoKey      string    `json:"photo_key"`
	PhotoURL      string    `json:"photo_url"`
	OwnerName     string    `json:"owner_name"`
	Lat           *float64  `json:"lat,omitempty"`
	Lon           *float64  `json:"lon,omitempty"`
	DistanceMiles *float64  `json:"distance_miles,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
