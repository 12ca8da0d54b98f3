package model

import "time"

// MatchRecord is ephemeral presentation data emitted when a reciprocal
// like is detected; the persisted match row belongs to the external
// store.
type MatchRecord struct {
	MatchID        int64     `json:"match_id"`
	OtherPetID     int64     `json:"other_pet_id"`
	OtherName      string    `json:"other_name"`
	OtherPhotoURL  string    `json:"other_photo_url"`
	ViewerPetID    int64     `json:"viewer_pet_id"`
	ViewerName     string    `json:"viewer_name"`
	ViewerPhotoURL string    `json:"viewer_photo_url"`
	CreatedAt      time.Time `json:"created_at"`
}
