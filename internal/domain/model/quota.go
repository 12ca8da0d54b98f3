package model

// QuotaState is the per-day usage blob persisted by the local
// persistence collaborator, keyed by the signed-in identity. Limits are
// not stored; they are recomputed from the subscription tier on every
// check.
type QuotaState struct {
	SuperLikesUsedToday int    `json:"super_likes_used_today"`
	RewindsUsedToday    int    `json:"rewinds_used_today"`
	DayKey              string `json:"day_key"`
}
