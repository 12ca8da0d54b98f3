package rules

import (
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
)

// Limits carries the per-day ceilings for the quota-gated actions.
// Rewinds are flat across tiers; that asymmetry is product behavior,
// kept table-driven so it can change per tier without touching call
// sites.
type Limits struct {
	SuperLikesPerDay int
	RewindsPerDay    int
}

var tierLimits = map[enums.Tier]Limits{
	enums.TierFree:     {SuperLikesPerDay: 1, RewindsPerDay: 5},
	enums.TierPlus:     {SuperLikesPerDay: 1, RewindsPerDay: 5},
	enums.TierGold:     {SuperLikesPerDay: 5, RewindsPerDay: 5},
	enums.TierPlatinum: {SuperLikesPerDay: 5, RewindsPerDay: 5},
}

func LimitsForTier(tier enums.Tier) Limits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[enums.TierFree]
}

func LimitFor(tier enums.Tier, kind enums.QuotaKind) int {
	limits := LimitsForTier(tier)
	switch kind {
	case enums.QuotaSuperLike:
		return limits.SuperLikesPerDay
	case enums.QuotaRewind:
		return limits.RewindsPerDay
	default:
		return 0
	}
}

func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

func NextResetAt(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.UTC()
}
