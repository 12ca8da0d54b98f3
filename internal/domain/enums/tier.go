package enums

type Tier string

const (
	TierFree     Tier = "free"
	TierPlus     Tier = "plus"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPlus, TierGold, TierPlatinum:
		return true
	default:
		return false
	}
}
