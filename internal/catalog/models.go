package catalog

import "time"

type BoostID string

type ItemID string

type UpgradeID string

type UpgradeType string

const (
	UpgradeScore UpgradeType = "score"
	UpgradeExp   UpgradeType = "exp"
)

type Boost struct {
	ID                BoostID `json:"id"`
	Name              string  `json:"name"`
	DurationMinutes   int     `json:"duration_minutes"`
	ScoreBonusPercent float64 `json:"score_bonus_percent"`
	CostCoins         int64   `json:"cost_coins"`
}

func (b Boost) Duration() time.Duration {
	return time.Duration(b.DurationMinutes) * time.Minute
}

// Item is an equippable shoe.
type Item struct {
	ID               ItemID  `json:"id"`
	Name             string  `json:"name"`
	CoinBonusPercent float64 `json:"coin_bonus_percent"`
	ExpBonusPercent  float64 `json:"exp_bonus_percent"`
	UnlockLevel      int     `json:"unlock_level"`
	PriceCoins       int64   `json:"price_coins"`
}

// Upgrade is a permanent one-time purchase.
type Upgrade struct {
	ID           UpgradeID   `json:"id"`
	Name         string      `json:"name"`
	Type         UpgradeType `json:"type"`
	BonusPercent float64     `json:"bonus_percent"`
	CostCoins    int64       `json:"cost_coins"`
}

type ActiveBoost struct {
	ID     BoostID   `json:"id"`
	EndsAt time.Time `json:"ends_at"`
}

// Active reports whether the boost is unexpired at now. A nil boost is never active.
func (a *ActiveBoost) Active(now time.Time) bool {
	return a != nil && !now.After(a.EndsAt)
}
