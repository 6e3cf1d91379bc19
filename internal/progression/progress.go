package progression

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"backend-runnersurfers/internal/catalog"
)

var (
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrLevelLocked       = errors.New("level too low")
	ErrAlreadyOwned      = errors.New("already owned")
	ErrNotOwned          = errors.New("not owned")
	ErrNoSkillPoints     = errors.New("not enough skill points")
	ErrBoostActive       = errors.New("a boost is already active")
	ErrInvalidSkill      = errors.New("invalid skill investment")
)

type SkillKind string

const (
	SkillCoins SkillKind = "coins"
	SkillScore SkillKind = "score"
)

// Progress is the persistent per-account state. All mutation goes through its methods.
type Progress struct {
	Level              int                  `json:"level"`
	Exp                float64              `json:"exp"`
	TotalScore         int64                `json:"total_score"`
	Coins              int64                `json:"coins"`
	TotalDistanceKm    float64              `json:"total_distance_km"`
	Reputation         int64                `json:"reputation"`
	SkillPoints        int                  `json:"skill_points"`
	SkillCoinsInvested int                  `json:"skill_coins_invested"`
	SkillScoreInvested int                  `json:"skill_score_invested"`
	EquippedItem       catalog.ItemID       `json:"equipped_item,omitempty"`
	OwnedItems         []catalog.ItemID     `json:"owned_items"`
	PurchasedUpgrades  []catalog.UpgradeID  `json:"purchased_upgrades"`
	ActiveBoost        *catalog.ActiveBoost `json:"active_boost,omitempty"`
}

func New() Progress {
	return Progress{Level: 1}
}

// Delta is what a finished run adds to the profile.
type Delta struct {
	Score      int64   `json:"score_earned"`
	Exp        float64 `json:"exp_earned"`
	Coins      int64   `json:"coins_earned"`
	Reputation int64   `json:"reputation_earned"`
	DistanceKm float64 `json:"distance_run"`
}

// AddExp adds exp and drains every level-up it causes. It returns the levels reached, in order.
func (p *Progress) AddExp(amount float64) []int {
	if p.Level < 1 {
		p.Level = 1
	}
	if amount > 0 {
		p.Exp += amount
	}
	var reached []int
	for p.Exp >= ExpNeededFor(p.Level) {
		p.Exp -= ExpNeededFor(p.Level)
		p.Level++
		p.SkillPoints += SkillPointsPerLevel
		reached = append(reached, p.Level)
	}
	return reached
}

// Apply adds a run's rewards and returns the levels gained.
func (p *Progress) Apply(d Delta) []int {
	if d.Score > 0 {
		p.TotalScore += d.Score
	}
	if d.Coins > 0 {
		p.Coins += d.Coins
	}
	if d.Reputation > 0 {
		p.Reputation += d.Reputation
	}
	if d.DistanceKm > 0 {
		p.TotalDistanceKm += d.DistanceKm
	}
	return p.AddExp(d.Exp)
}

func (p Progress) Owns(id catalog.ItemID) bool {
	return slices.Contains(p.OwnedItems, id)
}

func (p Progress) HasUpgrade(id catalog.UpgradeID) bool {
	return slices.Contains(p.PurchasedUpgrades, id)
}

func (p *Progress) spend(amount int64) error {
	if p.Coins < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientCoins, p.Coins, amount)
	}
	p.Coins -= amount
	return nil
}

func (p *Progress) BuyItem(c *catalog.Catalog, id catalog.ItemID) error {
	item, err := c.Item(id)
	if err != nil {
		return err
	}
	if p.Owns(id) {
		return ErrAlreadyOwned
	}
	if p.Level < item.UnlockLevel {
		return fmt.Errorf("%w: %q unlocks at level %d", ErrLevelLocked, id, item.UnlockLevel)
	}
	if err := p.spend(item.PriceCoins); err != nil {
		return err
	}
	p.OwnedItems = append(p.OwnedItems, id)
	return nil
}

// Equip replaces the equipped item; at most one item is equipped.
func (p *Progress) Equip(c *catalog.Catalog, id catalog.ItemID) error {
	if _, err := c.Item(id); err != nil {
		return err
	}
	if !p.Owns(id) {
		return ErrNotOwned
	}
	p.EquippedItem = id
	return nil
}

func (p *Progress) BuyUpgrade(c *catalog.Catalog, id catalog.UpgradeID) error {
	u, err := c.Upgrade(id)
	if err != nil {
		return err
	}
	if p.HasUpgrade(id) {
		return ErrAlreadyOwned
	}
	if err := p.spend(u.CostCoins); err != nil {
		return err
	}
	p.PurchasedUpgrades = append(p.PurchasedUpgrades, id)
	return nil
}

func (p *Progress) ActivateBoost(c *catalog.Catalog, id catalog.BoostID, now time.Time) error {
	b, err := c.Boost(id)
	if err != nil {
		return err
	}
	if p.ActiveBoost.Active(now) {
		return ErrBoostActive
	}
	if err := p.spend(b.CostCoins); err != nil {
		return err
	}
	p.ActiveBoost = &catalog.ActiveBoost{ID: id, EndsAt: now.Add(b.Duration())}
	return nil
}

func (p *Progress) DeactivateBoost() {
	p.ActiveBoost = nil
}

// ExpireBoost clears a boost whose end time has passed and reports which one it was.
func (p *Progress) ExpireBoost(now time.Time) (catalog.BoostID, bool) {
	if p.ActiveBoost == nil || p.ActiveBoost.Active(now) {
		return "", false
	}
	id := p.ActiveBoost.ID
	p.ActiveBoost = nil
	return id, true
}

func (p *Progress) InvestSkill(kind SkillKind, points int) error {
	if points <= 0 {
		return fmt.Errorf("%w: points must be positive", ErrInvalidSkill)
	}
	if p.SkillPoints < points {
		return ErrNoSkillPoints
	}
	switch kind {
	case SkillCoins:
		p.SkillCoinsInvested += points
	case SkillScore:
		p.SkillScoreInvested += points
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSkill, kind)
	}
	p.SkillPoints -= points
	return nil
}

// ItemBonuses returns the equipped item's coin and exp bonus percents.
func (p Progress) ItemBonuses(c *catalog.Catalog) (coinPct, expPct float64) {
	if p.EquippedItem == "" {
		return 0, 0
	}
	item, err := c.Item(p.EquippedItem)
	if err != nil {
		return 0, 0
	}
	return item.CoinBonusPercent, item.ExpBonusPercent
}

// BoostBonus returns the active boost's score bonus percent, or 0 once expired.
func (p Progress) BoostBonus(c *catalog.Catalog, now time.Time) float64 {
	if !p.ActiveBoost.Active(now) {
		return 0
	}
	b, err := c.Boost(p.ActiveBoost.ID)
	if err != nil {
		return 0
	}
	return b.ScoreBonusPercent
}

func (p Progress) SkillCoinsBonus() float64 {
	return float64(p.SkillCoinsInvested) * SkillBonusPercent
}

func (p Progress) SkillScoreBonus() float64 {
	return float64(p.SkillScoreInvested) * SkillBonusPercent
}

// Clone returns a deep copy safe to hand to readers.
func (p Progress) Clone() Progress {
	out := p
	out.OwnedItems = slices.Clone(p.OwnedItems)
	out.PurchasedUpgrades = slices.Clone(p.PurchasedUpgrades)
	if p.ActiveBoost != nil {
		b := *p.ActiveBoost
		out.ActiveBoost = &b
	}
	return out
}

var expMilestones = []float64{10, 25, 50, 75, 100}

// CrossedExpMilestones lists the level-percentage milestones passed going from before to after.
func CrossedExpMilestones(before, after float64) []int {
	var out []int
	for _, m := range expMilestones {
		if before < m && after >= m {
			out = append(out, int(m))
		}
	}
	return out
}
