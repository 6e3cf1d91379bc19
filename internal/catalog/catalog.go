package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBoost   = errors.New("unknown boost")
	ErrUnknownItem    = errors.New("unknown item")
	ErrUnknownUpgrade = errors.New("unknown upgrade")
)

// Catalog is immutable once built; New rejects malformed definitions up front.
type Catalog struct {
	boosts   []Boost
	items    []Item
	upgrades []Upgrade

	boostByID   map[BoostID]Boost
	itemByID    map[ItemID]Item
	upgradeByID map[UpgradeID]Upgrade
}

func New(boosts []Boost, items []Item, upgrades []Upgrade) (*Catalog, error) {
	c := &Catalog{
		boostByID:   make(map[BoostID]Boost, len(boosts)),
		itemByID:    make(map[ItemID]Item, len(items)),
		upgradeByID: make(map[UpgradeID]Upgrade, len(upgrades)),
	}

	for _, b := range boosts {
		if b.ID == "" {
			return nil, errors.New("boost id required")
		}
		if _, dup := c.boostByID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate boost %q", b.ID)
		}
		if b.DurationMinutes <= 0 || b.ScoreBonusPercent < 0 || b.CostCoins < 0 {
			return nil, fmt.Errorf("boost %q: invalid values", b.ID)
		}
		c.boostByID[b.ID] = b
		c.boosts = append(c.boosts, b)
	}

	for _, it := range items {
		if it.ID == "" {
			return nil, errors.New("item id required")
		}
		if _, dup := c.itemByID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item %q", it.ID)
		}
		if it.CoinBonusPercent < 0 || it.ExpBonusPercent < 0 || it.UnlockLevel < 0 || it.PriceCoins < 0 {
			return nil, fmt.Errorf("item %q: invalid values", it.ID)
		}
		c.itemByID[it.ID] = it
		c.items = append(c.items, it)
	}

	for _, u := range upgrades {
		if u.ID == "" {
			return nil, errors.New("upgrade id required")
		}
		if _, dup := c.upgradeByID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate upgrade %q", u.ID)
		}
		if u.Type != UpgradeScore && u.Type != UpgradeExp {
			return nil, fmt.Errorf("upgrade %q: unknown type %q", u.ID, u.Type)
		}
		if u.BonusPercent < 0 || u.CostCoins < 0 {
			return nil, fmt.Errorf("upgrade %q: invalid values", u.ID)
		}
		c.upgradeByID[u.ID] = u
		c.upgrades = append(c.upgrades, u)
	}

	return c, nil
}

func (c *Catalog) Boost(id BoostID) (Boost, error) {
	b, ok := c.boostByID[id]
	if !ok {
		return Boost{}, fmt.Errorf("%w: %q", ErrUnknownBoost, id)
	}
	return b, nil
}

func (c *Catalog) Item(id ItemID) (Item, error) {
	it, ok := c.itemByID[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	return it, nil
}

func (c *Catalog) Upgrade(id UpgradeID) (Upgrade, error) {
	u, ok := c.upgradeByID[id]
	if !ok {
		return Upgrade{}, fmt.Errorf("%w: %q", ErrUnknownUpgrade, id)
	}
	return u, nil
}

func (c *Catalog) Boosts() []Boost {
	return append([]Boost(nil), c.boosts...)
}

func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Catalog) Upgrades() []Upgrade {
	return append([]Upgrade(nil), c.upgrades...)
}

// UpgradeBonuses sums score-type and exp-type bonus percents across purchased upgrades.
// Ids no longer in the catalog are skipped; purchases were validated when made.
func (c *Catalog) UpgradeBonuses(ids []UpgradeID) (scorePct, expPct float64) {
	for _, id := range ids {
		u, ok := c.upgradeByID[id]
		if !ok {
			continue
		}
		switch u.Type {
		case UpgradeScore:
			scorePct += u.BonusPercent
		case UpgradeExp:
			expPct += u.BonusPercent
		}
	}
	return scorePct, expPct
}
