package catalog

var defaultBoosts = []Boost{
	{ID: "boost_sprint", Name: "Sprint Surge", DurationMinutes: 15, ScoreBonusPercent: 25, CostCoins: 300},
	{ID: "boost_tempo", Name: "Tempo Tonic", DurationMinutes: 30, ScoreBonusPercent: 50, CostCoins: 750},
	{ID: "boost_marathon", Name: "Marathon Mode", DurationMinutes: 60, ScoreBonusPercent: 100, CostCoins: 2000},
}

var defaultItems = []Item{
	{ID: "shoe_basic", Name: "Street Trainers", CoinBonusPercent: 0, ExpBonusPercent: 0, UnlockLevel: 1, PriceCoins: 0},
	{ID: "shoe_runner", Name: "Road Runner", CoinBonusPercent: 5, ExpBonusPercent: 5, UnlockLevel: 5, PriceCoins: 1500},
	{ID: "shoe_trail", Name: "Trail Blazer", CoinBonusPercent: 10, ExpBonusPercent: 8, UnlockLevel: 20, PriceCoins: 5000},
	{ID: "shoe_carbon", Name: "Carbon Plate", CoinBonusPercent: 15, ExpBonusPercent: 12, UnlockLevel: 60, PriceCoins: 15000},
	{ID: "shoe_legend", Name: "Winged Legend", CoinBonusPercent: 25, ExpBonusPercent: 20, UnlockLevel: 200, PriceCoins: 60000},
}

var defaultUpgrades = []Upgrade{
	{ID: "upgrade_score_1", Name: "Score Amplifier I", Type: UpgradeScore, BonusPercent: 5, CostCoins: 2500},
	{ID: "upgrade_score_2", Name: "Score Amplifier II", Type: UpgradeScore, BonusPercent: 10, CostCoins: 10000},
	{ID: "upgrade_exp_1", Name: "Fast Learner I", Type: UpgradeExp, BonusPercent: 5, CostCoins: 2500},
	{ID: "upgrade_exp_2", Name: "Fast Learner II", Type: UpgradeExp, BonusPercent: 10, CostCoins: 10000},
}

var defaultCatalog = mustNew(defaultBoosts, defaultItems, defaultUpgrades)

// Default returns the built-in catalog, validated at package load.
func Default() *Catalog {
	return defaultCatalog
}

func mustNew(boosts []Boost, items []Item, upgrades []Upgrade) *Catalog {
	c, err := New(boosts, items, upgrades)
	if err != nil {
		panic(err)
	}
	return c
}
