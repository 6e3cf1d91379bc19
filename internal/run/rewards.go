package run

import (
	"math"

	"backend-runnersurfers/internal/progression"
	"backend-runnersurfers/internal/shared/geo"
)

// CalculateRewards turns a finished session into rewards. Order matters: skill bonuses
// apply before permanent upgrades, and quest rewards are added on top, never compounded.
func CalculateRewards(in RewardInput) Rewards {
	var r Rewards
	level := in.Level
	if level < 1 {
		level = 1
	}
	dist := math.Max(in.DistanceKm, 0)

	dur := in.EndedAt.Sub(in.StartedAt)
	if dur > 0 {
		r.DurationSeconds = int64(dur.Seconds())
	}
	if r.DurationSeconds > 0 {
		r.AvgSpeedKmh = dist / (float64(r.DurationSeconds) / 3600)
	}
	r.Calories = int64(geo.CaloriesFromDistance(dist, in.WeightKg))

	r.RawExp = int64(math.Floor(dist * progression.ExpNeededFor(level+1) * progression.ExpPerKm(level) / 100 * pct(in.ItemExpBonusPct)))
	r.Coins = int64(math.Floor(dist * progression.CoinsPerKm(level) * pct(in.ItemCoinBonusPct) * pct(in.SkillCoinsBonusPct)))
	r.SkillScore = int64(math.Floor(float64(in.SessionScore) * pct(in.SkillScoreBonusPct)))
	r.Reputation = progression.ReputationForDistance(dist)

	r.Score = int64(math.Floor(float64(r.SkillScore) * pct(in.UpgradeScoreBonusPct)))
	r.Exp = int64(math.Floor(float64(r.RawExp) * pct(in.UpgradeExpBonusPct)))

	r.Quests = in.Quests
	r.QuestExp = in.Quests.ExpPercent
	r.QuestCoins = in.Quests.Coins
	return r
}

func pct(bonus float64) float64 {
	return 1 + bonus/100
}
