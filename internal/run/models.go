package run

import (
	"time"

	"backend-runnersurfers/internal/progression"
	"backend-runnersurfers/internal/quest"
	"backend-runnersurfers/internal/tracking"

	"github.com/google/uuid"
)

// Session is the in-progress run as the store sees it.
type Session struct {
	StartedAt  time.Time            `json:"started_at"`
	DistanceKm float64              `json:"distance_km"`
	Path       []tracking.PathPoint `json:"path"`
	Score      int64                `json:"score"`
	SpeedKmh   float64              `json:"speed_kmh"`
}

func (s Session) clone() Session {
	out := s
	out.Path = append([]tracking.PathPoint(nil), s.Path...)
	return out
}

// Run is the persisted record of a finished run. It never changes after creation.
type Run struct {
	ID               uuid.UUID            `json:"id"`
	UserID           string               `json:"user_id"`
	Date             time.Time            `json:"date"`
	DistanceKm       float64              `json:"distance_km"`
	DurationSeconds  int64                `json:"duration_seconds"`
	AvgSpeedKmh      float64              `json:"avg_speed_kmh"`
	Calories         int64                `json:"calories"`
	ScoreEarned      int64                `json:"score_earned"`
	ExpEarned        int64                `json:"exp_earned"`
	CoinsEarned      int64                `json:"coins_earned"`
	ReputationEarned int64                `json:"reputation_earned"`
	QuestExp         float64              `json:"quest_exp"`
	QuestCoins       int64                `json:"quest_coins"`
	Path             []tracking.PathPoint `json:"path"`
}

// RewardInput carries everything the reward chain reads. It is built once at run end.
type RewardInput struct {
	Level        int
	DistanceKm   float64
	SessionScore int64
	StartedAt    time.Time
	EndedAt      time.Time
	WeightKg     float64

	ItemCoinBonusPct     float64
	ItemExpBonusPct      float64
	SkillCoinsBonusPct   float64
	SkillScoreBonusPct   float64
	UpgradeScoreBonusPct float64
	UpgradeExpBonusPct   float64

	Quests quest.Batch
}

type Rewards struct {
	DurationSeconds int64   `json:"duration_seconds"`
	AvgSpeedKmh     float64 `json:"avg_speed_kmh"`
	Calories        int64   `json:"calories"`

	RawExp     int64 `json:"raw_exp"`
	Coins      int64 `json:"coins"`
	SkillScore int64 `json:"skill_score"`
	Reputation int64 `json:"reputation"`
	Score      int64 `json:"score"`
	Exp        int64 `json:"exp"`

	QuestExp   float64     `json:"quest_exp"`
	QuestCoins int64       `json:"quest_coins"`
	Quests     quest.Batch `json:"quests"`
}

// Delta folds run and quest rewards into one profile increment.
func (r Rewards) Delta(distanceKm float64) progression.Delta {
	return progression.Delta{
		Score:      r.Score,
		Exp:        float64(r.Exp) + r.QuestExp,
		Coins:      r.Coins + r.QuestCoins,
		Reputation: r.Reputation,
		DistanceKm: distanceKm,
	}
}

func newRun(userID string, s Session, r Rewards, endedAt time.Time) Run {
	return Run{
		ID:               uuid.New(),
		UserID:           userID,
		Date:             endedAt,
		DistanceKm:       s.DistanceKm,
		DurationSeconds:  r.DurationSeconds,
		AvgSpeedKmh:      r.AvgSpeedKmh,
		Calories:         r.Calories,
		ScoreEarned:      r.Score,
		ExpEarned:        r.Exp,
		CoinsEarned:      r.Coins,
		ReputationEarned: r.Reputation,
		QuestExp:         r.QuestExp,
		QuestCoins:       r.QuestCoins,
		Path:             s.Path,
	}
}
