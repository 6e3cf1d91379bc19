package progression

import "math"

// ExpNeeded is the exp required to advance one level. One unit of exp is one percent of a level.
const ExpNeeded = 100.0

// SkillPointsPerLevel is granted on every level-up.
const SkillPointsPerLevel = 3

// SkillBonusPercent is the flat bonus each invested skill point yields.
const SkillBonusPercent = 1.0

type expStep struct {
	maxLevel int
	perKm    float64
}

var expSteps = []expStep{
	{50, 20},
	{100, 15},
	{200, 10},
	{300, 7},
	{400, 5},
	{500, 3},
}

// ExpPerKm returns the percentage of a level earned per kilometer.
func ExpPerKm(level int) float64 {
	for _, s := range expSteps {
		if level <= s.maxLevel {
			return s.perKm
		}
	}
	return 1
}

// ExpNeededFor returns the exp needed to leave the given level.
func ExpNeededFor(level int) float64 {
	return ExpNeeded
}

type coinStep struct {
	maxLevel int
	perLevel float64
}

const (
	baseCoinsPerKm  = 100.0
	coinLadderStart = 10
)

var coinSteps = []coinStep{
	{50, 2},
	{100, 3},
	{200, 4},
	{300, 5},
	{400, 6},
	{500, 7},
	{math.MaxInt, 8},
}

// CoinsPerKm grows linearly inside each bracket and carries the value reached at
// the previous breakpoint forward, so it never jumps by more than one step.
func CoinsPerKm(level int) float64 {
	if level < coinLadderStart {
		return baseCoinsPerKm
	}
	coins := baseCoinsPerKm
	prev := coinLadderStart - 1
	for _, s := range coinSteps {
		if level <= s.maxLevel {
			return coins + float64(level-prev)*s.perLevel
		}
		coins += float64(s.maxLevel-prev) * s.perLevel
		prev = s.maxLevel
	}
	return coins
}

// ScoreMultiplier adds 0.5% every five levels.
func ScoreMultiplier(level int) float64 {
	if level < 0 {
		level = 0
	}
	return 1 + math.Floor(float64(level)/5)*0.005
}

type Rank struct {
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	MinLevel int    `json:"min_level"`
}

var ranks = []Rank{
	{Name: "Rookie", Icon: "sneaker", MinLevel: 0},
	{Name: "Jogger", Icon: "bolt", MinLevel: 20},
	{Name: "Runner", Icon: "flame", MinLevel: 60},
	{Name: "Pacer", Icon: "medal", MinLevel: 100},
	{Name: "Marathoner", Icon: "trophy", MinLevel: 200},
	{Name: "Elite", Icon: "crown", MinLevel: 350},
	{Name: "Legend", Icon: "star", MinLevel: 450},
}

// RankFor returns the highest rank whose threshold the level has reached.
func RankFor(level int) Rank {
	r := ranks[0]
	for _, candidate := range ranks {
		if level >= candidate.MinLevel {
			r = candidate
		}
	}
	return r
}

// Ranks returns a copy of the rank ladder.
func Ranks() []Rank {
	out := make([]Rank, len(ranks))
	copy(out, ranks)
	return out
}

type ReputationTier struct {
	Name              string  `json:"name"`
	MinDistanceKm     float64 `json:"min_distance_km"`
	ScoreBonusPercent float64 `json:"score_bonus_percent"`
}

var reputationTiers = []ReputationTier{
	{Name: "Unknown", MinDistanceKm: 0, ScoreBonusPercent: 0},
	{Name: "Local", MinDistanceKm: 50, ScoreBonusPercent: 1},
	{Name: "Known", MinDistanceKm: 150, ScoreBonusPercent: 2},
	{Name: "Respected", MinDistanceKm: 300, ScoreBonusPercent: 3},
	{Name: "Famous", MinDistanceKm: 600, ScoreBonusPercent: 5},
	{Name: "Iconic", MinDistanceKm: 1000, ScoreBonusPercent: 8},
}

// ReputationTierFor is keyed by lifetime distance and only feeds the profile display.
func ReputationTierFor(totalDistanceKm float64) ReputationTier {
	t := reputationTiers[0]
	for _, candidate := range reputationTiers {
		if totalDistanceKm >= candidate.MinDistanceKm {
			t = candidate
		}
	}
	return t
}

type ReputationLevel struct {
	Level     int    `json:"level"`
	Name      string `json:"name"`
	MinPoints int64  `json:"min_points"`
}

var reputationLevels = []ReputationLevel{
	{Level: 1, Name: "Newcomer", MinPoints: 0},
	{Level: 2, Name: "Regular", MinPoints: 1000},
	{Level: 3, Name: "Dedicated", MinPoints: 3000},
	{Level: 4, Name: "Veteran", MinPoints: 6000},
	{Level: 5, Name: "Champion", MinPoints: 10000},
	{Level: 6, Name: "Mythic", MinPoints: 20000},
}

// ReputationLevelFor is keyed by accumulated reputation points.
func ReputationLevelFor(points int64) ReputationLevel {
	l := reputationLevels[0]
	for _, candidate := range reputationLevels {
		if points >= candidate.MinPoints {
			l = candidate
		}
	}
	return l
}

// ReputationForDistance maps a run's distance to reputation points.
func ReputationForDistance(distanceKm float64) int64 {
	switch {
	case distanceKm >= 8:
		return 800
	case distanceKm >= 7:
		return 600
	case distanceKm >= 5:
		return 300
	case distanceKm >= 2:
		return 100
	default:
		return 0
	}
}
