package profile

import (
	"context"
	"errors"

	"backend-runnersurfers/internal/progression"
	"backend-runnersurfers/internal/quest"
)

var ErrInvalidUser = errors.New("user id required")

// Profile is the persisted per-account document.
type Profile struct {
	UserID   string               `json:"user_id"`
	Progress progression.Progress `json:"progress"`
	Quests   quest.DailyState     `json:"quests"`
}

func newProfile(userID string) Profile {
	return Profile{UserID: userID, Progress: progression.New()}
}

func (p Profile) clone() Profile {
	out := p
	out.Progress = p.Progress.Clone()
	out.Quests.Quests = append([]quest.QuestState(nil), p.Quests.Quests...)
	return out
}

// StatsDelta is what one finished run adds. Level-ups are re-derived from exp on apply.
// Quests carries the day's quest state after the run; an older state never replaces a newer one.
type StatsDelta struct {
	progression.Delta
	Quests quest.DailyState `json:"quests"`
}

func (d StatsDelta) apply(p *Profile) []int {
	levels := p.Progress.Apply(d.Delta)
	if newerQuests(d.Quests, p.Quests) {
		p.Quests = d.Quests
	}
	return levels
}

func newerQuests(next, cur quest.DailyState) bool {
	if next.Date == "" {
		return false
	}
	if next.Date != cur.Date {
		return next.Date > cur.Date
	}
	return next.DistanceKm >= cur.DistanceKm
}

// Store is implemented by the postgres-backed Service and by MemoryStore.
type Store interface {
	Load(ctx context.Context, userID string) (Profile, error)
	Mutate(ctx context.Context, userID string, fn func(*Profile) error) (Profile, error)
	IncrementProfileStats(ctx context.Context, userID string, d StatsDelta) error
}
