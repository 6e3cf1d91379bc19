package run

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"backend-runnersurfers/internal/db"
	"backend-runnersurfers/internal/profile"
	"backend-runnersurfers/internal/tracking"

	"github.com/bytedance/sonic"
)

// RunRepository stores finished runs. SaveRun must be idempotent on Run.ID.
type RunRepository interface {
	SaveRun(ctx context.Context, userID string, r Run) error
	ListRuns(ctx context.Context, userID string, limit int) ([]Run, error)
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) SaveRun(ctx context.Context, userID string, run Run) error {
	path, err := sonic.Marshal(run.Path)
	if err != nil {
		return fmt.Errorf("encode path: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO runs (id, user_id, run_date, distance_km, duration_seconds, avg_speed_kmh, calories,
			score_earned, exp_earned, coins_earned, reputation_earned, quest_exp, quest_coins, path)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, userID, run.Date, run.DistanceKm, run.DurationSeconds, run.AvgSpeedKmh, run.Calories,
		run.ScoreEarned, run.ExpEarned, run.CoinsEarned, run.ReputationEarned, run.QuestExp, run.QuestCoins, path)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *Repository) ListRuns(ctx context.Context, userID string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, run_date, distance_km, duration_seconds, avg_speed_kmh, calories,
			score_earned, exp_earned, coins_earned, reputation_earned, quest_exp, quest_coins, path
		FROM runs
		WHERE user_id = $1
		ORDER BY run_date DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run  Run
			path []byte
		)
		if err := rows.Scan(&run.ID, &run.Date, &run.DistanceKm, &run.DurationSeconds, &run.AvgSpeedKmh, &run.Calories,
			&run.ScoreEarned, &run.ExpEarned, &run.CoinsEarned, &run.ReputationEarned, &run.QuestExp, &run.QuestCoins, &path); err != nil {
			return nil, err
		}
		if len(path) > 0 {
			if err := sonic.Unmarshal(path, &run.Path); err != nil {
				return nil, fmt.Errorf("decode path: %w", err)
			}
		}
		run.UserID = userID
		out = append(out, run)
	}
	return out, rows.Err()
}

// MemoryRepository keeps runs in process, newest last.
type MemoryRepository struct {
	mu   sync.Mutex
	runs map[string][]Run
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: map[string][]Run{}}
}

func (m *MemoryRepository) SaveRun(_ context.Context, userID string, r Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.runs[userID] {
		if existing.ID == r.ID {
			return nil
		}
	}
	r.Path = append([]tracking.PathPoint(nil), r.Path...)
	m.runs[userID] = append(m.runs[userID], r)
	return nil
}

func (m *MemoryRepository) ListRuns(_ context.Context, userID string, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := slices.Clone(m.runs[userID])
	slices.Reverse(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

type StatsIncrementer interface {
	IncrementProfileStats(ctx context.Context, userID string, d profile.StatsDelta) error
}

type persister struct {
	RunRepository
	StatsIncrementer
}

// NewPersister joins run storage and profile stats into one Persister.
func NewPersister(runs RunRepository, profiles StatsIncrementer) Persister {
	return persister{RunRepository: runs, StatsIncrementer: profiles}
}
