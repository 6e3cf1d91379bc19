package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-runnersurfers/internal/db"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 1024

type Service struct {
	db    db.Querier
	cache *lru.Cache
	now   func() time.Time
}

func NewService(q db.Querier, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return &Service{db: q, cache: cache, now: time.Now}, nil
}

// Load returns the stored profile, or a fresh level-1 profile when none exists yet.
func (s *Service) Load(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidUser
	}
	if v, ok := s.cache.Get(userID); ok {
		return v.(Profile).clone(), nil
	}

	row := s.db.QueryRow(ctx, `
		SELECT progress, quests FROM profiles WHERE user_id = $1
	`, userID)
	p, err := scanProfile(userID, row)
	if err != nil {
		return Profile{}, err
	}
	s.cache.Add(userID, p.clone())
	return p, nil
}

// Mutate runs fn against the locked row and writes the result back in one transaction.
func (s *Service) Mutate(ctx context.Context, userID string, fn func(*Profile) error) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidUser
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("begin: %w", err)
	}

	p, err := s.mutateTx(ctx, tx, userID, fn)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Str("user_id", userID).Msg("profile rollback failed")
		}
		return Profile{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		s.cache.Remove(userID)
		return Profile{}, fmt.Errorf("commit profile: %w", err)
	}

	s.cache.Add(userID, p.clone())
	return p, nil
}

func (s *Service) mutateTx(ctx context.Context, tx pgx.Tx, userID string, fn func(*Profile) error) (Profile, error) {
	row := tx.QueryRow(ctx, `
		SELECT progress, quests FROM profiles WHERE user_id = $1 FOR UPDATE
	`, userID)
	p, err := scanProfile(userID, row)
	if err != nil {
		return Profile{}, err
	}

	if err := fn(&p); err != nil {
		return Profile{}, err
	}

	progress, err := sonic.Marshal(p.Progress)
	if err != nil {
		return Profile{}, fmt.Errorf("encode progress: %w", err)
	}
	quests, err := sonic.Marshal(p.Quests)
	if err != nil {
		return Profile{}, fmt.Errorf("encode quests: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (user_id, level, total_score, total_distance_km, progress, quests, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE SET
			level = EXCLUDED.level,
			total_score = EXCLUDED.total_score,
			total_distance_km = EXCLUDED.total_distance_km,
			progress = EXCLUDED.progress,
			quests = EXCLUDED.quests,
			updated_at = EXCLUDED.updated_at
	`, userID, p.Progress.Level, p.Progress.TotalScore, p.Progress.TotalDistanceKm, progress, quests, s.now())
	if err != nil {
		return Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

func (s *Service) IncrementProfileStats(ctx context.Context, userID string, d StatsDelta) error {
	var levels []int
	_, err := s.Mutate(ctx, userID, func(p *Profile) error {
		levels = d.apply(p)
		return nil
	})
	if err != nil {
		return err
	}
	if len(levels) > 0 {
		log.Info().Str("user_id", userID).Ints("levels", levels).Msg("profile leveled up")
	}
	return nil
}

// Forget drops a cached profile so the next Load reads the database.
func (s *Service) Forget(userID string) {
	s.cache.Remove(userID)
}

func scanProfile(userID string, row pgx.Row) (Profile, error) {
	var progress, quests []byte
	if err := row.Scan(&progress, &quests); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newProfile(userID), nil
		}
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	p := newProfile(userID)
	if len(progress) > 0 {
		if err := sonic.Unmarshal(progress, &p.Progress); err != nil {
			return Profile{}, fmt.Errorf("decode progress: %w", err)
		}
	}
	if len(quests) > 0 {
		if err := sonic.Unmarshal(quests, &p.Quests); err != nil {
			return Profile{}, fmt.Errorf("decode quests: %w", err)
		}
	}
	if p.Progress.Level < 1 {
		p.Progress.Level = 1
	}
	return p, nil
}
