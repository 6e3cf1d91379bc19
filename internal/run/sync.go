package run

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"backend-runnersurfers/internal/metrics"
	"backend-runnersurfers/internal/notify"
	"backend-runnersurfers/internal/profile"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Persister is the external store for finished runs.
type Persister interface {
	SaveRun(ctx context.Context, userID string, r Run) error
	IncrementProfileStats(ctx context.Context, userID string, d profile.StatsDelta) error
}

var errNoPersister = errors.New("no persister configured")

type SyncState int

const (
	SyncUnsynced SyncState = iota
	SyncSyncing
	SyncSynced
	SyncFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncSyncing:
		return "syncing"
	case SyncSynced:
		return "synced"
	case SyncFailed:
		return "failed"
	default:
		return "unsynced"
	}
}

func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SyncState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unsynced":
		*s = SyncUnsynced
	case "syncing":
		*s = SyncSyncing
	case "synced":
		*s = SyncSynced
	case "failed":
		*s = SyncFailed
	default:
		return fmt.Errorf("unknown sync state %q", b)
	}
	return nil
}

type SyncerConfig struct {
	MaxAttempts int
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
}

func DefaultSyncerConfig() SyncerConfig {
	return SyncerConfig{MaxAttempts: 5, Timeout: 5 * time.Second, BatchSize: 100, Concurrency: 4}
}

// Syncer delivers finished runs. A failed delivery is queued in the outbox and retried by Flush
// until it succeeds or runs out of attempts, at which point it is moved to the dead-letter list.
type Syncer struct {
	persister Persister
	outbox    Outbox
	sink      notify.Sink
	metrics   *metrics.Metrics
	cfg       SyncerConfig
	states    *lru.Cache
}

func NewSyncer(p Persister, o Outbox, sink notify.Sink, m *metrics.Metrics, cfg SyncerConfig) *Syncer {
	def := DefaultSyncerConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if o == nil {
		o = NewMemoryOutbox()
	}
	if sink == nil {
		sink = notify.Nop{}
	}
	states, _ := lru.New(4096)
	return &Syncer{persister: p, outbox: o, sink: sink, metrics: m, cfg: cfg, states: states}
}

// State reports the last known sync state of a run.
func (s *Syncer) State(runID uuid.UUID) SyncState {
	if v, ok := s.states.Get(runID); ok {
		return v.(SyncState)
	}
	return SyncUnsynced
}

func (s *Syncer) setState(runID uuid.UUID, st SyncState) {
	s.states.Add(runID, st)
}

// Sync makes one delivery attempt and queues the entry on failure.
func (s *Syncer) Sync(ctx context.Context, e Entry) SyncState {
	s.setState(e.Run.ID, SyncSyncing)

	err := s.deliver(ctx, &e)
	if err == nil {
		s.setState(e.Run.ID, SyncSynced)
		s.metrics.SyncOutcome("synced")
		return SyncSynced
	}

	log.Warn().Err(err).Str("user_id", e.UserID).Str("run_id", e.Run.ID.String()).Msg("run sync failed, queued for retry")
	s.metrics.SyncOutcome("failed")
	s.sink.SyncFailed(e.UserID, e.Run.ID.String(), err)

	e.Attempts = 1
	e.LastError = err.Error()
	s.requeue(context.WithoutCancel(ctx), e)
	s.setState(e.Run.ID, SyncFailed)
	return SyncFailed
}

func (s *Syncer) deliver(ctx context.Context, e *Entry) error {
	if s.persister == nil {
		return errNoPersister
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if !e.RunSaved {
		if err := s.persister.SaveRun(ctx, e.UserID, e.Run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		e.RunSaved = true
	}
	if err := s.persister.IncrementProfileStats(ctx, e.UserID, e.Stats); err != nil {
		return fmt.Errorf("increment profile: %w", err)
	}
	return nil
}

func (s *Syncer) requeue(ctx context.Context, e Entry) {
	if e.Attempts >= s.cfg.MaxAttempts {
		log.Error().Str("user_id", e.UserID).Str("run_id", e.Run.ID.String()).Int("attempts", e.Attempts).
			Str("last_error", e.LastError).Msg("run sync gave up")
		s.metrics.SyncOutcome("dead")
		if err := s.outbox.Bury(ctx, e); err != nil {
			log.Error().Err(err).Str("run_id", e.Run.ID.String()).Msg("dead-letter write failed")
		}
		return
	}
	if err := s.outbox.Push(ctx, e); err != nil {
		log.Error().Err(err).Str("run_id", e.Run.ID.String()).Msg("outbox write failed, run result lost")
	}
}

// Flush redelivers one batch from the outbox. Entries of one user are delivered in order
// and a failure holds back that user's later entries; different users run concurrently.
func (s *Syncer) Flush(ctx context.Context) (int, error) {
	entries, err := s.outbox.Take(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var users []string
	byUser := map[string][]Entry{}
	for _, e := range entries {
		if _, ok := byUser[e.UserID]; !ok {
			users = append(users, e.UserID)
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	var delivered atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, user := range users {
		queue := byUser[user]
		g.Go(func() error {
			for i := range queue {
				e := queue[i]
				if err := s.deliver(gctx, &e); err != nil {
					e.Attempts++
					e.LastError = err.Error()
					s.setState(e.Run.ID, SyncFailed)
					s.requeue(ctx, e)
					for _, rest := range queue[i+1:] {
						s.requeue(ctx, rest)
					}
					return nil
				}
				delivered.Add(1)
				s.setState(e.Run.ID, SyncSynced)
				s.metrics.SyncOutcome("redelivered")
			}
			return nil
		})
	}
	_ = g.Wait()

	if n, err := s.outbox.Len(ctx); err == nil {
		s.metrics.OutboxDepth(n)
	}
	return int(delivered.Load()), nil
}

// Run flushes the outbox every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Flush(ctx)
			if err != nil {
				log.Error().Err(err).Msg("outbox flush failed")
				continue
			}
			if n > 0 {
				log.Info().Int("delivered", n).Msg("outbox flushed")
			}
		}
	}
}
