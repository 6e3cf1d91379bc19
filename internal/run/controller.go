package run

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"backend-runnersurfers/internal/catalog"
	"backend-runnersurfers/internal/metrics"
	"backend-runnersurfers/internal/notify"
	"backend-runnersurfers/internal/profile"
	"backend-runnersurfers/internal/progression"
	"backend-runnersurfers/internal/quest"
	"backend-runnersurfers/internal/tracking"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SnapshotPublisher pushes live run state to watchers. stream.Hub implements it.
type SnapshotPublisher interface {
	PublishSnapshot(userID string, s tracking.Snapshot)
}

type ProfileLoader interface {
	Load(ctx context.Context, userID string) (profile.Profile, error)
}

type Deps struct {
	Catalog    *catalog.Catalog
	Profiles   ProfileLoader
	Syncer     *Syncer
	Sink       notify.Sink
	Publisher  SnapshotPublisher
	Metrics    *metrics.Metrics
	Tracking   tracking.Config
	NewTicker  tracking.TickerFunc
	Now        func() time.Time
	Location   *time.Location
	WeightKg   float64
	FixTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Profiles == nil {
		d.Profiles = profile.NewMemoryStore()
	}
	if d.Sink == nil {
		d.Sink = notify.Nop{}
	}
	if d.Tracking.TickInterval <= 0 {
		d.Tracking = tracking.DefaultConfig()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return d
}

// Result is what ending a run returns to the runner.
type Result struct {
	Run          Run                  `json:"run"`
	Rewards      Rewards              `json:"rewards"`
	Progress     progression.Progress `json:"progress"`
	LevelsGained []int                `json:"levels_gained"`
	Sync         SyncState            `json:"sync"`
}

// Controller owns one runner's run lifecycle. Tracker callbacks never take c.mu.
type Controller struct {
	userID string
	deps   Deps
	store  *Store

	mu       sync.Mutex
	provider *tracking.PushProvider
	tracker  *tracking.Tracker
	listener *runListener
	progress progression.Progress
	quests   *quest.Tracker
	lastRun  uuid.UUID
}

func NewController(userID string, deps Deps) *Controller {
	deps = deps.withDefaults()
	return &Controller{userID: userID, deps: deps, store: NewStore(deps.Now)}
}

func (c *Controller) UserID() string { return c.userID }

func (c *Controller) State() State { return c.store.State() }

// idle reports whether a fresh controller could rebuild everything this one holds
// from the profile. The quest tracker must outlive any run that has not synced.
func (c *Controller) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.State() != StateNotRunning {
		return false
	}
	if c.lastRun == uuid.Nil {
		return true
	}
	return c.deps.Syncer != nil && c.deps.Syncer.State(c.lastRun) == SyncSynced
}

// Start seeds a new run. When seed is nil the first fix pushed within the GPS timeout seeds it.
func (c *Controller) Start(ctx context.Context, seed *tracking.Fix) (tracking.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.State() != StateNotRunning {
		return tracking.Snapshot{}, ErrAlreadyRunning
	}
	p, err := c.deps.Profiles.Load(ctx, c.userID)
	if err != nil {
		return tracking.Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	c.restoreQuests(p)

	provider := tracking.NewPushProvider(c.deps.FixTimeout)
	if seed != nil {
		provider.Push(*seed)
	}
	fix, err := c.store.Start(ctx, provider)
	if err != nil {
		return tracking.Snapshot{}, err
	}

	now := c.deps.Now()
	c.progress = p.Progress
	listener := newRunListener(c.userID, c.store, c.deps)
	listener.reset(p.Progress, c.deps.Catalog)
	tr := tracking.NewTracker(c.deps.Tracking, provider, listener, c.deps.NewTicker)
	listener.tracker = tr
	tr.Start(context.Background(), fix, c.bonuses(p.Progress, now), now)

	c.provider, c.tracker, c.listener = provider, tr, listener
	c.deps.Metrics.RunStarted()
	log.Info().Str("user_id", c.userID).Int("level", p.Progress.Level).Msg("run started")
	return tr.Snapshot(), nil
}

// PushFix forwards a client fix to the live run. It reports whether the tracker took it.
func (c *Controller) PushFix(fix tracking.Fix) (bool, error) {
	c.mu.Lock()
	provider := c.provider
	c.mu.Unlock()

	switch c.store.State() {
	case StateNotRunning:
		return false, ErrNotRunning
	case StatePaused:
		return false, ErrPaused
	}
	if provider == nil {
		return false, ErrNotRunning
	}
	return provider.Push(fix), nil
}

func (c *Controller) Pause() (tracking.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Pause(); err != nil {
		return tracking.Snapshot{}, err
	}
	if err := c.tracker.Pause(); err != nil {
		return tracking.Snapshot{}, err
	}
	return c.tracker.Snapshot(), nil
}

func (c *Controller) Resume() (tracking.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Resume(); err != nil {
		return tracking.Snapshot{}, err
	}
	if err := c.tracker.Resume(); err != nil {
		return tracking.Snapshot{}, err
	}
	return c.tracker.Snapshot(), nil
}

func (c *Controller) Snapshot() (tracking.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracker == nil || c.store.State() == StateNotRunning {
		return tracking.Snapshot{}, ErrNotRunning
	}
	return c.tracker.Snapshot(), nil
}

// RefreshBonuses reloads the profile and hands new multipliers to a live run.
func (c *Controller) RefreshBonuses(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracker == nil || c.store.State() == StateNotRunning {
		return nil
	}
	p, err := c.deps.Profiles.Load(ctx, c.userID)
	if err != nil {
		return err
	}
	c.progress = p.Progress
	c.listener.setBoost(p.Progress.ActiveBoost)
	return c.tracker.SetBonuses(c.bonuses(p.Progress, c.deps.Now()))
}

// Quests returns today's quest state, including runs not yet synced.
func (c *Controller) Quests(ctx context.Context) (quest.DailyState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quests == nil {
		p, err := c.deps.Profiles.Load(ctx, c.userID)
		if err != nil {
			return quest.DailyState{}, err
		}
		c.restoreQuests(p)
	}
	return c.quests.State(c.deps.Now()), nil
}

// End stops tracking, computes rewards, applies them and hands the run to the syncer.
func (c *Controller) End(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.State() == StateNotRunning || c.tracker == nil {
		return Result{}, ErrNotRunning
	}

	final := c.tracker.Stop()
	sess, endedAt, err := c.store.End(final)
	if err != nil {
		return Result{}, err
	}
	c.provider, c.tracker, c.listener = nil, nil, nil

	progress := c.progress.Clone()
	progress.ExpireBoost(endedAt)
	cat := c.deps.Catalog
	itemCoin, itemExp := progress.ItemBonuses(cat)
	upScore, upExp := cat.UpgradeBonuses(progress.PurchasedUpgrades)

	batch := c.quests.Record(endedAt, sess.DistanceKm)
	rewards := CalculateRewards(RewardInput{
		Level:                progress.Level,
		DistanceKm:           sess.DistanceKm,
		SessionScore:         sess.Score,
		StartedAt:            sess.StartedAt,
		EndedAt:              endedAt,
		WeightKg:             c.deps.WeightKg,
		ItemCoinBonusPct:     itemCoin,
		ItemExpBonusPct:      itemExp,
		SkillCoinsBonusPct:   progress.SkillCoinsBonus(),
		SkillScoreBonusPct:   progress.SkillScoreBonus(),
		UpgradeScoreBonusPct: upScore,
		UpgradeExpBonusPct:   upExp,
		Quests:               batch,
	})

	r := newRun(c.userID, sess, rewards, endedAt)
	c.lastRun = r.ID
	delta := rewards.Delta(sess.DistanceKm)
	levels := progress.Apply(delta)
	c.progress = progress
	for _, lvl := range levels {
		c.deps.Sink.LevelUp(c.userID, lvl)
	}

	state := SyncUnsynced
	if c.deps.Syncer != nil {
		stats := profile.StatsDelta{Delta: delta, Quests: c.quests.State(endedAt)}
		state = c.deps.Syncer.Sync(ctx, NewEntry(c.userID, r, stats, endedAt))
	}

	c.deps.Metrics.RunCompleted(sess.DistanceKm, rewards.Score, delta.Coins, len(levels))
	log.Info().Str("user_id", c.userID).Str("run_id", r.ID.String()).
		Float64("distance_km", sess.DistanceKm).Int64("score", rewards.Score).
		Int64("coins", delta.Coins).Int("quests", len(batch.Completed)).
		Stringer("sync", state).Msg("run ended")

	return Result{Run: r, Rewards: rewards, Progress: progress, LevelsGained: levels, Sync: state}, nil
}

func (c *Controller) restoreQuests(p profile.Profile) {
	if c.quests == nil {
		c.quests = quest.Restore(p.Quests, c.deps.Location)
	}
}

func (c *Controller) bonuses(p progression.Progress, now time.Time) tracking.Bonuses {
	coinPct, _ := p.ItemBonuses(c.deps.Catalog)
	b := tracking.Bonuses{Level: p.Level, ItemCoinBonusPct: coinPct}
	if p.ActiveBoost.Active(now) {
		b.BoostScoreBonusPct = p.BoostBonus(c.deps.Catalog, now)
		b.BoostEndsAt = p.ActiveBoost.EndsAt
	}
	return b
}

// runListener runs on the tracker goroutine. It only touches the store and its own state.
type runListener struct {
	userID    string
	store     *Store
	sink      notify.Sink
	publisher SnapshotPublisher
	metrics   *metrics.Metrics
	tracker   *tracking.Tracker

	mu       sync.Mutex
	boostID  catalog.BoostID
	startExp float64
	expPerKm float64
	lastKm   int
	lastExp  float64
}

func newRunListener(userID string, store *Store, deps Deps) *runListener {
	return &runListener{
		userID:    userID,
		store:     store,
		sink:      deps.Sink,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
	}
}

func (l *runListener) reset(p progression.Progress, cat *catalog.Catalog) {
	_, itemExp := p.ItemBonuses(cat)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startExp = p.Exp
	l.lastExp = p.Exp
	l.expPerKm = progression.ExpPerKm(p.Level) * (1 + itemExp/100)
	l.lastKm = 0
	if p.ActiveBoost != nil {
		l.boostID = p.ActiveBoost.ID
	}
}

func (l *runListener) setBoost(b *catalog.ActiveBoost) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.boostID = ""
	if b != nil {
		l.boostID = b.ID
	}
}

func (l *runListener) publish() {
	if l.publisher == nil || l.tracker == nil {
		return
	}
	l.publisher.PublishSnapshot(l.userID, l.tracker.Snapshot())
}

func (l *runListener) FixProcessed(_ tracking.Fix, r tracking.Result) {
	l.metrics.FixProcessed(string(r.Verdict))
}

func (l *runListener) PositionChanged(pos tracking.Position) {
	_ = l.store.UpdatePosition(pos)

	l.mu.Lock()
	var kms []int
	for km := l.lastKm + 1; km <= int(math.Floor(pos.DistanceKm)); km++ {
		kms = append(kms, km)
		l.lastKm = km
	}
	projected := l.startExp + pos.DistanceKm*l.expPerKm
	crossed := progression.CrossedExpMilestones(l.lastExp, projected)
	if projected > l.lastExp {
		l.lastExp = projected
	}
	l.mu.Unlock()

	for _, km := range kms {
		l.sink.Kilometer(l.userID, km)
	}
	for _, m := range crossed {
		l.sink.ExpMilestone(l.userID, m)
	}
	l.publish()
}

func (l *runListener) ScoreChanged(s tracking.Scoring) {
	_ = l.store.UpdateScore(s.Score)
	l.publish()
}

func (l *runListener) ScoreActivated(tracking.Snapshot) {
	l.sink.ScoreActivated(l.userID)
	l.publish()
}

func (l *runListener) WarmUpReset(tracking.Snapshot) {
	l.publish()
}

func (l *runListener) VehicleDetected(tracking.Fix) {
	l.sink.VehicleWarning(l.userID)
}

func (l *runListener) BoostExpired(time.Time) {
	l.mu.Lock()
	id := l.boostID
	l.boostID = ""
	l.mu.Unlock()
	l.sink.BoostExpired(l.userID, string(id))
}
