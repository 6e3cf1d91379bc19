package notify

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink receives fire-and-forget user notifications. Implementations must not block.
type Sink interface {
	Kilometer(userID string, km int)
	ExpMilestone(userID string, percent int)
	LevelUp(userID string, level int)
	BoostExpired(userID string, boostID string)
	ScoreActivated(userID string)
	VehicleWarning(userID string)
	SyncFailed(userID string, runID string, err error)
}

type Kind string

const (
	KindKilometer      Kind = "kilometer"
	KindExpMilestone   Kind = "exp_milestone"
	KindLevelUp        Kind = "level_up"
	KindBoostExpired   Kind = "boost_expired"
	KindScoreActivated Kind = "score_activated"
	KindVehicleWarning Kind = "vehicle_warning"
	KindSyncFailed     Kind = "sync_failed"
)

// Event is the wire form of a notification.
type Event struct {
	Kind    Kind      `json:"kind"`
	UserID  string    `json:"user_id"`
	Value   int       `json:"value,omitempty"`
	Ref     string    `json:"ref,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Nop struct{}

func (Nop) Kilometer(string, int)            {}
func (Nop) ExpMilestone(string, int)         {}
func (Nop) LevelUp(string, int)              {}
func (Nop) BoostExpired(string, string)      {}
func (Nop) ScoreActivated(string)            {}
func (Nop) VehicleWarning(string)            {}
func (Nop) SyncFailed(string, string, error) {}

// LogSink writes every notification as a structured log line.
type LogSink struct {
	Logger zerolog.Logger
}

func NewLogSink() LogSink {
	return LogSink{Logger: log.With().Str("component", "notify").Logger()}
}

func (s LogSink) Kilometer(userID string, km int) {
	s.Logger.Info().Str("user_id", userID).Int("km", km).Msg("kilometer reached")
}

func (s LogSink) ExpMilestone(userID string, percent int) {
	s.Logger.Info().Str("user_id", userID).Int("percent", percent).Msg("exp milestone")
}

func (s LogSink) LevelUp(userID string, level int) {
	s.Logger.Info().Str("user_id", userID).Int("level", level).Msg("level up")
}

func (s LogSink) BoostExpired(userID string, boostID string) {
	s.Logger.Info().Str("user_id", userID).Str("boost", boostID).Msg("boost expired")
}

func (s LogSink) ScoreActivated(userID string) {
	s.Logger.Info().Str("user_id", userID).Msg("score active")
}

func (s LogSink) VehicleWarning(userID string) {
	s.Logger.Warn().Str("user_id", userID).Msg("vehicle speed detected")
}

func (s LogSink) SyncFailed(userID string, runID string, err error) {
	s.Logger.Error().Err(err).Str("user_id", userID).Str("run_id", runID).Msg("run sync failed")
}

// Broadcaster is satisfied by stream.Hub.
type Broadcaster interface {
	Broadcast(key string, payload []byte)
}

// HubSink pushes notifications as JSON to the runner's stream.
type HubSink struct {
	hub Broadcaster
	now func() time.Time
}

func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub, now: time.Now}
}

func (s *HubSink) send(ev Event) {
	ev.At = s.now()
	payload, err := sonic.Marshal(map[string]any{"type": "notification", "event": ev})
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("encode notification")
		return
	}
	s.hub.Broadcast(ev.UserID, payload)
}

func (s *HubSink) Kilometer(userID string, km int) {
	s.send(Event{Kind: KindKilometer, UserID: userID, Value: km, Message: "Another kilometer down"})
}

func (s *HubSink) ExpMilestone(userID string, percent int) {
	s.send(Event{Kind: KindExpMilestone, UserID: userID, Value: percent, Message: "Level progress milestone"})
}

func (s *HubSink) LevelUp(userID string, level int) {
	s.send(Event{Kind: KindLevelUp, UserID: userID, Value: level, Message: "Level up"})
}

func (s *HubSink) BoostExpired(userID string, boostID string) {
	s.send(Event{Kind: KindBoostExpired, UserID: userID, Ref: boostID, Message: "Boost expired"})
}

func (s *HubSink) ScoreActivated(userID string) {
	s.send(Event{Kind: KindScoreActivated, UserID: userID, Message: "Score is now counting"})
}

func (s *HubSink) VehicleWarning(userID string) {
	s.send(Event{Kind: KindVehicleWarning, UserID: userID, Message: "Speed too high, distance is not counted"})
}

func (s *HubSink) SyncFailed(userID string, runID string, err error) {
	s.send(Event{Kind: KindSyncFailed, UserID: userID, Ref: runID, Message: "Run saved locally, will retry sync"})
}

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) Kilometer(userID string, km int) {
	for _, s := range m {
		s.Kilometer(userID, km)
	}
}

func (m Multi) ExpMilestone(userID string, percent int) {
	for _, s := range m {
		s.ExpMilestone(userID, percent)
	}
}

func (m Multi) LevelUp(userID string, level int) {
	for _, s := range m {
		s.LevelUp(userID, level)
	}
}

func (m Multi) BoostExpired(userID string, boostID string) {
	for _, s := range m {
		s.BoostExpired(userID, boostID)
	}
}

func (m Multi) ScoreActivated(userID string) {
	for _, s := range m {
		s.ScoreActivated(userID)
	}
}

func (m Multi) VehicleWarning(userID string) {
	for _, s := range m {
		s.VehicleWarning(userID)
	}
}

func (m Multi) SyncFailed(userID string, runID string, err error) {
	for _, s := range m {
		s.SyncFailed(userID, runID, err)
	}
}
