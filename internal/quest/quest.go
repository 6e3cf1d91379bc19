package quest

import (
	"slices"
	"time"
)

const dateLayout = "2006-01-02"

type Quest struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	RequiredKm float64 `json:"required_km"`
	ExpPercent float64 `json:"exp_percent"`
	Coins      int64   `json:"coins"`
}

var ladder = []Quest{
	{ID: 1, Name: "Warm Legs", RequiredKm: 1, ExpPercent: 5, Coins: 50},
	{ID: 2, Name: "Morning Loop", RequiredKm: 2, ExpPercent: 8, Coins: 100},
	{ID: 3, Name: "Park Circuit", RequiredKm: 4, ExpPercent: 10, Coins: 150},
	{ID: 4, Name: "Five Alive", RequiredKm: 5, ExpPercent: 12, Coins: 200},
	{ID: 5, Name: "Six Pack", RequiredKm: 6, ExpPercent: 14, Coins: 250},
	{ID: 6, Name: "Lucky Seven", RequiredKm: 7, ExpPercent: 16, Coins: 300},
	{ID: 7, Name: "Eight Miles High", RequiredKm: 8, ExpPercent: 18, Coins: 350},
	{ID: 8, Name: "Cloud Nine", RequiredKm: 9, ExpPercent: 20, Coins: 400},
	{ID: 9, Name: "Double Digits", RequiredKm: 10, ExpPercent: 25, Coins: 500},
	{ID: 10, Name: "Half Way There", RequiredKm: 12, ExpPercent: 30, Coins: 750},
}

// Ladder returns the fixed quest ladder in ascending distance order.
func Ladder() []Quest {
	return slices.Clone(ladder)
}

const (
	ObjectiveKm    = 5.0
	ObjectiveCoins = 500
)

type QuestState struct {
	Quest
	Completed bool `json:"completed"`
}

type ObjectiveState struct {
	TargetKm  float64 `json:"target_km"`
	Coins     int64   `json:"coins"`
	Completed bool    `json:"completed"`
}

// DailyState is the persisted form of a Tracker.
type DailyState struct {
	Date       string         `json:"date"`
	DistanceKm float64        `json:"distance_km"`
	Quests     []QuestState   `json:"quests"`
	Objective  ObjectiveState `json:"objective"`
}

// Batch is what one recorded run unlocked.
type Batch struct {
	Completed          []Quest `json:"completed"`
	ExpPercent         float64 `json:"exp_percent"`
	Coins              int64   `json:"coins"`
	ObjectiveCompleted bool    `json:"objective_completed"`
}

func (b Batch) Empty() bool {
	return len(b.Completed) == 0 && !b.ObjectiveCompleted
}

// Tracker accumulates today's distance against the ladder. It is not safe for concurrent use.
type Tracker struct {
	loc   *time.Location
	state DailyState
}

func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{loc: loc, state: freshState("")}
}

// Restore rebuilds a tracker from persisted state. Quests missing from the stored ladder start incomplete.
func Restore(s DailyState, loc *time.Location) *Tracker {
	t := NewTracker(loc)
	t.state.Date = s.Date
	t.state.DistanceKm = s.DistanceKm
	t.state.Objective.Completed = s.Objective.Completed
	done := make(map[int]bool, len(s.Quests))
	for _, q := range s.Quests {
		done[q.ID] = q.Completed
	}
	for i := range t.state.Quests {
		t.state.Quests[i].Completed = done[t.state.Quests[i].ID]
	}
	return t
}

func freshState(date string) DailyState {
	qs := make([]QuestState, len(ladder))
	for i, q := range ladder {
		qs[i] = QuestState{Quest: q}
	}
	return DailyState{
		Date:      date,
		Quests:    qs,
		Objective: ObjectiveState{TargetKm: ObjectiveKm, Coins: ObjectiveCoins},
	}
}

func (t *Tracker) rollover(now time.Time) {
	today := now.In(t.loc).Format(dateLayout)
	if t.state.Date != today {
		t.state = freshState(today)
	}
}

// Record adds a finished run's distance and returns the quests it completed for the first time today.
func (t *Tracker) Record(now time.Time, distanceKm float64) Batch {
	t.rollover(now)
	if distanceKm > 0 {
		t.state.DistanceKm += distanceKm
	}

	var b Batch
	for i := range t.state.Quests {
		q := &t.state.Quests[i]
		if q.Completed || t.state.DistanceKm < q.RequiredKm {
			continue
		}
		q.Completed = true
		b.Completed = append(b.Completed, q.Quest)
		b.ExpPercent += q.ExpPercent
		b.Coins += q.Coins
	}

	obj := &t.state.Objective
	if !obj.Completed && t.state.DistanceKm >= obj.TargetKm {
		obj.Completed = true
		b.ObjectiveCompleted = true
		b.Coins += obj.Coins
	}
	return b
}

// State returns a copy of today's state, resetting it first if the day has changed.
func (t *Tracker) State(now time.Time) DailyState {
	t.rollover(now)
	out := t.state
	out.Quests = slices.Clone(t.state.Quests)
	return out
}
