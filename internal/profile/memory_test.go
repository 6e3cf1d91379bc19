package profile

import (
	"context"
	"testing"
	"time"

	"backend-runnersurfers/internal/catalog"
	"backend-runnersurfers/internal/progression"
	"backend-runnersurfers/internal/quest"
)

var testNow = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func TestMemoryStoreMutateIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p, err := store.Mutate(ctx, "u", func(p *Profile) error {
		p.Progress.Coins = 5000
		return p.Progress.BuyItem(catalog.Default(), "shoe_basic")
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	p.Progress.OwnedItems[0] = "tampered"

	loaded, _ := store.Load(ctx, "u")
	if !loaded.Progress.Owns("shoe_basic") || loaded.Progress.Coins != 5000 {
		t.Fatalf("store must hold its own copy, got %+v", loaded.Progress)
	}
}

func TestMemoryStoreFailedMutateLeavesState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.IncrementProfileStats(ctx, "u", StatsDelta{Delta: progression.Delta{Coins: 100}})

	_, err := store.Mutate(ctx, "u", func(p *Profile) error {
		p.Progress.Coins = 0
		return progression.ErrInsufficientCoins
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	loaded, _ := store.Load(ctx, "u")
	if loaded.Progress.Coins != 100 {
		t.Fatalf("failed mutation must not persist, coins=%d", loaded.Progress.Coins)
	}
}

func TestStatsDeltaKeepsNewestQuests(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tr := quest.NewTracker(time.UTC)
	tr.Record(testNow, 2)
	older := tr.State(testNow)
	tr.Record(testNow, 3)
	newer := tr.State(testNow)

	_ = store.IncrementProfileStats(ctx, "u", StatsDelta{Quests: newer})
	_ = store.IncrementProfileStats(ctx, "u", StatsDelta{Quests: older})

	p, _ := store.Load(ctx, "u")
	if p.Quests.DistanceKm != 5 || !p.Quests.Quests[3].Completed {
		t.Fatalf("late delivery of an older run must not roll quests back, got %+v", p.Quests)
	}

	next := quest.NewTracker(time.UTC).State(testNow.Add(24 * time.Hour))
	_ = store.IncrementProfileStats(ctx, "u", StatsDelta{Quests: next})
	p, _ = store.Load(ctx, "u")
	if p.Quests.Date != next.Date || p.Quests.DistanceKm != 0 {
		t.Fatalf("a new day must replace quests, got %+v", p.Quests)
	}
}
