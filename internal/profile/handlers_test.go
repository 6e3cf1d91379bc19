package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-runnersurfers/internal/auth"
	"backend-runnersurfers/internal/catalog"

	"github.com/gofiber/fiber/v2"
)

type countingRefresher struct{ calls int }

func (r *countingRefresher) RefreshBonuses(context.Context, string) error {
	r.calls++
	return nil
}

func setupApp(t *testing.T, store Store) (*fiber.App, *countingRefresher) {
	t.Helper()
	app := fiber.New()
	ref := &countingRefresher{}
	RegisterRoutes(app.Group("/profile"), store, catalog.Default(), ref, auth.WithUser("runner-1"))
	return app, ref
}

func do(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestProfileView(t *testing.T) {
	app, _ := setupApp(t, NewMemoryStore())

	resp := do(t, app, http.MethodGet, "/profile/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var v View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Progress.Level != 1 || v.Rank.Name != "Rookie" || v.CoinsPerKm != 100 || v.ExpPerKm != 20 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestShopErrorsMapToStatus(t *testing.T) {
	store := NewMemoryStore()
	app, ref := setupApp(t, store)

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodPost, "/profile/items/nope/buy", nil, http.StatusNotFound},
		{http.MethodPost, "/profile/items/shoe_runner/buy", nil, http.StatusForbidden},
		{http.MethodPost, "/profile/items/shoe_basic/equip", nil, http.StatusConflict},
		{http.MethodPost, "/profile/upgrades/upgrade_score_1/buy", nil, http.StatusUnprocessableEntity},
		{http.MethodPost, "/profile/boosts/boost_sprint/activate", nil, http.StatusUnprocessableEntity},
		{http.MethodPost, "/profile/skills", map[string]any{"kind": "speed", "points": 1}, http.StatusBadRequest},
		{http.MethodPost, "/profile/skills", map[string]any{"kind": "coins", "points": 1}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		resp := do(t, app, tc.method, tc.path, tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, resp.StatusCode)
		}
	}
	if ref.calls != 0 {
		t.Fatalf("failed transitions must not refresh bonuses")
	}
}

func TestShopFlow(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Mutate(context.Background(), "runner-1", func(p *Profile) error {
		p.Progress.Coins = 1000
		p.Progress.SkillPoints = 3
		return nil
	})
	app, ref := setupApp(t, store)

	for _, path := range []string{
		"/profile/items/shoe_basic/buy",
		"/profile/items/shoe_basic/equip",
		"/profile/boosts/boost_sprint/activate",
	} {
		if resp := do(t, app, http.MethodPost, path, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
	if resp := do(t, app, http.MethodPost, "/profile/boosts/boost_tempo/activate", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict for second boost, got %d", resp.StatusCode)
	}
	if resp := do(t, app, http.MethodDelete, "/profile/boosts/active", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected deactivate ok, got %d", resp.StatusCode)
	}
	if resp := do(t, app, http.MethodPost, "/profile/skills", map[string]any{"kind": "score", "points": 2}); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected skill ok, got %d", resp.StatusCode)
	}

	p, _ := store.Load(context.Background(), "runner-1")
	if p.Progress.EquippedItem != "shoe_basic" || p.Progress.ActiveBoost != nil {
		t.Fatalf("unexpected progress %+v", p.Progress)
	}
	if p.Progress.Coins != 700 || p.Progress.SkillScoreInvested != 2 || p.Progress.SkillPoints != 1 {
		t.Fatalf("unexpected balances %+v", p.Progress)
	}
	if ref.calls != 5 {
		t.Fatalf("expected 5 bonus refreshes, got %d", ref.calls)
	}
}
