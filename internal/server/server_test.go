package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend-runnersurfers/internal/auth"
	"backend-runnersurfers/internal/config"
	"backend-runnersurfers/internal/run"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const secret = "secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(config.Config{JWTSecret: secret, ServerPort: ":0", FixTimeout: 50 * time.Millisecond}, nil, nil)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func request(t *testing.T, s *Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t)

	resp := request(t, s, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	s := newTestServer(t)

	if resp := request(t, s, http.MethodGet, "/catalog/", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog must be public, got %d", resp.StatusCode)
	}
	for _, path := range []string{"/profile/", "/quests/", "/runs/", "/runs/current"} {
		resp := request(t, s, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] == "" {
			t.Fatalf("%s: expected json error body, got %v %v", path, body, err)
		}
	}
}

func TestRunThroughServer(t *testing.T) {
	s := newTestServer(t)
	token, err := auth.SignToken(secret, "runner-1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	start := map[string]any{"lat": -6.2, "lng": 106.8, "accuracy": 5}
	if resp := request(t, s, http.MethodPost, "/runs/start", token, start); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp := request(t, s, http.MethodPost, "/runs/end", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp := request(t, s, http.MethodGet, "/runs/", token, nil)
	var runs []run.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil || len(runs) != 1 {
		t.Fatalf("expected one stored run, got %v %v", runs, err)
	}

	resp = request(t, s, http.MethodGet, "/metrics", "", nil)
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "runnersurfers_runs_completed_total 1") {
		t.Fatalf("expected completed run in metrics")
	}
}

func TestServerUsesRedisOutbox(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewServer(config.Config{JWTSecret: secret, OutboxFlushInterval: 10 * time.Millisecond}, nil, rdb)
	s.Start(context.Background())
	defer s.Shutdown(context.Background())

	if _, ok := s.Runs.(*run.MemoryRepository); !ok {
		t.Fatalf("expected in-memory runs without postgres")
	}
	if resp := request(t, s, http.MethodGet, "/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
