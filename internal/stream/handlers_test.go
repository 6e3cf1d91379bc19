package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-runnersurfers/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func serve(t *testing.T, hub *Hub, authMiddleware fiber.Handler) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, authMiddleware)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/stream/ws"
}

func waitWatchers(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Watchers(userID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d watchers for %s, got %d", n, userID, hub.Watchers(userID))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil), auth.WithUser("runner-1"))

	req := httptest.NewRequest(http.MethodGet, "/stream/ws", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersRequireAuth(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil), auth.JWTMiddleware("secret"))

	req := httptest.NewRequest(http.MethodGet, "/stream/ws", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil)
	url := serve(t, hub, auth.WithUser("runner-1"))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitWatchers(t, hub, "runner-1", 1)

	hub.Broadcast("runner-1", []byte("hello"))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("client")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	conn.Close()
	waitWatchers(t, hub, "runner-1", 0)
}

func TestStreamHandlersTokenFromQuery(t *testing.T) {
	hub := NewHub(nil)
	url := serve(t, hub, auth.JWTMiddleware("secret"))

	token, err := auth.SignToken("secret", "runner-9", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url+"?access_token="+token, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitWatchers(t, hub, "runner-9", 1)
}

func TestStreamHandlersWebsocketCloseMessage(t *testing.T) {
	hub := NewHub(nil)
	url := serve(t, hub, auth.WithUser("runner-3"))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitWatchers(t, hub, "runner-3", 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	waitWatchers(t, hub, "runner-3", 0)
	hub.Broadcast("runner-3", []byte("ping"))
}
