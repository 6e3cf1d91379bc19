package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"backend-runnersurfers/internal/tracking"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	channelPrefix  = "runs:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix

	relayBuffer    = 256
	publishTimeout = 500 * time.Millisecond
)

type relayMsg struct {
	channel string
	body    string
}

// Hub fans live run updates out to a runner's websocket clients. With redis it also
// relays them to the other API instances, each of which skips its own messages.
type Hub struct {
	id      string
	redis   *redis.Client
	relay   chan relayMsg
	cancel  context.CancelFunc
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	UserID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		cancel:  cancel,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		h.relay = make(chan relayMsg, relayBuffer)
		go h.publishRedis(ctx)

		ready := make(chan struct{})
		go h.subscribeRedis(ctx, ready)
		select {
		case <-ready:
		case <-time.After(time.Second):
			log.Warn().Msg("redis subscription not confirmed, cross-instance relay may lag")
		}
	}
	return h
}

// Close stops the redis relay. Registered clients are left to their handlers.
func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) Register(userID string) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.UserID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	close(client.Send)
}

// Watchers counts the clients connected for a runner on this instance.
func (h *Hub) Watchers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Broadcast delivers locally and queues the relay to other instances. It never waits on redis;
// when the relay backlog is full the update is only seen by this instance's clients.
func (h *Hub) Broadcast(userID string, payload []byte) {
	h.deliver(userID, payload)

	if h.relay == nil {
		return
	}
	select {
	case h.relay <- relayMsg{channel: redisChannel(userID), body: h.id + "\n" + string(payload)}:
	default:
		log.Warn().Str("user_id", userID).Msg("redis relay backlog full, update not relayed")
	}
}

// PublishSnapshot sends the live run state to the runner's watchers.
func (h *Hub) PublishSnapshot(userID string, snap tracking.Snapshot) {
	payload, err := sonic.Marshal(map[string]any{"type": "snapshot", "snapshot": snap})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("encode snapshot")
		return
	}
	h.Broadcast(userID, payload)
}

// deliver drops the message for clients whose buffer is full.
func (h *Hub) deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) publishRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-h.relay:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := h.redis.Publish(pctx, m.channel, m.body).Err()
			cancel()
			if err != nil {
				log.Error().Err(err).Str("channel", m.channel).Msg("redis publish failed")
			}
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, ready chan<- struct{}) {
	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error().Err(err).Msg("redis subscribe failed")
		close(ready)
		return
	}
	close(ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			origin, payload, framed := strings.Cut(msg.Payload, "\n")
			if !framed || origin == h.id {
				continue
			}
			userID := userIDFromChannel(msg.Channel)
			if userID == "" {
				continue
			}
			h.deliver(userID, []byte(payload))
		}
	}
}

func redisChannel(userID string) string {
	return channelPrefix + userID + channelSuffix
}

func userIDFromChannel(ch string) string {
	// runs:{user}:broadcast
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
