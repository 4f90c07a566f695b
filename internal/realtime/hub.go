package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classlive-backend/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns connection lifecycle for session groups: attach, detach, heartbeat,
// presence bookkeeping and cross-process event fan-out. The registry is
// process-local; the broker and the presence store are the only shared pieces.
type Hub struct {
	registry *Registry
	presence presence.Store
	broker   Broker

	// mu orders membership transitions against subscription bookkeeping:
	// the first/last-member decision and the cancel-map change for a group
	// happen together under it, so a delayed last-member teardown can never
	// cancel the subscription a concurrent first-member attach just opened.
	mu      sync.Mutex
	cancels map[GroupKey]func()
}

func NewHub(registry *Registry, presenceStore presence.Store, broker Broker) *Hub {
	return &Hub{
		registry: registry,
		presence: presenceStore,
		broker:   broker,
		cancels:  make(map[GroupKey]func()),
	}
}

func groupChannel(key GroupKey) string {
	return fmt.Sprintf("session:%s:%s", key.SessionID, key.Role)
}

// HandleWebSocket upgrades /ws/session/{sessionID}/{role} and runs the
// connection until the client goes away or the session ends.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	role := chi.URLParam(r, "role")
	if !ValidRole(role) {
		http.Error(w, "role must be teacher or student", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	key := GroupKey{SessionID: sessionID, Role: Role(role)}
	conn := newConn(ws)
	go conn.writeLoop()

	ctx := context.Background()
	h.attach(ctx, key, conn)

	h.sendDirect(conn, NewConnectedEvent(sessionID, key.Role, h.TeacherOnline(ctx, sessionID)))

	go func() {
		defer h.detach(context.Background(), key, conn)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			h.handleFrame(context.Background(), key, conn, data)
		}
	}()
}

// handleFrame processes one inbound client frame. Only the heartbeat is a
// recognized command; every other frame is ignored. A teacher heartbeat also
// re-registers the connection in the presence set, keeping the set's TTL
// ahead of expiry while the connection is alive.
func (h *Hub) handleFrame(ctx context.Context, key GroupKey, c *Conn, data []byte) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.Type != "ping" {
		return
	}

	if key.Role == RoleTeacher {
		if err := h.presence.AddMember(ctx, presence.TeacherSetKey(key.SessionID), c.ID().String()); err != nil {
			log.Printf("presence refresh failed for session %s: %v", key.SessionID, err)
		}
	}
	h.sendDirect(c, NewPongEvent())
}

func (h *Hub) attach(ctx context.Context, key GroupKey, c *Conn) {
	h.mu.Lock()
	if first := h.registry.Attach(key, c); first {
		h.subscribeLocked(key)
	}
	h.mu.Unlock()

	if key.Role == RoleTeacher {
		if err := h.presence.AddMember(ctx, presence.TeacherSetKey(key.SessionID), c.ID().String()); err != nil {
			log.Printf("presence add failed for session %s: %v", key.SessionID, err)
		}
		h.Publish(ctx, key.SessionID, RoleStudent, NewTeacherPresenceEvent(h.TeacherOnline(ctx, key.SessionID)))
	}

	log.Printf("WebSocket connected: session %s role %s conn %s", key.SessionID, key.Role, c.ID())
}

func (h *Hub) detach(ctx context.Context, key GroupKey, c *Conn) {
	h.mu.Lock()
	last := h.registry.Detach(key, c)
	c.close()
	if last {
		h.unsubscribeLocked(key)
	}
	h.mu.Unlock()

	if key.Role == RoleTeacher {
		if err := h.presence.RemoveMember(ctx, presence.TeacherSetKey(key.SessionID), c.ID().String()); err != nil {
			log.Printf("presence remove failed for session %s: %v", key.SessionID, err)
		}
		h.Publish(ctx, key.SessionID, RoleStudent, NewTeacherPresenceEvent(h.TeacherOnline(ctx, key.SessionID)))
	}

	log.Printf("WebSocket disconnected: session %s role %s conn %s", key.SessionID, key.Role, c.ID())
}

// TeacherOnline answers "is any instructor connected to this session" across
// all hub processes. A presence store error degrades to offline.
func (h *Hub) TeacherOnline(ctx context.Context, sessionID uuid.UUID) bool {
	count, err := h.presence.MemberCount(ctx, presence.TeacherSetKey(sessionID))
	if err != nil {
		log.Printf("presence query failed for session %s: %v", sessionID, err)
		return false
	}
	return count > 0
}

// Publish sends event to one role group of a session, via the broker so every
// hub process with local members delivers it. Broker errors are logged, never
// raised: a failed broadcast must not undo the persistence write that
// preceded it.
func (h *Hub) Publish(ctx context.Context, sessionID uuid.UUID, role Role, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal failed: %v", err)
		return
	}
	key := GroupKey{SessionID: sessionID, Role: role}
	if err := h.broker.Publish(ctx, groupChannel(key), data); err != nil {
		log.Printf("broadcast publish failed for %s: %v", groupChannel(key), err)
	}
}

// PublishToSession sends event to both role groups of a session.
func (h *Hub) PublishToSession(ctx context.Context, sessionID uuid.UUID, event interface{}) {
	h.Publish(ctx, sessionID, RoleTeacher, event)
	h.Publish(ctx, sessionID, RoleStudent, event)
}

func (h *Hub) sendDirect(c *Conn, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (h *Hub) subscribeLocked(key GroupKey) {
	if _, ok := h.cancels[key]; ok {
		return
	}
	ch, cancel := h.broker.Subscribe(context.Background(), groupChannel(key))
	h.cancels[key] = cancel
	go h.fanOut(key, ch)
}

func (h *Hub) unsubscribeLocked(key GroupKey) {
	cancel, ok := h.cancels[key]
	if !ok {
		return
	}
	delete(h.cancels, key)
	cancel()
}

func (h *Hub) unsubscribe(key GroupKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(key)
}

// fanOut delivers broker payloads to local group members. A session_ended
// event additionally closes every member server-side; no further frames are
// accepted on those connections.
func (h *Hub) fanOut(key GroupKey, ch <-chan []byte) {
	for payload := range ch {
		h.registry.Broadcast(key, payload)

		var probe struct {
			Event EventType `json:"event"`
		}
		if err := json.Unmarshal(payload, &probe); err == nil && probe.Event == EventSessionEnded {
			h.registry.CloseGroup(key)
			h.unsubscribe(key)
			return
		}
	}
}
