package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memBroker is an in-process stand-in for the Redis pub/sub broker.
type memBroker struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemBroker() *memBroker {
	return &memBroker{subs: make(map[string][]chan []byte)}
}

func (b *memBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	targets := append([]chan []byte(nil), b.subs[channel]...)
	b.mu.Unlock()
	for _, ch := range targets {
		ch <- payload
	}
	return nil
}

func (b *memBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			subs := b.subs[channel]
			for i, c := range subs {
				if c == ch {
					b.subs[channel] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *memBroker) subscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

// memPresence counts members in process instead of in Redis.
type memPresence struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
	adds    int
	err     error
}

func newMemPresence() *memPresence {
	return &memPresence{members: make(map[string]map[string]struct{})}
}

func (p *memPresence) AddMember(ctx context.Context, key, member string) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[key] == nil {
		p.members[key] = make(map[string]struct{})
	}
	p.members[key][member] = struct{}{}
	p.adds++
	return nil
}

func (p *memPresence) addCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.adds
}

func (p *memPresence) RemoveMember(ctx context.Context, key, member string) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members[key], member)
	return nil
}

func (p *memPresence) MemberCount(ctx context.Context, key string) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.members[key])), nil
}

// waitFrames polls until the conn has received at least n frames.
func waitFrames(t *testing.T, c *Conn, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var frames [][]byte
	for time.Now().Before(deadline) {
		frames = append(frames, drain(c)...)
		if len(frames) >= n {
			return frames
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected at least %d frames, got %d", n, len(frames))
	return nil
}

func eventName(t *testing.T, payload []byte) EventType {
	t.Helper()
	var probe struct {
		Event EventType `json:"event"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		t.Fatalf("Failed to parse frame %q: %v", payload, err)
	}
	return probe.Event
}

func TestHubPublishReachesLocalGroup(t *testing.T) {
	broker := newMemBroker()
	hub := NewHub(NewRegistry(), newMemPresence(), broker)
	ctx := context.Background()

	sessionID := uuid.New()
	key := GroupKey{SessionID: sessionID, Role: RoleStudent}
	c := newConn(nil)
	hub.attach(ctx, key, c)

	hub.Publish(ctx, sessionID, RoleStudent, NewImportantEvent("slide 12", nil))

	frames := waitFrames(t, c, 1)
	if got := eventName(t, frames[0]); got != EventImportant {
		t.Errorf("Expected important event, got %q", got)
	}
}

func TestHubSubscribesOncePerGroup(t *testing.T) {
	broker := newMemBroker()
	hub := NewHub(NewRegistry(), newMemPresence(), broker)
	ctx := context.Background()

	sessionID := uuid.New()
	key := GroupKey{SessionID: sessionID, Role: RoleStudent}
	c1 := newConn(nil)
	c2 := newConn(nil)
	hub.attach(ctx, key, c1)
	hub.attach(ctx, key, c2)

	if got := broker.subscriberCount(groupChannel(key)); got != 1 {
		t.Errorf("Expected 1 broker subscription for the group, got %d", got)
	}

	hub.detach(ctx, key, c1)
	if got := broker.subscriberCount(groupChannel(key)); got != 1 {
		t.Errorf("Expected subscription to survive while members remain, got %d", got)
	}

	hub.detach(ctx, key, c2)
	if got := broker.subscriberCount(groupChannel(key)); got != 0 {
		t.Errorf("Expected unsubscribe after last member left, got %d", got)
	}
}

func TestHubTeacherPresence(t *testing.T) {
	broker := newMemBroker()
	store := newMemPresence()
	hub := NewHub(NewRegistry(), store, broker)
	ctx := context.Background()

	sessionID := uuid.New()

	if hub.TeacherOnline(ctx, sessionID) {
		t.Error("Expected teacher offline before any attach")
	}

	// A student listens for presence transitions.
	studentKey := GroupKey{SessionID: sessionID, Role: RoleStudent}
	student := newConn(nil)
	hub.attach(ctx, studentKey, student)

	teacherKey := GroupKey{SessionID: sessionID, Role: RoleTeacher}
	teacher := newConn(nil)
	hub.attach(ctx, teacherKey, teacher)

	if !hub.TeacherOnline(ctx, sessionID) {
		t.Error("Expected teacher online after attach")
	}

	frames := waitFrames(t, student, 1)
	if got := eventName(t, frames[0]); got != EventTeacherPresence {
		t.Errorf("Expected teacher_presence event, got %q", got)
	}
	var presenceFrame TeacherPresenceEvent
	json.Unmarshal(frames[0], &presenceFrame)
	if !presenceFrame.TeacherOnline {
		t.Error("Expected teacher_online=true after teacher attach")
	}

	hub.detach(ctx, teacherKey, teacher)
	if hub.TeacherOnline(ctx, sessionID) {
		t.Error("Expected teacher offline after detach")
	}

	frames = waitFrames(t, student, 1)
	var offline TeacherPresenceEvent
	json.Unmarshal(frames[len(frames)-1], &offline)
	if offline.TeacherOnline {
		t.Error("Expected teacher_online=false after teacher detach")
	}
}

func TestHubSubscriptionSurvivesDetachAttachChurn(t *testing.T) {
	broker := newMemBroker()
	hub := NewHub(NewRegistry(), newMemPresence(), broker)
	ctx := context.Background()

	sessionID := uuid.New()
	key := GroupKey{SessionID: sessionID, Role: RoleStudent}

	// Race a last-member detach against a first-member attach. The group must
	// never end up with a member but no broker subscription.
	for i := 0; i < 200; i++ {
		a := newConn(nil)
		hub.attach(ctx, key, a)

		b := newConn(nil)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.detach(ctx, key, a)
		}()
		go func() {
			defer wg.Done()
			hub.attach(ctx, key, b)
		}()
		wg.Wait()

		if got := hub.registry.Count(key); got != 1 {
			t.Fatalf("Iteration %d: expected 1 member, got %d", i, got)
		}
		if got := broker.subscriberCount(groupChannel(key)); got != 1 {
			t.Fatalf("Iteration %d: expected a live subscription while a member is attached, got %d", i, got)
		}

		hub.detach(ctx, key, b)
	}

	if got := broker.subscriberCount(groupChannel(key)); got != 0 {
		t.Errorf("Expected unsubscribe after final detach, got %d", got)
	}
}

func TestHubHeartbeat(t *testing.T) {
	store := newMemPresence()
	hub := NewHub(NewRegistry(), store, newMemBroker())
	ctx := context.Background()

	sessionID := uuid.New()
	teacherKey := GroupKey{SessionID: sessionID, Role: RoleTeacher}
	teacher := newConn(nil)
	hub.attach(ctx, teacherKey, teacher)

	addsAfterAttach := store.addCount()

	// A teacher ping answers pong and re-registers presence, extending the
	// set's expiry.
	hub.handleFrame(ctx, teacherKey, teacher, []byte(`{"type":"ping"}`))

	frames := waitFrames(t, teacher, 1)
	if got := eventName(t, frames[len(frames)-1]); got != EventPong {
		t.Errorf("Expected pong, got %q", got)
	}
	if got := store.addCount(); got != addsAfterAttach+1 {
		t.Errorf("Expected presence refresh on teacher ping, got %d adds", got-addsAfterAttach)
	}

	// A student ping answers pong without touching presence.
	studentKey := GroupKey{SessionID: sessionID, Role: RoleStudent}
	student := newConn(nil)
	hub.attach(ctx, studentKey, student)
	hub.handleFrame(ctx, studentKey, student, []byte(`{"type":"ping"}`))

	frames = waitFrames(t, student, 1)
	if got := eventName(t, frames[len(frames)-1]); got != EventPong {
		t.Errorf("Expected pong for student, got %q", got)
	}
	if got := store.addCount(); got != addsAfterAttach+1 {
		t.Errorf("Expected no presence change on student ping, got %d adds", got-addsAfterAttach)
	}

	// Unrecognized and malformed frames are ignored.
	drain(teacher)
	hub.handleFrame(ctx, teacherKey, teacher, []byte(`{"type":"shout"}`))
	hub.handleFrame(ctx, teacherKey, teacher, []byte(`not json`))
	if got := len(drain(teacher)); got != 0 {
		t.Errorf("Expected no reply to unrecognized frames, got %d", got)
	}
}

func TestHubTeacherOnlineDegradesOnStoreError(t *testing.T) {
	store := newMemPresence()
	store.err = context.DeadlineExceeded
	hub := NewHub(NewRegistry(), store, newMemBroker())

	if hub.TeacherOnline(context.Background(), uuid.New()) {
		t.Error("Expected offline when the presence store is unavailable")
	}
}

func TestHubSessionEndedClosesGroup(t *testing.T) {
	broker := newMemBroker()
	hub := NewHub(NewRegistry(), newMemPresence(), broker)
	ctx := context.Background()

	sessionID := uuid.New()
	key := GroupKey{SessionID: sessionID, Role: RoleStudent}
	c := newConn(nil)
	hub.attach(ctx, key, c)

	hub.PublishToSession(ctx, sessionID, NewSessionEndedEvent(sessionID))

	// The ended frame is delivered first, then the group is torn down.
	frames := waitFrames(t, c, 1)
	if got := eventName(t, frames[0]); got != EventSessionEnded {
		t.Errorf("Expected session_ended event, got %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.registry.Count(key) == 0 && broker.subscriberCount(groupChannel(key)) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Expected group closed and unsubscribed: count=%d subs=%d",
		hub.registry.Count(key), broker.subscriberCount(groupChannel(key)))
}
