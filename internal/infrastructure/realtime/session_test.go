package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fancast/internal/core/domain"
	"fancast/internal/core/services"
	"fancast/internal/infrastructure/repositories/memory"
)

type sessionFixture struct {
	deps          SessionDeps
	registry      *Registry
	hub           *Hub
	streams       *memory.MemoryStreamRepository
	identities    *memory.MemoryIdentityRepository
	conversations *memory.MemoryConversationRepository
	purchases     *memory.MemoryPurchaseRepository
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	registry := NewRegistry()
	hub := NewHub(nil, nopSugar())
	relay := NewRelay(registry, hub, nil, nopSugar())

	streams := memory.NewMemoryStreamRepository().(*memory.MemoryStreamRepository)
	identities := memory.NewMemoryIdentityRepository()
	conversations := memory.NewMemoryConversationRepository()
	subscriptions := memory.NewMemorySubscriptionRepository()
	purchases := memory.NewMemoryPurchaseRepository()

	access := services.NewAccessService(subscriptions, purchases, nopSugar())

	return &sessionFixture{
		deps: SessionDeps{
			Registry:      registry,
			Hub:           hub,
			Relay:         relay,
			Streams:       streams,
			Identities:    identities,
			Conversations: conversations,
			Access:        access,
			Metrics:       nil,
			Logger:        nopSugar(),
		},
		registry:      registry,
		hub:           hub,
		streams:       streams,
		identities:    identities,
		conversations: conversations,
		purchases:     purchases,
	}
}

func (f *sessionFixture) addLiveStream(t *testing.T, id domain.StreamID, creatorID domain.UserID, policy domain.ContentAccessPolicy) {
	t.Helper()
	f.identities.Put(&domain.Identity{ID: creatorID, DisplayName: string(creatorID), Role: domain.RoleCreator})
	err := f.streams.Create(context.Background(), &domain.LiveStream{
		ID:        id,
		Title:     "test stream",
		CreatorID: creatorID,
		Live:      true,
		Policy:    policy,
		StartedAt: time.Now(),
	})
	assert.NoError(t, err)
}

func (f *sessionFixture) attach(c *fakeClient) *Session {
	session := NewSession(c, f.deps)
	f.hub.Attach(c)
	return session
}

func dispatch(session *Session, event string, data interface{}) {
	payload, _ := json.Marshal(data)
	raw, _ := json.Marshal(domain.ClientMessage{Event: event, Data: payload})
	session.Dispatch(context.Background(), raw)
}

func freePolicy(owner domain.UserID) domain.ContentAccessPolicy {
	return domain.ContentAccessPolicy{Type: domain.AccessFree, OwnerID: owner}
}

func TestSession_JoinLiveStream(t *testing.T) {
	f := newSessionFixture(t)
	f.addLiveStream(t, "stream-1", "creator-1", freePolicy("creator-1"))

	watcher := newFakeClient("conn-w", "viewer-0")
	f.attach(watcher)
	f.registry.Join("stream-1", watcher)
	watcher.mu.Lock()
	watcher.sent = nil
	watcher.mu.Unlock()

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)
	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})

	assert.Equal(t, 2, f.registry.ViewerCount("stream-1"))
	assert.Equal(t, 1, c.countEvent(t, domain.EventStreamJoined))

	// The rest of the room gets the presence pair; the joiner only gets
	// the acknowledgement.
	assert.Equal(t, 1, watcher.countEvent(t, domain.EventStreamViewerJoin))
	assert.Equal(t, 1, watcher.countEvent(t, domain.EventStreamViewerCount))
	assert.Equal(t, 0, c.countEvent(t, domain.EventStreamViewerJoin))
}

func TestSession_JoinedAckCarriesBroadcasterAndCount(t *testing.T) {
	f := newSessionFixture(t)
	f.addLiveStream(t, "stream-1", "creator-1", freePolicy("creator-1"))

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)
	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})

	var ackData json.RawMessage
	for _, ev := range c.events(t) {
		if ev.Event == domain.EventStreamJoined {
			ackData = ev.Data
		}
	}
	assert.NotNil(t, ackData)

	var ack struct {
		StreamID    domain.StreamID  `json:"stream_id"`
		Broadcaster *domain.Identity `json:"broadcaster"`
		ViewerCount int              `json:"viewer_count"`
	}
	assert.NoError(t, json.Unmarshal(ackData, &ack))
	assert.Equal(t, domain.StreamID("stream-1"), ack.StreamID)
	assert.NotNil(t, ack.Broadcaster)
	assert.Equal(t, domain.UserID("creator-1"), ack.Broadcaster.ID)
	assert.Equal(t, 1, ack.ViewerCount)
}

func TestSession_JoinUnknownStream(t *testing.T) {
	f := newSessionFixture(t)
	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)

	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "ghost"})

	assertErrorCode(t, c, domain.ErrCodeStreamNotFound)
	assert.Equal(t, 0, f.registry.RoomCount())
}

func TestSession_JoinEndedStream(t *testing.T) {
	f := newSessionFixture(t)
	f.addLiveStream(t, "stream-1", "creator-1", freePolicy("creator-1"))

	stream, err := f.streams.GetByID(context.Background(), "stream-1")
	assert.NoError(t, err)
	stream.Live = false
	assert.NoError(t, f.streams.Update(context.Background(), stream))

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)
	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})

	assertErrorCode(t, c, domain.ErrCodeStreamNotLive)
}

func TestSession_PaidStreamGatesTheRoom(t *testing.T) {
	f := newSessionFixture(t)
	f.addLiveStream(t, "stream-1", "creator-1", domain.ContentAccessPolicy{
		Type:       domain.AccessPaid,
		PriceCents: 500,
		OwnerID:    "creator-1",
	})

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)

	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})
	assertErrorCode(t, c, domain.ErrCodeAccessDenied)
	assert.Equal(t, 0, f.registry.ViewerCount("stream-1"))

	// Complete the purchase and retry: the join re-evaluates access and
	// sees the new record.
	err := f.purchases.Record(context.Background(), &domain.PurchaseRecord{
		UserID:    "viewer-1",
		ContentID: domain.StreamID("stream-1").ContentID(),
		Status:    domain.PurchaseCompleted,
	})
	assert.NoError(t, err)

	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})
	assert.Equal(t, 1, c.countEvent(t, domain.EventStreamJoined))
	assert.Equal(t, 1, f.registry.ViewerCount("stream-1"))
}

func TestSession_MalformedAndUnknownEvents(t *testing.T) {
	f := newSessionFixture(t)
	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)

	session.Dispatch(context.Background(), []byte("{not json"))
	assertErrorCode(t, c, domain.ErrCodeMalformedEvent)

	dispatch(session, "stream:teleport", map[string]string{})
	assert.Equal(t, 2, c.countEvent(t, domain.EventError))
}

func TestSession_ChatRequiresRoomMembership(t *testing.T) {
	f := newSessionFixture(t)
	f.addLiveStream(t, "stream-1", "creator-1", freePolicy("creator-1"))

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)

	dispatch(session, domain.EventStreamChat, map[string]string{"stream_id": "stream-1", "content": "hi"})
	assertErrorCode(t, c, domain.ErrCodeAccessDenied)

	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})
	dispatch(session, domain.EventStreamChat, map[string]string{"stream_id": "stream-1", "content": "hi"})
	assert.Equal(t, 1, c.countEvent(t, domain.EventStreamChat))
}

func TestSession_LeaveIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	f.addLiveStream(t, "stream-1", "creator-1", freePolicy("creator-1"))

	other := newFakeClient("conn-o", "viewer-2")
	f.attach(other)
	f.registry.Join("stream-1", other)

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)
	dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": "stream-1"})

	dispatch(session, domain.EventStreamLeave, map[string]string{"stream_id": "stream-1"})
	dispatch(session, domain.EventStreamLeave, map[string]string{"stream_id": "stream-1"})

	assert.Equal(t, 1, f.registry.ViewerCount("stream-1"))
	// Exactly one departure was announced despite two leave events.
	assert.Equal(t, 1, other.countEvent(t, domain.EventStreamViewerLeft))
}

func TestSession_ConversationRequiresParticipant(t *testing.T) {
	f := newSessionFixture(t)
	c := newFakeClient("conn-1", "user-1")
	session := f.attach(c)

	dispatch(session, domain.EventConversationJoin, map[string]string{"conversation_id": "conv-1"})
	assertErrorCode(t, c, domain.ErrCodeNotParticipant)

	f.conversations.AddParticipant("conv-1", "user-1")
	dispatch(session, domain.EventConversationJoin, map[string]string{"conversation_id": "conv-1"})
	assert.True(t, f.hub.InConversation("conv-1", c))
}

func TestSession_ConversationMessageRequiresJoin(t *testing.T) {
	f := newSessionFixture(t)
	f.conversations.AddParticipant("conv-1", "user-1")

	c := newFakeClient("conn-1", "user-1")
	session := f.attach(c)

	// Being a participant is not enough; the room must be joined on
	// this connection first.
	dispatch(session, domain.EventConversationMessage, map[string]string{"conversation_id": "conv-1", "content": "hi"})
	assertErrorCode(t, c, domain.ErrCodeNotParticipant)

	dispatch(session, domain.EventConversationJoin, map[string]string{"conversation_id": "conv-1"})
	dispatch(session, domain.EventConversationMessage, map[string]string{"conversation_id": "conv-1", "content": "hi"})
	assert.Equal(t, 1, c.countEvent(t, domain.EventConversationMessage))
}

func TestSession_CloseCleansUpEveryRoom(t *testing.T) {
	f := newSessionFixture(t)

	witnesses := make(map[domain.StreamID]*fakeClient)
	for i := 1; i <= 3; i++ {
		streamID := domain.StreamID(fmt.Sprintf("stream-%d", i))
		f.addLiveStream(t, streamID, domain.UserID(fmt.Sprintf("creator-%d", i)), freePolicy(domain.UserID(fmt.Sprintf("creator-%d", i))))

		w := newFakeClient(fmt.Sprintf("conn-w%d", i), domain.UserID(fmt.Sprintf("witness-%d", i)))
		f.attach(w)
		f.registry.Join(streamID, w)
		witnesses[streamID] = w
	}

	f.conversations.AddParticipant("conv-1", "viewer-1")
	f.conversations.AddParticipant("conv-2", "viewer-1")

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)
	for i := 1; i <= 3; i++ {
		dispatch(session, domain.EventStreamJoin, map[string]string{"stream_id": fmt.Sprintf("stream-%d", i)})
	}
	dispatch(session, domain.EventConversationJoin, map[string]string{"conversation_id": "conv-1"})
	dispatch(session, domain.EventConversationJoin, map[string]string{"conversation_id": "conv-2"})

	session.Close()

	for streamID, w := range witnesses {
		assert.Equal(t, 1, f.registry.ViewerCount(streamID), "stream %s", streamID)
		assert.Equal(t, 1, w.countEvent(t, domain.EventStreamViewerLeft), "stream %s", streamID)
		// One count update for the join, one for the disconnect.
		assert.Equal(t, 2, w.countEvent(t, domain.EventStreamViewerCount), "stream %s", streamID)
	}

	assert.False(t, f.hub.InConversation("conv-1", c))
	assert.False(t, f.hub.InConversation("conv-2", c))
	_, ok := f.hub.Lookup("conn-1")
	assert.False(t, ok)

	// Close is idempotent: no second round of broadcasts.
	session.Close()
	for _, w := range witnesses {
		assert.Equal(t, 1, w.countEvent(t, domain.EventStreamViewerLeft))
	}
}

func TestSession_RateLimiting(t *testing.T) {
	f := newSessionFixture(t)
	f.deps.MessagesPerSecond = 1
	f.deps.MessageBurst = 1

	c := newFakeClient("conn-1", "viewer-1")
	session := f.attach(c)

	dispatch(session, "stream:teleport", map[string]string{})
	dispatch(session, "stream:teleport", map[string]string{})

	codes := errorCodes(t, c)
	assert.Contains(t, codes, domain.ErrCodeRateLimited)
}

func assertErrorCode(t *testing.T, c *fakeClient, code string) {
	t.Helper()
	assert.Contains(t, errorCodes(t, c), code)
}

func errorCodes(t *testing.T, c *fakeClient) []string {
	t.Helper()
	var codes []string
	for _, ev := range c.events(t) {
		if ev.Event != domain.EventError {
			continue
		}
		var e domain.ErrorEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			t.Fatalf("error event payload: %v", err)
		}
		codes = append(codes, e.Code)
	}
	return codes
}
