package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBrokeredHub(t *testing.T) (*Hub, *recordingBroker) {
	t.Helper()
	broker := newRecordingBroker()
	h := NewHub(nil, nil, nil, broker, Options{
		SendTimeout: 50 * time.Millisecond,
		InstanceID:  "gw-1",
	}, zap.NewNop())
	t.Cleanup(h.Stop)
	return h, broker
}

// attach registers a joined client with no socket; frames land in its egress
func attach(h *Hub, userID, username string) *Client {
	c := newClient(userID, username, nil, h)
	c.advance(StateJoined)
	h.registry.Register(userID, c)
	return c
}

func drain(t *testing.T, c *Client) event.WsEvent {
	t.Helper()
	select {
	case ev := <-c.egress:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event queued")
		return event.WsEvent{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.egress:
		t.Fatalf("unexpected event %s", ev.Event)
	default:
	}
}

func mustEvent(t *testing.T, name string, payload any) event.WsEvent {
	t.Helper()
	ev, err := event.New(name, payload)
	require.NoError(t, err)
	return ev
}

func TestHandleRemoteIgnoresOwnOrigin(t *testing.T) {
	h, _ := newBrokeredHub(t)
	bobClient := attach(h, "bob", "bob")

	h.handleRemote(Envelope{
		Origin: "gw-1",
		UserID: "bob",
		Event:  mustEvent(t, event.EventUserTyping, model.UserTyping{UserID: "alice"}),
	})

	assertEmpty(t, bobClient)
}

func TestHandleRemoteDeliversAndReportsReceipt(t *testing.T) {
	h, broker := newBrokeredHub(t)
	bobClient := attach(h, "bob", "bob")

	h.handleRemote(Envelope{
		Origin:   "gw-2",
		UserID:   "bob",
		Event:    mustEvent(t, event.EventReceiveMessage, model.Message{SenderID: "alice", RecipientID: "bob", Content: "hi"}),
		Delivery: &DeliveryReceipt{SenderID: "alice", MessageID: "m1", ClientTempID: "tmp-1"},
	})

	assert.Equal(t, event.EventReceiveMessage, drain(t, bobClient).Event)

	// alice is not connected here, so the receipt travels back over the broker
	envs := broker.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, "alice", envs[0].UserID)
	assert.Equal(t, "gw-1", envs[0].Origin)
	assert.Equal(t, event.EventMessageDelivered, envs[0].Event.Event)

	var delivered model.MessageDelivered
	require.NoError(t, json.Unmarshal(envs[0].Event.Payload, &delivered))
	assert.Equal(t, "m1", delivered.MessageID)
	assert.Equal(t, "tmp-1", delivered.ClientTempID)
}

func TestHandleRemoteForUnknownUserIsDropped(t *testing.T) {
	h, broker := newBrokeredHub(t)

	h.handleRemote(Envelope{
		Origin:   "gw-2",
		UserID:   "bob",
		Event:    mustEvent(t, event.EventReceiveMessage, model.Message{}),
		Delivery: &DeliveryReceipt{SenderID: "alice", MessageID: "m1"},
	})

	assert.Empty(t, broker.envelopes())
}

func TestHandleRemoteBroadcastRespectsExcept(t *testing.T) {
	h, _ := newBrokeredHub(t)
	aliceClient := attach(h, "alice", "alice")
	bobClient := attach(h, "bob", "bob")

	h.handleRemote(Envelope{
		Origin: "gw-2",
		Except: "carol",
		Event:  mustEvent(t, event.EventUserOnline, model.UserOnline{UserID: "carol"}),
	})
	assert.Equal(t, event.EventUserOnline, drain(t, aliceClient).Event)
	assert.Equal(t, event.EventUserOnline, drain(t, bobClient).Event)

	h.handleRemote(Envelope{
		Origin: "gw-2",
		Except: "bob",
		Event:  mustEvent(t, event.EventUserOffline, model.UserOffline{UserID: "bob"}),
	})
	assert.Equal(t, event.EventUserOffline, drain(t, aliceClient).Event)
	assertEmpty(t, bobClient)
}

func TestEmitToRemoteUserPublishesEnvelope(t *testing.T) {
	h, broker := newBrokeredHub(t)

	delivered := h.emit("bob", event.EventUserTyping, model.UserTyping{UserID: "alice", Username: "alice"})
	assert.False(t, delivered)

	envs := broker.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, "bob", envs[0].UserID)
	assert.Equal(t, event.EventUserTyping, envs[0].Event.Event)
	assert.Nil(t, envs[0].Delivery)
}

func TestEmitToLocalUnjoinedUserStaysLocal(t *testing.T) {
	h, broker := newBrokeredHub(t)
	c := newClient("bob", "bob", nil, h)
	c.advance(StateAuthenticated)
	h.registry.Register("bob", c)

	assert.False(t, h.emit("bob", event.EventUserTyping, model.UserTyping{UserID: "alice"}))
	assert.Empty(t, broker.envelopes())
	assertEmpty(t, c)
}

func TestNotifyMessageSentAcrossInstances(t *testing.T) {
	h, broker := newBrokeredHub(t)
	aliceClient := attach(h, "alice", "alice")

	msg := &model.Message{SenderID: "alice", RecipientID: "bob", Content: "hi", CreatedAt: time.Now().UTC()}
	h.NotifyMessageSent(msg, "tmp-7")

	// no delivered receipt yet: bob lives elsewhere
	assert.Equal(t, event.EventConversationUpdated, drain(t, aliceClient).Event)
	assertEmpty(t, aliceClient)

	envs := broker.envelopes()
	require.Len(t, envs, 2)
	assert.Equal(t, event.EventReceiveMessage, envs[0].Event.Event)
	require.NotNil(t, envs[0].Delivery)
	assert.Equal(t, "alice", envs[0].Delivery.SenderID)
	assert.Equal(t, "tmp-7", envs[0].Delivery.ClientTempID)
	assert.Equal(t, event.EventConversationUpdated, envs[1].Event.Event)
	assert.Equal(t, "bob", envs[1].UserID)
}

func TestIsOnlineFallsBackToBroker(t *testing.T) {
	h, broker := newBrokeredHub(t)
	attach(h, "alice", "alice")
	require.NoError(t, broker.SetPresence(h.ctx, "carol", true, time.Minute))

	assert.True(t, h.IsOnline(h.ctx, "alice"))
	assert.True(t, h.IsOnline(h.ctx, "carol"))
	assert.False(t, h.IsOnline(h.ctx, "dave"))
}

func TestConnectAndDisconnectMirrorPresence(t *testing.T) {
	h, broker := newBrokeredHub(t)
	c := newClient("alice", "alice", nil, h)

	h.connect(c)
	online, err := broker.IsOnline(h.ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	h.disconnect(c)
	online, err = broker.IsOnline(h.ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
	assert.Equal(t, StateDisconnected, c.State())

	var names []string
	for _, env := range broker.envelopes() {
		names = append(names, env.Event.Event)
		assert.Equal(t, "alice", env.Except)
	}
	assert.Equal(t, []string{event.EventUserOnline, event.EventUserOffline}, names)
}

func TestRedisBrokerAccept(t *testing.T) {
	b := NewRedisBroker(nil, "recipegram", "gw-1", zap.NewNop())

	raw, err := json.Marshal(Envelope{Origin: "gw-2", UserID: "bob", Event: event.WsEvent{Event: event.EventUserTyping}})
	require.NoError(t, err)
	env, ok := b.accept(string(raw))
	require.True(t, ok)
	assert.Equal(t, "bob", env.UserID)

	own, err := json.Marshal(Envelope{Origin: "gw-1", UserID: "bob"})
	require.NoError(t, err)
	_, ok = b.accept(string(own))
	assert.False(t, ok)

	_, ok = b.accept("{not json")
	assert.False(t, ok)
}

func TestRedisBrokerKeys(t *testing.T) {
	b := NewRedisBroker(nil, "recipegram", "gw-1", zap.NewNop())
	assert.Equal(t, "recipegram:events", b.channel())
	assert.Equal(t, "recipegram:presence:alice", b.presenceKey("alice"))
}
