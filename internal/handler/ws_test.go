package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/whatsapp-bridge-go/internal/hub"
	"github.com/openclaw/whatsapp-bridge-go/internal/model"
	"github.com/openclaw/whatsapp-bridge-go/internal/service"
	"github.com/openclaw/whatsapp-bridge-go/internal/store"
)

type stubSender struct{ ch chan string }

func (s *stubSender) Send(ctx context.Context, conversationID, text string) error {
	s.ch <- conversationID + ":" + text
	return nil
}

type wsFixture struct {
	server *httptest.Server
	hub    *hub.Hub
	store  *store.ConversationStore
	sender *stubSender
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	f := &wsFixture{
		hub:    hub.NewHub(),
		store:  store.NewConversationStore(),
		sender: &stubSender{ch: make(chan string, 16)},
	}
	gen := &stubGenerator{reply: "streamed"}
	responder := service.NewResponder(gen, time.Hour, time.Second, model.BotModeAuto)
	responder.SetSender(f.sender)
	gateway := service.NewGateway(f.hub, f.store, responder, f.sender, gen, time.Second)

	f.server = httptest.NewServer(NewWSHandler(f.hub, gateway))
	t.Cleanup(func() {
		f.server.Close()
		responder.Close()
		f.hub.Close()
	})
	return f
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, eventType string) hub.Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var ev hub.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == eventType {
			return ev
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s frame", eventType)
		}
	}
}

func TestWSConnectReceivesInitialState(t *testing.T) {
	f := newWSFixture(t)
	f.store.AppendMessage(model.Message{ID: "m1", ConversationID: "chat-1", Kind: model.ContentText, Text: "hi", Timestamp: time.Now()})

	conn := f.dial(t)

	mode := readFrame(t, conn, hub.EventBotMode)
	assert.JSONEq(t, `"auto"`, string(mode.Data))

	list := readFrame(t, conn, hub.EventChatList)
	var summaries []model.ConversationSummary
	require.NoError(t, json.Unmarshal(list.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "chat-1", summaries[0].ID)
}

func TestWSCommandRoundTrip(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)
	readFrame(t, conn, hub.EventChatList)

	cmd := service.Command{Action: service.ActionSetBotMode, Data: json.RawMessage(`{"mode":"off"}`)}
	require.NoError(t, conn.WriteJSON(cmd))

	ev := readFrame(t, conn, hub.EventBotMode)
	assert.JSONEq(t, `"off"`, string(ev.Data))
}

func TestWSBroadcastReachesEveryConnection(t *testing.T) {
	f := newWSFixture(t)
	a := f.dial(t)
	b := f.dial(t)
	readFrame(t, a, hub.EventChatList)
	readFrame(t, b, hub.EventChatList)

	f.hub.Broadcast(hub.NewEvent(hub.EventNewMessage, map[string]string{"chatId": "chat-1"}))

	readFrame(t, a, hub.EventNewMessage)
	readFrame(t, b, hub.EventNewMessage)
}

func TestWSSendManualCommand(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)
	readFrame(t, conn, hub.EventChatList)

	cmd := service.Command{Action: service.ActionSendManual, Data: json.RawMessage(`{"chatId":"chat-1","text":"typed"}`)}
	require.NoError(t, conn.WriteJSON(cmd))

	select {
	case sent := <-f.sender.ch:
		assert.Equal(t, "chat-1:typed", sent)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for manual send")
	}
}

func TestWSMalformedCommandIgnored(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)
	readFrame(t, conn, hub.EventChatList)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// Connection stays usable afterwards.
	cmd := service.Command{Action: service.ActionSetBotMode, Data: json.RawMessage(`{"mode":"manual"}`)}
	require.NoError(t, conn.WriteJSON(cmd))
	ev := readFrame(t, conn, hub.EventBotMode)
	assert.JSONEq(t, `"manual"`, string(ev.Data))
}

func TestWSDisconnectUnsubscribes(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)
	readFrame(t, conn, hub.EventChatList)
	require.Equal(t, 1, f.hub.ClientCount())

	conn.Close()

	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
