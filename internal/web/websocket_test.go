package web

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkarag/venturo/internal/config"
	"github.com/mkarag/venturo/internal/event"
)

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws" + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) event.Event {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("websocket read failed: %v", err)
	}
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("bad event payload: %v", err)
	}
	return ev
}

func TestWebSocketConnectionEstablished(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := dialWS(t, ts, "?client_id=cli-1&conversation_id=conv-1")
	ev := readEvent(t, c)
	if ev.Type != event.TypeConnectionEstablished {
		t.Fatalf("expected connection_established, got %s", ev.Type)
	}
	if ev.ClientID != "cli-1" || ev.ConversationID != "conv-1" {
		t.Errorf("unexpected identity: %+v", ev)
	}
	if ev.Message != "Connected to conversation" {
		t.Errorf("unexpected message: %q", ev.Message)
	}
}

func TestWebSocketGeneratesClientID(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := dialWS(t, ts, "")
	ev := readEvent(t, c)
	if ev.Type != event.TypeConnectionEstablished {
		t.Fatalf("expected connection_established, got %s", ev.Type)
	}
	if ev.ClientID == "" {
		t.Error("expected generated client id")
	}
	if ev.Message != "WebSocket connection established" {
		t.Errorf("unexpected message: %q", ev.Message)
	}
}

func TestWebSocketJoinAndBroadcast(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := dialWS(t, ts, "?client_id=cli-1")
	readEvent(t, c) // connection_established

	if err := c.WriteJSON(map[string]string{"type": "join_conversation", "conversation_id": "conv-9"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ev := readEvent(t, c)
	if ev.Type != event.TypeJoinedConversation || ev.ConversationID != "conv-9" {
		t.Fatalf("expected joined_conversation conv-9, got %+v", ev)
	}

	// An event for the joined conversation reaches the client.
	srv.hub.Broadcast(event.ConversationStatus("conv-9", "started", "msg", nil))
	ev = readEvent(t, c)
	if ev.Type != event.TypeConversationStatus || ev.ConversationID != "conv-9" {
		t.Fatalf("expected conversation_status for conv-9, got %+v", ev)
	}
}

func TestWebSocketReconnectSameClientID(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	first := dialWS(t, ts, "?client_id=cli-1&conversation_id=conv-1")
	readEvent(t, first) // connection_established

	second := dialWS(t, ts, "?client_id=cli-1&conversation_id=conv-1")
	readEvent(t, second)

	// Registering the second connection closes the first; wait for the
	// first handler to notice and run its deferred cleanup.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("expected first connection to be closed after reconnect")
	}
	time.Sleep(100 * time.Millisecond)

	// The replacement still receives room broadcasts.
	srv.hub.Broadcast(event.ConversationStatus("conv-1", "started", "msg", nil))
	ev := readEvent(t, second)
	if ev.Type != event.TypeConversationStatus || ev.ConversationID != "conv-1" {
		t.Fatalf("expected conversation_status for conv-1, got %+v", ev)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := dialWS(t, ts, "?client_id=cli-1")
	readEvent(t, c)

	if err := c.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if ev := readEvent(t, c); ev.Type != event.TypePong {
		t.Fatalf("expected pong, got %s", ev.Type)
	}
}

func TestWebSocketRejectsBadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := dialWS(t, ts, "?client_id=cli-1")
	readEvent(t, c)

	if err := c.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ev := readEvent(t, c)
	if ev.Type != event.TypeError || ev.Message != "Invalid JSON format" {
		t.Fatalf("expected invalid JSON error, got %+v", ev)
	}
}

func TestWebSocketUnknownMessageType(t *testing.T) {
	srv, _, _ := newTestServer(t, config.WebConfig{})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := dialWS(t, ts, "?client_id=cli-1")
	readEvent(t, c)

	if err := c.WriteJSON(map[string]string{"type": "dance"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ev := readEvent(t, c)
	if ev.Type != event.TypeError || !strings.Contains(ev.Message, "dance") {
		t.Fatalf("expected unknown type error, got %+v", ev)
	}
}
