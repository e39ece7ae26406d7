package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mkarag/venturo/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is what a websocket client may send us.
type clientMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	conversationID := r.URL.Query().Get("conversation_id")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(clientID, c)
	defer s.hub.Unregister(clientID, c)

	if conversationID != "" {
		s.hub.Join(clientID, conversationID)
		s.hub.SendTo(clientID, event.ConnectionEstablished(clientID, conversationID, "Connected to conversation"))
	} else {
		s.hub.SendTo(clientID, event.ConnectionEstablished(clientID, "", "WebSocket connection established"))
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.SendTo(clientID, event.Error("", "Invalid JSON format"))
			continue
		}
		s.handleClientMessage(clientID, msg)
	}
}

func (s *Server) handleClientMessage(clientID string, msg clientMessage) {
	switch msg.Type {
	case "join_conversation":
		if msg.ConversationID == "" {
			return
		}
		s.hub.Join(clientID, msg.ConversationID)
		s.hub.SendTo(clientID, event.JoinedConversation(msg.ConversationID))

	case "subscribe_updates":
		// Same as join, but without the acknowledgement.
		if msg.ConversationID != "" {
			s.hub.Join(clientID, msg.ConversationID)
		}

	case "ping":
		s.hub.SendTo(clientID, event.Pong())

	default:
		slog.Warn("unknown websocket message type", "client", clientID, "type", msg.Type)
		s.hub.SendTo(clientID, event.Error("", fmt.Sprintf("Unknown message type: %s", msg.Type)))
	}
}
