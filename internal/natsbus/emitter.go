package natsbus

import (
	"log/slog"

	"github.com/mkarag/venturo/internal/event"
)

// Emitter publishes workflow events onto the bus, keyed by conversation.
// Delivery is best-effort: a publish failure is logged, never surfaced to
// the workflow.
type Emitter struct {
	client *Client
}

func NewEmitter(client *Client) *Emitter {
	return &Emitter{client: client}
}

func (e *Emitter) Emit(ev event.Event) {
	if err := e.client.PublishJSON(TopicConversationEvents(ev.ConversationID), ev); err != nil {
		slog.Warn("event publish failed", "conversation", ev.ConversationID, "type", ev.Type, "error", err)
	}
}
