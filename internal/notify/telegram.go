// Package notify pushes analysis outcomes to a Telegram chat. It listens
// on the event bus, so the workflow never knows it exists.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nats-io/nats.go"

	"github.com/mkarag/venturo/internal/config"
	"github.com/mkarag/venturo/internal/event"
	"github.com/mkarag/venturo/internal/natsbus"
	"github.com/mkarag/venturo/internal/store"
)

const telegramMessageLimit = 4096

type Notifier struct {
	bot    *telego.Bot
	client *natsbus.Client
	chatID int64
}

func New(cfg config.TelegramConfig, bus *natsbus.Bus) (*Notifier, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return nil, fmt.Errorf("notifier nats client: %w", err)
	}

	return &Notifier{bot: bot, client: client, chatID: cfg.ChatID}, nil
}

// Start subscribes to conversation events and forwards terminal outcomes
// until the context ends.
func (n *Notifier) Start(ctx context.Context) error {
	sub, err := n.client.Subscribe(natsbus.TopicAllConversationEvents, func(msg *nats.Msg) {
		var ev event.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		n.handle(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe conversation events: %w", err)
	}

	slog.Info("telegram notifier started", "chat", n.chatID)
	<-ctx.Done()
	_ = sub.Unsubscribe()
	return nil
}

func (n *Notifier) handle(ctx context.Context, ev event.Event) {
	if ev.Type != event.TypeConversationStatus {
		return
	}

	var text string
	switch ev.Status {
	case store.StatusCompleted:
		text = fmt.Sprintf("✅ Analysis %s completed", ev.ConversationID)
		if score, ok := reportScore(ev.Metadata); ok {
			text += fmt.Sprintf("\nOverall score: %d/100", score)
		}
	case store.StatusError:
		text = fmt.Sprintf("❌ Analysis %s failed\n%s", ev.ConversationID, ev.Message)
	default:
		return
	}

	if err := n.send(ctx, text); err != nil {
		slog.Error("telegram notification failed", "conversation", ev.ConversationID, "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, text string) error {
	for _, chunk := range chunkMessage(text, telegramMessageLimit) {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), chunk)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// reportScore digs the overall score out of a completion event's metadata.
// The report travels as map[string]any after the NATS round trip.
func reportScore(metadata map[string]any) (int, bool) {
	report, ok := metadata["report"].(map[string]any)
	if !ok {
		return 0, false
	}
	score, ok := report["overall_score"].(float64)
	if !ok {
		return 0, false
	}
	return int(score), true
}
