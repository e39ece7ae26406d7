package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

func TopicConversationEvents(conversationID string) string {
	return fmt.Sprintf("events.conversation.%s", conversationID)
}

const TopicAllConversationEvents = "events.conversation.>"
