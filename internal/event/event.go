// Package event defines the messages streamed to websocket subscribers.
// Events are transient: they are serialized to JSON with a "type"
// discriminator and transmitted, never persisted.
package event

import "time"

const (
	TypeConnectionEstablished = "connection_established"
	TypeJoinedConversation    = "joined_conversation"
	TypeConversationStatus    = "conversation_status"
	TypeTypingIndicator       = "typing_indicator"
	TypeAgentMessage          = "agent_message"
	TypeError                 = "error"
	TypePong                  = "pong"
)

// Stages tag agent messages so subscribers can render a live transcript.
const (
	StageSpecialistAnalysis = "specialist_analysis"
	StageVerificationStart  = "verification_start"
	StageVerificationResult = "verification_result"
	StageFinalReport        = "final_report"
)

type Event struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	ClientID       string         `json:"client_id,omitempty"`
	Status         string         `json:"status,omitempty"`
	AgentType      string         `json:"agent_type,omitempty"`
	Stage          string         `json:"stage,omitempty"`
	Message        string         `json:"message,omitempty"`
	IsTyping       *bool          `json:"is_typing,omitempty"`
	Timestamp      string         `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func ConnectionEstablished(clientID, conversationID, message string) Event {
	return Event{
		Type:           TypeConnectionEstablished,
		ClientID:       clientID,
		ConversationID: conversationID,
		Message:        message,
		Timestamp:      now(),
	}
}

func JoinedConversation(conversationID string) Event {
	return Event{
		Type:           TypeJoinedConversation,
		ConversationID: conversationID,
		Message:        "Joined conversation " + conversationID,
		Timestamp:      now(),
	}
}

func ConversationStatus(conversationID, status, message string, metadata map[string]any) Event {
	return Event{
		Type:           TypeConversationStatus,
		ConversationID: conversationID,
		Status:         status,
		Message:        message,
		Metadata:       metadata,
		Timestamp:      now(),
	}
}

func TypingIndicator(conversationID, agentType string, isTyping bool) Event {
	return Event{
		Type:           TypeTypingIndicator,
		ConversationID: conversationID,
		AgentType:      agentType,
		IsTyping:       &isTyping,
		Timestamp:      now(),
	}
}

func AgentMessage(conversationID, agentType, message, stage string, metadata map[string]any) Event {
	return Event{
		Type:           TypeAgentMessage,
		ConversationID: conversationID,
		AgentType:      agentType,
		Message:        message,
		Stage:          stage,
		Metadata:       metadata,
		Timestamp:      now(),
	}
}

func Error(conversationID, message string) Event {
	return Event{
		Type:           TypeError,
		ConversationID: conversationID,
		Message:        message,
		Timestamp:      now(),
	}
}

func Pong() Event {
	return Event{
		Type:      TypePong,
		Timestamp: now(),
	}
}
