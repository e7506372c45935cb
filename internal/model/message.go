package model

import (
	"encoding/json"
	"time"
)

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"chatId"`
	FromSelf       bool        `json:"fromMe"`
	SenderName     string      `json:"senderName,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Kind           ContentKind `json:"kind"`
	Text           string      `json:"text,omitempty"`

	// MediaInline holds the materialized media payload as a data URI.
	// It is attached at most once, asynchronously, after the message has
	// already been appended to its conversation log.
	MediaInline string `json:"mediaData,omitempty"`
	MediaFailed bool   `json:"mediaDownloadFailed,omitempty"`
}

// ToEventData returns the JSON payload broadcast with new-message and
// message-updated events.
func (m *Message) ToEventData() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"chatId":  m.ConversationID,
		"message": m,
	})
	return data
}
