package model

type Conversation struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	UnreadCount int    `json:"unreadCount"`

	// Messages is append-only; ordering is arrival order and is never
	// re-sorted.
	Messages []Message `json:"-"`
}

// ConversationSummary is a directory entry broadcast with chat-list events.
type ConversationSummary struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"name"`
	UnreadCount int      `json:"unreadCount"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// Summary returns the directory entry for the conversation.
func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		UnreadCount: c.UnreadCount,
	}
	if n := len(c.Messages); n > 0 {
		last := c.Messages[n-1]
		s.LastMessage = &last
	}
	return s
}
