package store

import (
	"sync"

	"github.com/openclaw/whatsapp-bridge-go/internal/model"
)

// ConversationStore is the in-memory directory of conversations and their
// ordered message logs. State lives for the lifetime of the process; there is
// no eviction.
//
// All mutation for a given conversation happens under the store lock, which
// gives the single-writer-per-conversation discipline the pipeline relies on.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	order         []string // insertion order for stable snapshots
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*model.Conversation),
	}
}

// UpsertConversation inserts the conversation if it is absent and reports
// whether it was created. Existing conversations are never overwritten.
func (s *ConversationStore) UpsertConversation(conv model.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(conv)
}

func (s *ConversationStore) insertLocked(conv model.Conversation) bool {
	if _, ok := s.conversations[conv.ID]; ok {
		return false
	}
	c := conv
	s.conversations[conv.ID] = &c
	s.order = append(s.order, conv.ID)
	return true
}

// AppendMessage appends msg to its conversation's log, creating the
// conversation first if it is unknown. It reports whether the conversation
// was created by this call.
func (s *ConversationStore) AppendMessage(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.insertLocked(model.Conversation{
		ID:          msg.ConversationID,
		DisplayName: displayNameFor(msg),
		UnreadCount: initialUnread(msg),
	})
	conv := s.conversations[msg.ConversationID]
	conv.Messages = append(conv.Messages, msg)
	return created
}

func displayNameFor(msg model.Message) string {
	if msg.SenderName != "" && !msg.FromSelf {
		return msg.SenderName
	}
	return msg.ConversationID
}

func initialUnread(msg model.Message) int {
	if msg.FromSelf {
		return 0
	}
	return 1
}

// MergeHistory idempotently merges a bulk history load: absent conversations
// are inserted, existing ones are left untouched, and every historical
// message is appended to its conversation's log in the given order.
func (s *ConversationStore) MergeHistory(conversations []model.Conversation, messages []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range conversations {
		conv.Messages = nil
		s.insertLocked(conv)
	}
	for _, msg := range messages {
		s.insertLocked(model.Conversation{
			ID:          msg.ConversationID,
			DisplayName: msg.ConversationID,
		})
		conv := s.conversations[msg.ConversationID]
		conv.Messages = append(conv.Messages, msg)
	}
}

// AttachMedia records the outcome of an asynchronous media materialization
// for the identified message. The attachment happens at most once: a second
// call for the same message is a no-op. It returns the updated message, or
// nil if the message is unknown or already materialized.
func (s *ConversationStore) AttachMedia(conversationID, messageID, inline string, failed bool) *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	for i := range conv.Messages {
		msg := &conv.Messages[i]
		if msg.ID != messageID {
			continue
		}
		if msg.MediaInline != "" || msg.MediaFailed {
			return nil
		}
		msg.MediaInline = inline
		msg.MediaFailed = failed
		updated := *msg
		return &updated
	}
	return nil
}

// History returns a copy of the conversation's message log in arrival order.
// Unknown conversations yield an empty history.
func (s *ConversationStore) History(conversationID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return []model.Message{}
	}
	out := make([]model.Message, len(conv.Messages))
	copy(out, conv.Messages)
	return out
}

// Snapshot returns the conversation directory with each entry carrying its
// last message, in insertion order.
func (s *ConversationStore) Snapshot() []model.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ConversationSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.conversations[id].Summary())
	}
	return out
}

// Has reports whether the conversation exists.
func (s *ConversationStore) Has(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[conversationID]
	return ok
}

// Len returns the number of known conversations.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
