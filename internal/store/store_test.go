package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/whatsapp-bridge-go/internal/model"
)

func textMessage(chatID, id, text string) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: chatID,
		Timestamp:      time.Now(),
		Kind:           model.ContentText,
		Text:           text,
	}
}

func TestAppendMessageCreatesConversation(t *testing.T) {
	s := NewConversationStore()

	created := s.AppendMessage(textMessage("chat-1", "m1", "hello"))
	assert.True(t, created)
	assert.True(t, s.Has("chat-1"))

	created = s.AppendMessage(textMessage("chat-1", "m2", "again"))
	assert.False(t, created)

	history := s.History("chat-1")
	require.Len(t, history, 2)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m2", history[1].ID)
}

func TestAppendPreservesArrivalOrder(t *testing.T) {
	s := NewConversationStore()

	for i := 0; i < 50; i++ {
		s.AppendMessage(textMessage("chat-1", fmt.Sprintf("m%d", i), "x"))
	}

	history := s.History("chat-1")
	require.Len(t, history, 50)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.ID)
	}
}

func TestMergeHistoryIsIdempotentForConversations(t *testing.T) {
	s := NewConversationStore()

	s.UpsertConversation(model.Conversation{ID: "chat-1", DisplayName: "Alice", UnreadCount: 3})

	s.MergeHistory([]model.Conversation{
		{ID: "chat-1", DisplayName: "Overwritten", UnreadCount: 9},
		{ID: "chat-2", DisplayName: "Bob"},
	}, nil)

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Alice", snapshot[0].DisplayName)
	assert.Equal(t, 3, snapshot[0].UnreadCount)
	assert.Equal(t, "Bob", snapshot[1].DisplayName)
}

func TestMergeHistoryAppendsMessagesAndCreatesConversations(t *testing.T) {
	s := NewConversationStore()

	s.MergeHistory(nil, []model.Message{
		textMessage("chat-1", "h1", "old"),
		textMessage("chat-1", "h2", "older"),
	})

	history := s.History("chat-1")
	require.Len(t, history, 2)
	assert.Equal(t, "h1", history[0].ID)
	assert.True(t, s.Has("chat-1"))
}

func TestAttachMediaAtMostOnce(t *testing.T) {
	s := NewConversationStore()

	msg := textMessage("chat-1", "m1", "")
	msg.Kind = model.ContentMedia
	s.AppendMessage(msg)

	updated := s.AttachMedia("chat-1", "m1", "data:image/png;base64,abc", false)
	require.NotNil(t, updated)
	assert.Equal(t, "data:image/png;base64,abc", updated.MediaInline)
	assert.False(t, updated.MediaFailed)

	// Second attempt is a no-op.
	again := s.AttachMedia("chat-1", "m1", "data:image/png;base64,other", false)
	assert.Nil(t, again)

	history := s.History("chat-1")
	require.Len(t, history, 1)
	assert.Equal(t, "data:image/png;base64,abc", history[0].MediaInline)
}

func TestAttachMediaFailureKeepsMessageVisible(t *testing.T) {
	s := NewConversationStore()

	msg := textMessage("chat-1", "m1", "caption")
	msg.Kind = model.ContentMedia
	s.AppendMessage(msg)

	updated := s.AttachMedia("chat-1", "m1", "", true)
	require.NotNil(t, updated)
	assert.True(t, updated.MediaFailed)
	assert.Empty(t, updated.MediaInline)

	history := s.History("chat-1")
	require.Len(t, history, 1)
	assert.True(t, history[0].MediaFailed)
}

func TestAttachMediaUnknownMessage(t *testing.T) {
	s := NewConversationStore()
	assert.Nil(t, s.AttachMedia("chat-1", "missing", "x", false))
}

func TestSnapshotCarriesLastMessage(t *testing.T) {
	s := NewConversationStore()

	s.AppendMessage(textMessage("chat-1", "m1", "first"))
	s.AppendMessage(textMessage("chat-1", "m2", "last"))

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 1)
	require.NotNil(t, snapshot[0].LastMessage)
	assert.Equal(t, "m2", snapshot[0].LastMessage.ID)
}

func TestHistoryUnknownConversationIsEmpty(t *testing.T) {
	s := NewConversationStore()
	assert.Empty(t, s.History("nope"))
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewConversationStore()
	s.AppendMessage(textMessage("chat-1", "m1", "hello"))

	history := s.History("chat-1")
	history[0].Text = "mutated"

	assert.Equal(t, "hello", s.History("chat-1")[0].Text)
}
