package transport

import (
	"context"
	"time"
)

// EventType discriminates Event payloads.
type EventType string

const (
	// EventPairingChallenge carries an out-of-band pairing challenge that a
	// human must complete before the session can open.
	EventPairingChallenge EventType = "pairing_challenge"
	// EventOpened signals that the session is connected and authenticated.
	EventOpened EventType = "opened"
	// EventClosed signals that the session closed, with a reason string the
	// supervisor classifies (see ClosedLoggedOut).
	EventClosed EventType = "closed"
	// EventHistory carries a bulk load of historical conversations/messages.
	EventHistory EventType = "history"
	// EventMessage carries one live inbound or self-authored message.
	EventMessage EventType = "message"
)

// ClosedLoggedOut is the close reason that marks a session as terminally
// logged out. Every other reason is treated as transient.
const ClosedLoggedOut = "logged_out"

// Event is one normalized transport event. Exactly the fields relevant to
// Type are populated.
type Event struct {
	Type EventType

	Challenge string      // EventPairingChallenge
	Reason    string      // EventClosed
	History   *History    // EventHistory
	Message   *RawMessage // EventMessage
}

// History is a bulk load of conversations and their historical messages.
type History struct {
	Conversations []ChatInfo
	Messages      []RawMessage
}

// ChatInfo describes one conversation as the network reports it.
type ChatInfo struct {
	ID          string
	DisplayName string
	UnreadCount int
}

// RawMessage is one message as delivered by the network, before
// normalization into the conversation store.
type RawMessage struct {
	ConversationID string
	MessageID      string
	SenderName     string
	FromSelf       bool
	Timestamp      time.Time
	Text           string
	Media          *MediaRef
	Unsupported    bool
}

// MediaRef points at a downloadable media attachment.
type MediaRef struct {
	ID       string
	URL      string
	MimeType string
}

// Session is a live link to the external messaging network. Implementations
// wrap the network library's callback-style API behind a single typed event
// channel.
type Session interface {
	// Events returns the session's event stream. The channel is closed when
	// the session ends; an EventClosed is delivered first.
	Events() <-chan Event
	// Send dispatches an outbound text message. One attempt, no retries.
	Send(ctx context.Context, conversationID, text string) error
	// DownloadMedia fetches the bytes behind a media reference.
	DownloadMedia(ctx context.Context, ref MediaRef) ([]byte, error)
	// Close tears the session down. Safe to call more than once.
	Close() error
}

// Dialer establishes sessions. Dial returns once the underlying library has
// started connecting; pairing and open/closed progress arrives as events.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// CredentialStore persists the opaque credential blob that lets a session
// reconnect without re-pairing. The blob's contents belong to the transport
// library; the supervisor only checks presence and clears it on logout.
type CredentialStore interface {
	Exists(ctx context.Context) (bool, error)
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
	Clear(ctx context.Context) error
}
