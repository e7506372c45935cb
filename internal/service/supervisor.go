package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/whatsapp-bridge-go/internal/errors"
	"github.com/openclaw/whatsapp-bridge-go/internal/hub"
	"github.com/openclaw/whatsapp-bridge-go/internal/media"
	"github.com/openclaw/whatsapp-bridge-go/internal/model"
	"github.com/openclaw/whatsapp-bridge-go/internal/store"
	"github.com/openclaw/whatsapp-bridge-go/internal/transport"
)

// AutoResponder receives inbound non-self messages for debounced automatic
// replies.
type AutoResponder interface {
	HandleInbound(conversationID, text string)
}

// Supervisor owns the single process-wide connection session. It drives the
// session lifecycle (pairing, connect, reconnect, terminal logout),
// normalizes transport events into conversation store updates, and forwards
// inbound messages to the responder.
//
// State transitions are serialized under mu; transport events are consumed
// by one goroutine per session, in arrival order.
type Supervisor struct {
	dialer    transport.Dialer
	creds     transport.CredentialStore
	store     *store.ConversationStore
	media     *media.Materializer
	hub       *hub.Hub
	responder AutoResponder

	reconnectInterval time.Duration

	mu         sync.Mutex
	ctx        context.Context
	state      model.ConnectionState
	challenge  string
	retryCount int
	inProgress bool
	terminal   bool
	session    transport.Session
}

func NewSupervisor(
	dialer transport.Dialer,
	creds transport.CredentialStore,
	convStore *store.ConversationStore,
	materializer *media.Materializer,
	h *hub.Hub,
	responder AutoResponder,
	reconnectInterval time.Duration,
) *Supervisor {
	return &Supervisor{
		dialer:            dialer,
		creds:             creds,
		store:             convStore,
		media:             materializer,
		hub:               h,
		responder:         responder,
		reconnectInterval: reconnectInterval,
		ctx:               context.Background(),
		state:             model.ConnectionDisconnected,
	}
}

// Run starts the first connection attempt. Reconnects reuse ctx, so it must
// outlive the supervisor.
func (s *Supervisor) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.connect()
}

func (s *Supervisor) connect() {
	s.mu.Lock()
	if s.inProgress || s.terminal {
		s.mu.Unlock()
		return
	}
	s.inProgress = true
	ctx := s.ctx
	s.mu.Unlock()

	paired, err := s.creds.Exists(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("credential check failed, assuming unpaired")
		paired = false
	}

	s.mu.Lock()
	if paired {
		s.state = model.ConnectionConnecting
	} else {
		s.state = model.ConnectionAwaitingPairing
	}
	s.mu.Unlock()

	log.Info().Bool("paired", paired).Msg("connecting to messaging network")

	sess, err := s.dialer.Dial(ctx)
	if err != nil {
		log.Error().Err(err).Msg(apperrors.ConnectFailed(err).Error())
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	go s.eventLoop(sess)
}

func (s *Supervisor) scheduleReconnect() {
	s.mu.Lock()
	s.inProgress = false
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.state = model.ConnectionConnecting
	s.retryCount++
	attempt := s.retryCount
	s.mu.Unlock()

	log.Info().Int("attempt", attempt).Dur("retryIn", s.reconnectInterval).Msg("scheduling reconnect")
	time.AfterFunc(s.reconnectInterval, s.connect)
}

func (s *Supervisor) eventLoop(sess transport.Session) {
	closed := false
	for ev := range sess.Events() {
		switch ev.Type {
		case transport.EventPairingChallenge:
			s.handlePairing(ev.Challenge)
		case transport.EventOpened:
			s.handleOpened()
		case transport.EventClosed:
			closed = true
			s.handleClosed(sess, ev.Reason)
		case transport.EventHistory:
			if ev.History == nil {
				log.Warn().Msg("dropping history event with no payload")
				continue
			}
			s.handleHistory(sess, ev.History)
		case transport.EventMessage:
			if ev.Message == nil {
				log.Warn().Msg("dropping message event with no payload")
				continue
			}
			s.handleMessage(sess, ev.Message)
		default:
			log.Warn().Str("eventType", string(ev.Type)).Msg("dropping unknown transport event")
		}
	}
	if !closed {
		// Event channel ended without a close event; treat as a transient
		// connection loss.
		s.handleClosed(sess, "connection_lost")
	}
}

func (s *Supervisor) handlePairing(challenge string) {
	s.mu.Lock()
	s.state = model.ConnectionAwaitingPairing
	s.challenge = challenge
	s.mu.Unlock()

	log.Info().Msg("pairing challenge received")
	s.hub.Broadcast(hub.NewEvent(hub.EventQRCode, map[string]string{"qr": challenge}))
}

func (s *Supervisor) handleOpened() {
	s.mu.Lock()
	s.state = model.ConnectionConnected
	s.challenge = ""
	s.retryCount = 0
	s.inProgress = false
	s.mu.Unlock()

	log.Info().Msg("connection opened")
	s.hub.Broadcast(hub.NewEvent(hub.EventConnected, nil))
}

func (s *Supervisor) handleClosed(sess transport.Session, reason string) {
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	s.session = nil
	s.inProgress = false
	s.challenge = ""
	_ = sess.Close()

	if reason == transport.ClosedLoggedOut {
		s.terminal = true
		s.state = model.ConnectionDisconnected
		ctx := s.ctx
		s.mu.Unlock()

		if err := s.creds.Clear(ctx); err != nil {
			log.Error().Err(err).Msg("failed to clear credentials after logout")
		}
		log.Warn().Msg("session logged out, re-pairing required")
		s.hub.Broadcast(hub.NewEvent(hub.EventConnectionLost, map[string]any{
			"reason":          reason,
			"pairingRequired": true,
		}))
		return
	}
	s.mu.Unlock()

	log.Info().Str("reason", reason).Msg("connection closed, reconnecting")
	s.scheduleReconnect()
}

func (s *Supervisor) handleHistory(sess transport.Session, h *transport.History) {
	conversations := make([]model.Conversation, 0, len(h.Conversations))
	for _, info := range h.Conversations {
		if info.ID == "" {
			log.Warn().Msg("dropping history conversation without id")
			continue
		}
		name := info.DisplayName
		if name == "" {
			name = info.ID
		}
		conversations = append(conversations, model.Conversation{
			ID:          info.ID,
			DisplayName: name,
			UnreadCount: info.UnreadCount,
		})
	}

	messages := make([]model.Message, 0, len(h.Messages))
	var pendingMedia []transport.RawMessage
	for _, raw := range h.Messages {
		if raw.ConversationID == "" || raw.MessageID == "" {
			log.Warn().Msg("dropping malformed history message")
			continue
		}
		messages = append(messages, normalizeMessage(raw))
		if raw.Media != nil {
			pendingMedia = append(pendingMedia, raw)
		}
	}

	s.store.MergeHistory(conversations, messages)
	log.Info().
		Int("conversations", len(conversations)).
		Int("messages", len(messages)).
		Msg("history merged")

	for _, raw := range pendingMedia {
		go s.materialize(sess, raw.ConversationID, raw.MessageID, *raw.Media)
	}

	s.hub.Broadcast(hub.NewEvent(hub.EventChatList, s.store.Snapshot()))
}

func (s *Supervisor) handleMessage(sess transport.Session, raw *transport.RawMessage) {
	if raw.ConversationID == "" || raw.MessageID == "" {
		log.Warn().Msg("dropping malformed message event")
		return
	}

	msg := normalizeMessage(*raw)
	created := s.store.AppendMessage(msg)

	if created {
		s.hub.Broadcast(hub.NewEvent(hub.EventChatList, s.store.Snapshot()))
	} else {
		s.hub.Broadcast(hub.Event{Type: hub.EventNewMessage, Data: msg.ToEventData()})
	}

	if raw.Media != nil {
		go s.materialize(sess, msg.ConversationID, msg.ID, *raw.Media)
	}

	if !msg.FromSelf {
		s.responder.HandleInbound(msg.ConversationID, msg.Text)
	}
}

func (s *Supervisor) materialize(sess transport.Session, conversationID, messageID string, ref transport.MediaRef) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	inline, ok := s.media.Materialize(ctx, sess, ref)
	updated := s.store.AttachMedia(conversationID, messageID, inline, !ok)
	if updated != nil {
		s.hub.Broadcast(hub.Event{Type: hub.EventMessageUpdated, Data: updated.ToEventData()})
	}
}

// Send dispatches an outbound text message through the live session and, on
// success, records it as a self-authored message. One attempt; failures are
// returned to the caller.
func (s *Supervisor) Send(ctx context.Context, conversationID, text string) error {
	s.mu.Lock()
	sess := s.session
	state := s.state
	s.mu.Unlock()

	if state != model.ConnectionConnected || sess == nil {
		return apperrors.NotConnected()
	}
	if err := sess.Send(ctx, conversationID, text); err != nil {
		return apperrors.SendFailed(conversationID, err)
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		FromSelf:       true,
		Timestamp:      time.Now(),
		Kind:           model.ContentText,
		Text:           text,
	}
	created := s.store.AppendMessage(msg)
	if created {
		s.hub.Broadcast(hub.NewEvent(hub.EventChatList, s.store.Snapshot()))
	} else {
		s.hub.Broadcast(hub.Event{Type: hub.EventNewMessage, Data: msg.ToEventData()})
	}
	return nil
}

// Status returns a point-in-time view of the connection session.
func (s *Supervisor) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SessionStatus{
		State:            s.state,
		PairingChallenge: s.challenge,
		RetryCount:       s.retryCount,
	}
}

// Close stops reconnect attempts and tears down the live session.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.terminal = true
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
}

func normalizeMessage(raw transport.RawMessage) model.Message {
	kind := model.ContentText
	switch {
	case raw.Unsupported:
		kind = model.ContentUnsupported
	case raw.Media != nil:
		kind = model.ContentMedia
	case raw.Text == "":
		kind = model.ContentUnsupported
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return model.Message{
		ID:             raw.MessageID,
		ConversationID: raw.ConversationID,
		FromSelf:       raw.FromSelf,
		SenderName:     raw.SenderName,
		Timestamp:      ts,
		Kind:           kind,
		Text:           raw.Text,
	}
}
