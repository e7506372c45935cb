package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LoopbackDialer is a development driver that stands in for a real network
// session: it walks through pairing and open, seeds one inbound message, and
// accepts sends without delivering them anywhere. Useful for exercising the
// full pipeline without a live account.
type LoopbackDialer struct {
	Credentials CredentialStore
	// PairingDelay is how long the fake pairing step takes. Zero pairs
	// immediately.
	PairingDelay time.Duration
}

func (d *LoopbackDialer) Dial(ctx context.Context) (Session, error) {
	s := &loopbackSession{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go s.run(ctx, d.Credentials, d.PairingDelay)
	return s, nil
}

type loopbackSession struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *loopbackSession) run(ctx context.Context, creds CredentialStore, pairingDelay time.Duration) {
	defer close(s.events)

	paired, err := creds.Exists(ctx)
	if err != nil {
		log.Error().Err(err).Msg("loopback: credential check failed")
	}

	if !paired {
		s.emit(Event{Type: EventPairingChallenge, Challenge: "loopback-pairing-challenge"})
		select {
		case <-time.After(pairingDelay):
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
		if err := creds.Save(ctx, []byte("loopback")); err != nil {
			log.Error().Err(err).Msg("loopback: credential save failed")
		}
	}

	s.emit(Event{Type: EventOpened})
	s.emit(Event{Type: EventMessage, Message: &RawMessage{
		ConversationID: "loopback@local",
		MessageID:      "loopback-1",
		SenderName:     "Loopback",
		Timestamp:      time.Now(),
		Text:           "Hello from the loopback transport",
	}})

	select {
	case <-s.done:
	case <-ctx.Done():
		s.emit(Event{Type: EventClosed, Reason: "connection_lost"})
	}
}

func (s *loopbackSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *loopbackSession) Events() <-chan Event {
	return s.events
}

func (s *loopbackSession) Send(ctx context.Context, conversationID, text string) error {
	log.Debug().Str("chatId", conversationID).Int("length", len(text)).Msg("loopback: send")
	return nil
}

func (s *loopbackSession) DownloadMedia(ctx context.Context, ref MediaRef) ([]byte, error) {
	return []byte("loopback-media"), nil
}

func (s *loopbackSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
