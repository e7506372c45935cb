package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/whatsapp-bridge-go/internal/model"
)

// FallbackReply is sent when the generative backend fails; the conversation
// flow continues instead of aborting silently.
const FallbackReply = "Sorry, I am unable to process your request at the moment."

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// Sender dispatches an outbound text message to a conversation.
type Sender interface {
	Send(ctx context.Context, conversationID, text string) error
}

type debounceTimer struct {
	timer  *time.Timer
	text   string
	firing bool
}

// Responder is the per-conversation debounce engine. An inbound non-self
// message while the bot mode is auto arms a timer; if nothing cancels it
// before the window elapses, the captured trigger text is sent to the
// generator and the reply relayed back to the conversation.
//
// Invariant: at most one live timer per conversation. Arming replaces any
// existing timer; cancelling and firing the same timer are mutually
// exclusive under mu, and a firing that has started generating always runs
// to completion.
type Responder struct {
	mu     sync.Mutex
	timers map[string]*debounceTimer
	mode   model.BotMode

	window     time.Duration
	genTimeout time.Duration
	gen        Generator
	sender     Sender
}

func NewResponder(gen Generator, window, genTimeout time.Duration, mode model.BotMode) *Responder {
	return &Responder{
		timers:     make(map[string]*debounceTimer),
		mode:       mode,
		window:     window,
		genTimeout: genTimeout,
		gen:        gen,
	}
}

// SetSender wires the outbound sender. Set once during startup, before any
// inbound message is handled.
func (r *Responder) SetSender(sender Sender) {
	r.sender = sender
}

func (r *Responder) Mode() model.BotMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode changes the bot mode for every subsequent inbound message. Timers
// armed before the change keep the rule in force at arming time and are not
// retroactively cancelled.
func (r *Responder) SetMode(mode model.BotMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
}

// HandleInbound reacts to an inbound non-self message. In auto mode it
// (re)arms the conversation's debounce timer with the message text as the
// trigger; the window always restarts from the most recent message.
func (r *Responder) HandleInbound(conversationID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != model.BotModeAuto {
		return
	}

	if existing, ok := r.timers[conversationID]; ok {
		if existing.firing {
			// A reply for this conversation is already being generated;
			// never hold two live timers for one conversation.
			return
		}
		existing.timer.Stop()
		delete(r.timers, conversationID)
	}

	slot := &debounceTimer{text: text}
	slot.timer = time.AfterFunc(r.window, func() {
		r.fire(conversationID, slot)
	})
	r.timers[conversationID] = slot

	log.Debug().Str("chatId", conversationID).Dur("window", r.window).Msg("debounce timer armed")
}

// Cancel clears the conversation's pending timer, if any, and reports
// whether one was cleared. A timer that has already started firing is not
// aborted.
func (r *Responder) Cancel(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.timers[conversationID]
	if !ok || slot.firing {
		return false
	}
	slot.timer.Stop()
	delete(r.timers, conversationID)

	log.Debug().Str("chatId", conversationID).Msg("debounce timer cancelled")
	return true
}

func (r *Responder) fire(conversationID string, slot *debounceTimer) {
	r.mu.Lock()
	current, ok := r.timers[conversationID]
	if !ok || current != slot {
		// Cancelled or replaced before we got the lock.
		r.mu.Unlock()
		return
	}
	slot.firing = true
	text := slot.text
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.timers[conversationID] == slot {
			delete(r.timers, conversationID)
		}
		r.mu.Unlock()
	}()

	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.genTimeout)
	defer cancel()

	reply, err := r.gen.Generate(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("chatId", conversationID).Msg("generation failed, using fallback reply")
		reply = FallbackReply
	}
	if reply == "" {
		return
	}

	if err := r.sender.Send(ctx, conversationID, reply); err != nil {
		log.Error().Err(err).Str("chatId", conversationID).Msg("failed to send automatic reply")
		return
	}

	log.Info().Str("chatId", conversationID).Msg("automatic reply sent")
}

// ActiveTimers returns the number of armed or firing timers.
func (r *Responder) ActiveTimers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Close cancels every pending timer.
func (r *Responder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, slot := range r.timers {
		if !slot.firing {
			slot.timer.Stop()
			delete(r.timers, id)
		}
	}
}
