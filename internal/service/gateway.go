package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/whatsapp-bridge-go/internal/errors"
	"github.com/openclaw/whatsapp-bridge-go/internal/hub"
	"github.com/openclaw/whatsapp-bridge-go/internal/model"
	"github.com/openclaw/whatsapp-bridge-go/internal/store"
)

// Observer command actions.
const (
	ActionGetChatHistory = "get-chat-history"
	ActionSendManual     = "send-manual-message"
	ActionUserTyping     = "user-typing-in-chat"
	ActionSetBotMode     = "set-bot-mode"
	ActionLetAIRespond   = "let-ai-respond"
)

// Command is one observer-issued command frame.
type Command struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Gateway accepts observer commands and answers them, either directly to the
// issuing observer or as a broadcast.
type Gateway struct {
	hub        *hub.Hub
	store      *store.ConversationStore
	responder  *Responder
	sender     Sender
	gen        Generator
	genTimeout time.Duration
}

func NewGateway(h *hub.Hub, convStore *store.ConversationStore, responder *Responder, sender Sender, gen Generator, genTimeout time.Duration) *Gateway {
	return &Gateway{
		hub:        h,
		store:      convStore,
		responder:  responder,
		sender:     sender,
		gen:        gen,
		genTimeout: genTimeout,
	}
}

// HandleConnect pushes the initial state a freshly connected observer needs:
// the current bot mode and the conversation directory.
func (g *Gateway) HandleConnect(client *hub.Client) {
	g.hub.SendTo(client, hub.NewEvent(hub.EventBotMode, g.responder.Mode()))
	g.hub.SendTo(client, hub.NewEvent(hub.EventChatList, g.store.Snapshot()))
}

// HandleCommand dispatches one observer command. Failures are reported back
// to the issuing observer only; they never interrupt the pipeline.
func (g *Gateway) HandleCommand(ctx context.Context, client *hub.Client, cmd Command) {
	var err error
	switch cmd.Action {
	case ActionGetChatHistory:
		err = g.handleGetChatHistory(client, cmd.Data)
	case ActionSendManual:
		err = g.handleSendManual(ctx, cmd.Data)
	case ActionUserTyping:
		err = g.handleUserTyping(cmd.Data)
	case ActionSetBotMode:
		err = g.handleSetBotMode(cmd.Data)
	case ActionLetAIRespond:
		err = g.handleLetAIRespond(cmd.Data)
	default:
		err = apperrors.InvalidInput("action", "unknown command "+cmd.Action)
	}

	if err != nil {
		log.Warn().Err(err).Str("action", cmd.Action).Msg("observer command failed")
		appErr, ok := apperrors.AsAppError(err)
		if !ok {
			appErr = apperrors.Internal("command failed")
		}
		g.hub.SendTo(client, hub.NewEvent(hub.EventCommandFailed, map[string]any{
			"action": cmd.Action,
			"code":   appErr.Code,
			"error":  appErr.Message,
		}))
	}
}

type chatCommand struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

func (g *Gateway) handleGetChatHistory(client *hub.Client, data json.RawMessage) error {
	var payload chatCommand
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.InvalidInput("data", err.Error())
	}
	if payload.ChatID == "" {
		return apperrors.MissingRequired("chatId")
	}

	// Answered directly to the requesting observer only, not broadcast.
	g.hub.SendTo(client, hub.NewEvent(hub.EventChatHistory, map[string]any{
		"chatId":  payload.ChatID,
		"history": g.store.History(payload.ChatID),
	}))
	return nil
}

func (g *Gateway) handleSendManual(ctx context.Context, data json.RawMessage) error {
	var payload chatCommand
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.InvalidInput("data", err.Error())
	}
	if payload.ChatID == "" {
		return apperrors.MissingRequired("chatId")
	}
	if payload.Text == "" {
		return apperrors.MissingRequired("text")
	}

	// A manual send always suppresses the pending automatic reply.
	g.responder.Cancel(payload.ChatID)
	return g.sender.Send(ctx, payload.ChatID, payload.Text)
}

func (g *Gateway) handleUserTyping(data json.RawMessage) error {
	var payload chatCommand
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.InvalidInput("data", err.Error())
	}
	if payload.ChatID == "" {
		return apperrors.MissingRequired("chatId")
	}

	if g.responder.Cancel(payload.ChatID) {
		log.Info().Str("chatId", payload.ChatID).Msg("automatic reply cancelled, user is composing")
	}
	return nil
}

type setBotModeCommand struct {
	Mode string `json:"mode"`
}

func (g *Gateway) handleSetBotMode(data json.RawMessage) error {
	var payload setBotModeCommand
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.InvalidInput("data", err.Error())
	}
	if !model.ValidBotMode(payload.Mode) {
		return apperrors.InvalidInput("mode", "must be one of auto, manual, off")
	}

	mode := model.BotMode(payload.Mode)
	g.responder.SetMode(mode)
	log.Info().Str("mode", payload.Mode).Msg("bot mode updated")
	g.hub.Broadcast(hub.NewEvent(hub.EventBotMode, mode))
	return nil
}

type letAIRespondCommand struct {
	ChatID      string `json:"chatId"`
	MessageText string `json:"messageText"`
}

func (g *Gateway) handleLetAIRespond(data json.RawMessage) error {
	var payload letAIRespondCommand
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.InvalidInput("data", err.Error())
	}
	if payload.ChatID == "" {
		return apperrors.MissingRequired("chatId")
	}
	if payload.MessageText == "" {
		return apperrors.MissingRequired("messageText")
	}

	// Long-running: stream chunks to every observer, then relay the
	// aggregate as a normal outbound message.
	go g.streamAIResponse(payload.ChatID, payload.MessageText)
	return nil
}

func (g *Gateway) streamAIResponse(chatID, messageText string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.genTimeout)
	defer cancel()

	reply, err := g.gen.GenerateStream(ctx, messageText, func(chunk string) {
		g.hub.Broadcast(hub.NewEvent(hub.EventAIChunk, map[string]string{
			"chatId": chatID,
			"chunk":  chunk,
		}))
	})
	g.hub.Broadcast(hub.NewEvent(hub.EventAIEnd, map[string]string{"chatId": chatID}))

	if err != nil {
		log.Error().Err(err).Str("chatId", chatID).Msg("streamed generation failed, using fallback reply")
		reply = FallbackReply
	}
	if reply == "" {
		return
	}

	if err := g.sender.Send(ctx, chatID, reply); err != nil {
		log.Error().Err(err).Str("chatId", chatID).Msg("failed to send AI reply")
	}
}
