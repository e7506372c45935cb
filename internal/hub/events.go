package hub

// Outbound event types, matching the names the admin UI listens for.
const (
	EventQRCode         = "qr-code"
	EventConnected      = "whatsapp-connected"
	EventConnectionLost = "connection-lost"
	EventChatList       = "chat-list"
	EventNewMessage     = "new-message"
	EventMessageUpdated = "message-updated"
	EventChatHistory    = "chat-history"
	EventAIChunk        = "ai-response-chunk"
	EventAIEnd          = "ai-response-end"
	EventBotMode        = "bot-mode-updated"
	EventCommandFailed  = "command-failed"
)
