package model

type BotMode string

const (
	BotModeAuto   BotMode = "auto"
	BotModeManual BotMode = "manual"
	BotModeOff    BotMode = "off"
)

// ValidBotMode reports whether s names a known bot mode.
func ValidBotMode(s string) bool {
	switch BotMode(s) {
	case BotModeAuto, BotModeManual, BotModeOff:
		return true
	}
	return false
}

type ConnectionState string

const (
	ConnectionDisconnected    ConnectionState = "disconnected"
	ConnectionConnecting      ConnectionState = "connecting"
	ConnectionAwaitingPairing ConnectionState = "awaiting_pairing"
	ConnectionConnected       ConnectionState = "connected"
)

type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentMedia       ContentKind = "media"
	ContentUnsupported ContentKind = "unsupported"
)
