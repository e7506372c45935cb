package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Websocket observer connections
const (
	ObserverWriteTimeout = 10 * time.Second
	ObserverPingInterval = 30 * time.Second
	ObserverPongTimeout  = 75 * time.Second
)
