package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/whatsapp-bridge-go/internal/config"
	"github.com/openclaw/whatsapp-bridge-go/internal/hub"
	"github.com/openclaw/whatsapp-bridge-go/internal/service"
)

// WSHandler upgrades observer connections and relays hub events out and
// observer commands in.
type WSHandler struct {
	hub      *hub.Hub
	gateway  *service.Gateway
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, gateway *service.Gateway) *WSHandler {
	return &WSHandler{
		hub:     h,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Observers are trusted local UIs; the original served them with
			// a wildcard CORS policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := h.hub.Subscribe()
	go h.writeLoop(conn, client)

	h.gateway.HandleConnect(client)
	h.readLoop(r, conn, client)
}

// writeLoop is the connection's single writer: hub events plus pings.
func (h *WSHandler) writeLoop(conn *websocket.Conn, client *hub.Client) {
	ping := time.NewTicker(config.ObserverPingInterval)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case <-client.Done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(config.ObserverWriteTimeout))
			return

		case event := <-client.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(config.ObserverWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Msg("observer write failed, closing")
				h.hub.Unsubscribe(client)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(config.ObserverWriteTimeout)); err != nil {
				h.hub.Unsubscribe(client)
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(r *http.Request, conn *websocket.Conn, client *hub.Client) {
	defer h.hub.Unsubscribe(client)

	_ = conn.SetReadDeadline(time.Now().Add(config.ObserverPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.ObserverPongTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("observer connection closed")
			}
			return
		}

		var cmd service.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Warn().Err(err).Msg("dropping malformed observer command")
			continue
		}

		h.gateway.HandleCommand(r.Context(), client, cmd)
	}
}
