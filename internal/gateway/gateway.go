// Package gateway exposes the per-client event channel over WebSocket:
// start/stop/audio_chunk commands in, status/translation/error events out.
package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/linguaflow/lingua-core/internal/config"
	"github.com/linguaflow/lingua-core/internal/protocol"
	"github.com/linguaflow/lingua-core/internal/session"
	"github.com/linguaflow/lingua-core/internal/translate"
)

type Gateway struct {
	cfg      config.GatewayConfig
	registry *session.Registry
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.GatewayConfig, registry *session.Registry, log *slog.Logger) *Gateway {
	return &Gateway{
		cfg:      cfg,
		registry: registry,
		log:      log.With(slog.String("component", "gateway")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the gateway endpoints on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/translate", g.handleTranslate)
	mux.HandleFunc("/v1/languages", g.handleLanguages)
}

func (g *Gateway) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"languages": translate.LanguageNames(),
		"voices":    translate.VoiceGenders(),
	})
}

func (g *Gateway) handleTranslate(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: time.Duration(g.cfg.WriteTimeoutMS) * time.Millisecond,
		done:         make(chan struct{}),
	}
	defer conn.Close()

	pingInterval := time.Duration(g.cfg.PingIntervalMS) * time.Millisecond
	conn.SetReadLimit(g.cfg.ReadLimitBytes)
	_ = conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})
	go c.pingLoop(pingInterval)

	g.log.Info("client connected", slog.String("client_id", c.id))
	c.send(protocol.ServerEvent{
		Type:    protocol.EventStatus,
		Message: "connected to translation relay; select language and voice to start",
	})

	emitter := &wsEmitter{c: c}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		g.dispatch(c, emitter, data)
	}
	close(c.done)

	g.registry.OnDisconnect(c.id)
	g.log.Info("client disconnected", slog.String("client_id", c.id))
}

func (g *Gateway) dispatch(c *client, emitter session.Emitter, data []byte) {
	var cmd protocol.ClientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.send(protocol.ServerEvent{
			Type:    protocol.EventError,
			Message: fmt.Sprintf("malformed command: %v", err),
		})
		return
	}

	switch cmd.Type {
	case protocol.CommandStart:
		if _, err := g.registry.Start(c.id, cmd.Language, cmd.Gender, emitter); err != nil {
			message := fmt.Sprintf("start failed: %v", err)
			if errors.Is(err, session.ErrInvalidSelection) {
				message = "invalid language or voice gender"
			}
			c.send(protocol.ServerEvent{Type: protocol.EventError, Message: message})
		}

	case protocol.CommandStop:
		if g.registry.Stop(c.id) {
			c.send(protocol.ServerEvent{
				Type:    protocol.EventStatus,
				Message: "translation stopped",
			})
		}

	case protocol.CommandAudioChunk:
		active := g.registry.Active(c.id)
		if active == nil {
			c.send(protocol.ServerEvent{
				Type:    protocol.EventError,
				Message: "no active translation session",
			})
			return
		}
		chunk, err := base64.StdEncoding.DecodeString(cmd.Audio)
		if err != nil {
			c.send(protocol.ServerEvent{
				Type:    protocol.EventError,
				Message: fmt.Sprintf("audio decode error: %v", err),
			})
			return
		}
		if err := active.SubmitAudio(chunk, ""); err != nil {
			c.send(protocol.ServerEvent{
				Type:    protocol.EventError,
				Message: "no active translation session",
			})
		}

	default:
		c.send(protocol.ServerEvent{
			Type:    protocol.EventError,
			Message: fmt.Sprintf("unknown command: %q", cmd.Type),
		})
	}
}
