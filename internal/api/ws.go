package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/piwrite/studio/internal/identity"
	"github.com/piwrite/studio/internal/workspace"
)

// WebSocketHandler streams workspace session events to the browser.
type WebSocketHandler struct {
	base          *Handler
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(base *Handler, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		base:          base,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade. The socket is
// one-way: the session publishes events, the client only reads (inbound
// frames besides pings are ignored). Content and chat go over the REST
// endpoints.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.base.ownedDocument(w, r)
	if !ok {
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	s := h.base.sessions.Get(doc.ID)
	if s == nil {
		http.Error(w, `{"error":"workspace is not open"}`, http.StatusConflict)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "document_id", doc.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "workspace closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "document_id", doc.ID)
		}
	}()

	slog.Info("Workspace socket connected", "document_id", doc.ID, "session_id", identity.SessionIDFromContext(r.Context()), "ip", r.RemoteAddr)

	events, cancel := s.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Drain the read side so pings are answered and client closure is
	// noticed; any data frames are discarded.
	go func() {
		defer stop()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				if websocket.CloseStatus(err) != -1 {
					slog.Debug("WebSocket closed by client", "document_id", doc.ID)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				// Session closed; tell the client before hanging up.
				h.writeEvent(ctx, ws, workspace.Event{Type: workspace.EventWarning, Warning: "session closed"})
				return
			}
			if err := h.writeEvent(ctx, ws, ev); err != nil {
				slog.Debug("WebSocket write error", "error", err, "document_id", doc.ID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) writeEvent(ctx context.Context, ws *websocket.Conn, ev workspace.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
