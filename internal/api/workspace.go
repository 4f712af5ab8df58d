package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/identity"
	"github.com/piwrite/studio/internal/workspace"
)

type contentRequest struct {
	Content string `json:"content"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type stageRequest struct {
	Stage domain.Stage `json:"stage"`
}

// OpenWorkspace handles POST /api/workspace/{id}/open. Opening is
// idempotent: a second open of a live document returns the existing session
// state.
func (h *Handler) OpenWorkspace(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	grade := identity.GradeLevelFromContext(r.Context())
	s, err := h.sessions.Open(r.Context(), doc.ID, grade)
	if err != nil {
		slog.Error("Failed to open workspace", "error", err, "document_id", doc.ID)
		Error(w, http.StatusInternalServerError, "failed to open workspace")
		return
	}
	JSON(w, http.StatusOK, s.View())
}

// UpdateContent handles POST /api/workspace/{id}/content. The new buffer is
// accepted immediately; persistence happens on the autosave timer.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.HandleContentChange(req.Content)
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /api/workspace/{id}/message. The coach exchange
// runs synchronously; the updated session state is the response, and the
// same events also stream over the workspace socket.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		Error(w, http.StatusBadRequest, "text must not be empty")
		return
	}

	s.SendMessage(r.Context(), text)
	JSON(w, http.StatusOK, s.View())
}

// ChangeStage handles POST /api/workspace/{id}/stage.
func (h *Handler) ChangeStage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	var req stageRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !req.Stage.Valid() {
		Error(w, http.StatusBadRequest, "unknown stage")
		return
	}

	if err := s.ChangeStage(r.Context(), req.Stage); err != nil {
		if errors.Is(err, workspace.ErrInvalidTransition) {
			Error(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("Failed to change stage", "error", err, "document_id", s.DocumentID())
		Error(w, http.StatusInternalServerError, "failed to change stage")
		return
	}
	JSON(w, http.StatusOK, s.View())
}

// GetPlan handles GET /api/workspace/{id}/plan, returning the prewriting
// plan both raw and split into its outline sections.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	view := s.View()
	sections := workspace.ParsePlan(view.Plan)
	JSON(w, http.StatusOK, map[string]interface{}{
		"plan":       view.Plan,
		"sections":   sections,
		"structured": sections.Structured(),
	})
}

// CloseWorkspace handles POST /api/workspace/{id}/close. The final autosave
// flush happens inside the session close.
func (h *Handler) CloseWorkspace(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	h.sessions.Close(doc.ID)
	w.WriteHeader(http.StatusNoContent)
}

// liveSession resolves the document from the URL, checks ownership, and
// requires an already-open session. Content, chat, and stage operations make
// no sense without one.
func (h *Handler) liveSession(w http.ResponseWriter, r *http.Request) (*workspace.Session, bool) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return nil, false
	}
	s := h.sessions.Get(doc.ID)
	if s == nil {
		Error(w, http.StatusConflict, "workspace is not open")
		return nil, false
	}
	return s, true
}
