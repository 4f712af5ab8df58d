package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/identity"
	"github.com/piwrite/studio/internal/store"
)

const defaultTitle = "Untitled Story"

type createDocumentRequest struct {
	Title string `json:"title"`
}

type renameDocumentRequest struct {
	Title string `json:"title"`
}

// CreateDocument handles POST /api/documents. New documents always start in
// the prewriting stage.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	learnerID := identity.LearnerIDFromContext(r.Context())
	if learnerID == "" {
		Error(w, http.StatusUnauthorized, "no learner identity")
		return
	}

	var req createDocumentRequest
	if r.Body != nil {
		_ = decodeJSON(r, &req) // title is optional, body may be empty
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}

	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		OwnerID:   learnerID,
		Title:     title,
		Stage:     domain.StagePrewriting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.CreateDocument(r.Context(), doc); err != nil {
		slog.Error("Failed to create document", "error", err, "learner_id", learnerID)
		Error(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	slog.Info("Document created", "document_id", doc.ID, "learner_id", learnerID)
	JSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/documents, returning the calling learner's
// documents newest first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	learnerID := identity.LearnerIDFromContext(r.Context())
	if learnerID == "" {
		Error(w, http.StatusUnauthorized, "no learner identity")
		return
	}

	docs, err := h.repo.ListDocuments(r.Context(), learnerID)
	if err != nil {
		slog.Error("Failed to list documents", "error", err, "learner_id", learnerID)
		Error(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	JSON(w, http.StatusOK, docs)
}

// GetDocument handles GET /api/documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, doc)
}

// RenameDocument handles PATCH /api/documents/{id}. When a live session holds
// the document the rename goes through it so the in-memory title stays
// consistent.
func (h *Handler) RenameDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	var req renameDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		Error(w, http.StatusBadRequest, "title must not be empty")
		return
	}

	if s := h.sessions.Get(doc.ID); s != nil {
		if err := s.Rename(r.Context(), title); err != nil {
			slog.Error("Failed to rename document", "error", err, "document_id", doc.ID)
			Error(w, http.StatusInternalServerError, "failed to rename document")
			return
		}
	} else if err := h.repo.UpdateDocumentTitle(r.Context(), doc.ID, title); err != nil {
		slog.Error("Failed to rename document", "error", err, "document_id", doc.ID)
		Error(w, http.StatusInternalServerError, "failed to rename document")
		return
	}

	doc.Title = title
	JSON(w, http.StatusOK, doc)
}

// ownedDocument loads the document from the URL and checks the caller owns
// it. Writes the error response itself when the document is missing or owned
// by someone else; ownership failures are reported as not found so document
// ids cannot be probed.
func (h *Handler) ownedDocument(w http.ResponseWriter, r *http.Request) (*domain.Document, bool) {
	learnerID := identity.LearnerIDFromContext(r.Context())
	if learnerID == "" {
		Error(w, http.StatusUnauthorized, "no learner identity")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		Error(w, http.StatusBadRequest, "invalid document id")
		return nil, false
	}

	doc, err := h.repo.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "document not found")
			return nil, false
		}
		slog.Error("Failed to load document", "error", err, "document_id", id)
		Error(w, http.StatusInternalServerError, "failed to load document")
		return nil, false
	}
	if doc.OwnerID != learnerID {
		Error(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	return doc, true
}
