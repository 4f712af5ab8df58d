// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/piwrite/studio/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for persisting learners, documents,
// draft snapshots, conversation history, and the instructional audit log.
type Repository interface {
	// GetLearner retrieves a learner by id, or nil if unknown.
	GetLearner(ctx context.Context, learnerID string) (*domain.Learner, error)

	// UpsertLearner creates or refreshes a learner record.
	UpsertLearner(ctx context.Context, learner *domain.Learner) error

	// UpdateLearnerLastSeen bumps the last_seen_at timestamp.
	UpdateLearnerLastSeen(ctx context.Context, learnerID string, lastSeen time.Time) error

	// CreateDocument inserts a new document record.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by id. Returns ErrNotFound when the
	// document does not exist.
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)

	// ListDocuments returns all documents owned by a learner, most recently
	// updated first.
	ListDocuments(ctx context.Context, ownerID string) ([]*domain.Document, error)

	// UpdateDocumentTitle renames a document.
	UpdateDocumentTitle(ctx context.Context, documentID, title string) error

	// UpdateDocumentStage records a stage transition on the document.
	UpdateDocumentStage(ctx context.Context, documentID string, stage domain.Stage) error

	// InsertSnapshot appends a new content snapshot for (document, stage).
	// Snapshots are never updated or deleted.
	InsertSnapshot(ctx context.Context, documentID string, stage domain.Stage, content string) error

	// LatestSnapshot returns the most recent snapshot for (document, stage),
	// or nil if none exists.
	LatestSnapshot(ctx context.Context, documentID string, stage domain.Stage) (*domain.DraftSnapshot, error)

	// AppendMessage adds a conversation turn for a document.
	AppendMessage(ctx context.Context, documentID string, msg domain.Message) error

	// ListMessages returns the full conversation for a document in insertion
	// order.
	ListMessages(ctx context.Context, documentID string) ([]domain.Message, error)

	// InsertInstructionalState records an audit entry after a user-driven
	// coach invocation. Write-only: nothing in this service reads it back.
	InsertInstructionalState(ctx context.Context, entry *InstructionalStateEntry) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// InstructionalStateEntry is one row of the write-only audit sink.
type InstructionalStateEntry struct {
	DocumentID     string
	DetectedGaps   []domain.InstructionalGap
	ActivePrompts  []string
	ContextSummary string
}
