package domain

import (
	"time"
)

// Document represents a single learner story moving through the workflow.
// Documents are created on "start new story" and mutated only via stage
// changes and title edits; this service never deletes them.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Stage     Stage     `json:"current_stage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DraftSnapshot is an immutable content record for one document at one
// stage. Snapshots are append-only: a new edit inserts a new row, never
// overwrites a prior one. The current content for a stage is the snapshot
// with the latest CreatedAt for that (document, stage) pair.
type DraftSnapshot struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	Stage      Stage     `json:"stage"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Learner is an anonymous per-device account owning documents.
type Learner struct {
	ID         string    `json:"id"`
	GradeLevel string    `json:"grade_level"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
