package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	snapshotRetryAttempts = 3
	snapshotRetryDelay    = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS learners (
		learner_id TEXT PRIMARY KEY,
		grade_level TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		current_stage TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, updated_at);

	CREATE TABLE IF NOT EXISTS draft_snapshots (
		snapshot_id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_doc_stage ON draft_snapshots(document_id, stage, created_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		message_id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_doc ON chat_messages(document_id, message_id);

	CREATE TABLE IF NOT EXISTS instructional_state (
		entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		detected_gaps TEXT NOT NULL,
		active_prompts TEXT NOT NULL,
		context_summary TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetLearner retrieves a learner by id.
func (s *SQLiteStore) GetLearner(ctx context.Context, learnerID string) (*domain.Learner, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT learner_id, grade_level, created_at, last_seen_at FROM learners WHERE learner_id = ?`,
		learnerID)

	var learner domain.Learner
	var createdAt, lastSeen int64
	err := row.Scan(&learner.ID, &learner.GradeLevel, &createdAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan learner row: %w", err)
	}

	learner.CreatedAt = time.Unix(createdAt, 0)
	learner.LastSeenAt = time.Unix(lastSeen, 0)
	return &learner, nil
}

// UpsertLearner creates or refreshes a learner record.
func (s *SQLiteStore) UpsertLearner(ctx context.Context, learner *domain.Learner) error {
	query := `
	INSERT INTO learners (learner_id, grade_level, created_at, last_seen_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(learner_id) DO UPDATE SET
		grade_level = excluded.grade_level,
		last_seen_at = excluded.last_seen_at`

	_, err := s.db.ExecContext(ctx, query,
		learner.ID, learner.GradeLevel, learner.CreatedAt.Unix(), learner.LastSeenAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert learner: %w", err)
	}
	return nil
}

// UpdateLearnerLastSeen bumps the last_seen_at timestamp.
func (s *SQLiteStore) UpdateLearnerLastSeen(ctx context.Context, learnerID string, lastSeen time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE learners SET last_seen_at = ? WHERE learner_id = ?`,
		lastSeen.Unix(), learnerID)
	if err != nil {
		return fmt.Errorf("update learner last_seen: %w", err)
	}
	return nil
}

// CreateDocument inserts a new document record.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (document_id, owner_id, title, current_stage, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OwnerID, doc.Title, string(doc.Stage),
		doc.CreatedAt.Unix(), doc.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document_id, owner_id, title, current_stage, created_at, updated_at
		 FROM documents WHERE document_id = ?`, documentID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document row: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents owned by a learner.
func (s *SQLiteStore) ListDocuments(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, owner_id, title, current_stage, created_at, updated_at
		 FROM documents WHERE owner_id = ? ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var stage string
	var createdAt, updatedAt int64
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &stage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Stage = domain.Stage(stage)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return &doc, nil
}

// UpdateDocumentTitle renames a document.
func (s *SQLiteStore) UpdateDocumentTitle(ctx context.Context, documentID, title string) error {
	return s.updateDocument(ctx, documentID, `title = ?`, title)
}

// UpdateDocumentStage records a stage transition on the document.
func (s *SQLiteStore) UpdateDocumentStage(ctx context.Context, documentID string, stage domain.Stage) error {
	return s.updateDocument(ctx, documentID, `current_stage = ?`, string(stage))
}

func (s *SQLiteStore) updateDocument(ctx context.Context, documentID, setClause string, value any) error {
	query := `UPDATE documents SET ` + setClause + `, updated_at = ? WHERE document_id = ?`
	result, err := s.db.ExecContext(ctx, query, value, time.Now().Unix(), documentID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSnapshot appends a new content snapshot. Retries on SQLite
// concurrency errors since autosave and stage transitions can race for the
// write lock.
func (s *SQLiteStore) InsertSnapshot(ctx context.Context, documentID string, stage domain.Stage, content string) error {
	err := shared.RetrySQLite(ctx, snapshotRetryAttempts, snapshotRetryDelay, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO draft_snapshots (document_id, stage, content, created_at) VALUES (?, ?, ?, ?)`,
			documentID, string(stage), content, time.Now().UnixNano())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for (document, stage).
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, documentID string, stage domain.Stage) (*domain.DraftSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id, document_id, stage, content, created_at
		 FROM draft_snapshots
		 WHERE document_id = ? AND stage = ?
		 ORDER BY created_at DESC, snapshot_id DESC
		 LIMIT 1`, documentID, string(stage))

	var snap domain.DraftSnapshot
	var st string
	var createdAt int64
	err := row.Scan(&snap.ID, &snap.DocumentID, &st, &snap.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot row: %w", err)
	}
	snap.Stage = domain.Stage(st)
	snap.CreatedAt = time.Unix(0, createdAt)
	return &snap, nil
}

// AppendMessage adds a conversation turn for a document.
func (s *SQLiteStore) AppendMessage(ctx context.Context, documentID string, msg domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (document_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		documentID, msg.Role, msg.Content, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns the full conversation for a document.
func (s *SQLiteStore) ListMessages(ctx context.Context, documentID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM chat_messages WHERE document_id = ? ORDER BY message_id`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// InsertInstructionalState records a write-only audit entry.
func (s *SQLiteStore) InsertInstructionalState(ctx context.Context, entry *InstructionalStateEntry) error {
	gaps, err := json.Marshal(entry.DetectedGaps)
	if err != nil {
		return fmt.Errorf("marshal detected gaps: %w", err)
	}
	prompts, err := json.Marshal(entry.ActivePrompts)
	if err != nil {
		return fmt.Errorf("marshal active prompts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instructional_state (document_id, detected_gaps, active_prompts, context_summary, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.DocumentID, string(gaps), string(prompts), entry.ContextSummary, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert instructional state: %w", err)
	}
	return nil
}
