package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/store"
)

// Manager tracks one Session per open document and owns their lifecycle.
type Manager struct {
	repo    store.Repository
	invoker Invoker
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a workspace session manager. invoker may be nil when
// AI features are disabled.
func NewManager(repo store.Repository, invoker Invoker, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:     repo,
		invoker:  invoker,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open loads a document into a live session, or returns the session already
// open for it. Loading resolves the authoritative content for the current
// stage, rehydrates the conversation, and schedules the one-time initial
// coach check for observed stages.
func (m *Manager) Open(ctx context.Context, documentID, gradeLevel string) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[documentID]; ok {
		m.mu.Unlock()
		existing.mu.Lock()
		existing.lastActivity = time.Now()
		existing.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	doc, err := m.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if !doc.Stage.Valid() {
		doc.Stage = domain.StagePrewriting
	}

	s := newSession(doc, gradeLevel, m.repo, m.invoker, m.cfg, m.logger)

	// The prewriting plan stays available as a read-only reference in every
	// later stage.
	if doc.Stage != domain.StagePrewriting {
		if snap, err := m.repo.LatestSnapshot(ctx, documentID, domain.StagePrewriting); err != nil {
			m.logger.Warn("failed to load prewriting plan", "document_id", documentID, "error", err)
		} else if snap != nil {
			s.plan = snap.Content
		}
	}

	content := ""
	if snap, err := m.repo.LatestSnapshot(ctx, documentID, doc.Stage); err != nil {
		m.logger.Warn("failed to load latest draft", "document_id", documentID, "stage", doc.Stage, "error", err)
	} else if snap != nil {
		content = snap.Content
	}

	// Publishing always mirrors the latest edited text. This is a standing
	// invariant re-checked on every load, not only on transition, so stale
	// publishing snapshots never shadow newer editing work.
	if doc.Stage == domain.StagePublishing {
		if snap, err := m.repo.LatestSnapshot(ctx, documentID, domain.StageEditing); err != nil {
			m.logger.Warn("failed to sync publishing with editing", "document_id", documentID, "error", err)
		} else if snap != nil && snap.Content != "" {
			content = snap.Content
		}
	}

	s.buffer = content
	s.guards.lastSavedContent = content
	s.guards.lastAnalyzedContent = content

	if msgs, err := m.repo.ListMessages(ctx, documentID); err != nil {
		m.logger.Warn("failed to rehydrate conversation", "document_id", documentID, "error", err)
	} else {
		s.messages = msgs
	}

	// No local transcript yet: the coaching service may still hold one from
	// a previous deployment of this document.
	if len(s.messages) == 0 {
		if hp, ok := m.invoker.(HistoryProvider); ok {
			if msgs, err := hp.History(ctx, documentID); err != nil {
				m.logger.Warn("failed to fetch coach history", "document_id", documentID, "error", err)
			} else {
				s.messages = msgs
			}
		}
	}

	m.mu.Lock()
	if existing, ok := m.sessions[documentID]; ok {
		// Another open raced us; keep the first session.
		m.mu.Unlock()
		s.cancel()
		s.events.Close()
		return existing, nil
	}
	m.sessions[documentID] = s
	m.mu.Unlock()

	m.logger.Info("workspace opened", "document_id", documentID, "stage", doc.Stage)

	// One-time load check, fired off-request so opening stays fast. The
	// session's own context bounds it, not the HTTP request's.
	if m.invoker != nil && doc.Stage.CoachObserved() {
		go s.InitialCheck(s.ctx)
	}

	return s, nil
}

// Get returns the open session for a document, or nil.
func (m *Manager) Get(documentID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[documentID]
}

// Close tears down the session for a document, if open.
func (m *Manager) Close(documentID string) {
	m.mu.Lock()
	s, ok := m.sessions[documentID]
	if ok {
		delete(m.sessions, documentID)
	}
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Info("workspace closed", "document_id", documentID)
	}
}

// CloseAll tears down every open session (shutdown path).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// StartSweeper evicts sessions idle past ttl, checking every interval.
// Runs until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweep(now, ttl)
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time, ttl time.Duration) {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleFor(now) > ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.logger.Info("evicting idle workspace", "document_id", s.documentID)
		s.Close()
	}
}
