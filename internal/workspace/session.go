package workspace

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/piwrite/studio/internal/coach"
	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/store"
)

// Invoker is the narrow view of the coaching service the orchestrator needs.
type Invoker interface {
	Invoke(ctx context.Context, req coach.Request) (*coach.Response, error)
}

// HistoryProvider is implemented by gateways that can serve the coaching
// service's stored transcript for a document.
type HistoryProvider interface {
	History(ctx context.Context, documentID string) ([]domain.Message, error)
}

// Config holds the orchestrator timing knobs.
type Config struct {
	// AutosaveDelay is the quiet period before an edit is persisted.
	AutosaveDelay time.Duration
	// IdleCheckDelay is the quiet period before the coach reviews the
	// draft. Longer than AutosaveDelay.
	IdleCheckDelay time.Duration
	// MinAnalyzeLength is the visible-character floor below which idle
	// checks are skipped.
	MinAnalyzeLength int
	// MinSavingIndicator keeps the transient saving state visible long
	// enough to be perceivable.
	MinSavingIndicator time.Duration
}

// guardFlags are the mutable flags that gate the two background schedulers.
// They live together so the races they tolerate stay auditable:
//
//   - hasUserInteracted: set on the first edit event after load; a load-time
//     or coach-driven buffer write never sets it, so idle checks cannot fire
//     before the learner has actually typed.
//   - lastSavedContent: equality guard shared by the autosave timer and any
//     forced flush; both paths compare against it before writing a snapshot,
//     so at most one redundant snapshot can slip through when they race.
//   - lastAnalyzedContent: the buffer the coach last saw; idle checks skip
//     unchanged content.
//   - initialCheckFired: one-shot guard for the load-time check; never
//     reset for the lifetime of the session.
type guardFlags struct {
	hasUserInteracted   bool
	lastSavedContent    string
	lastAnalyzedContent string
	initialCheckFired   bool
}

// Session is the in-memory state of one open workspace. All mutation goes
// through the session mutex; network and database calls happen outside it,
// so sequences of steps can interleave exactly as described in the
// concurrency notes (guards, not serialization, keep them safe).
type Session struct {
	documentID string
	gradeLevel string

	repo    store.Repository
	invoker Invoker
	events  *eventHub
	cfg     Config
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	autosave *debounced
	idle     *debounced

	mu           sync.Mutex
	title        string
	stage        domain.Stage
	buffer       string
	plan         string
	messages     []domain.Message
	gaps         []domain.InstructionalGap
	standards    []domain.StandardReference
	suggestions  []string
	previousText string
	lastActivity time.Time
	guards       guardFlags
}

func newSession(doc *domain.Document, gradeLevel string, repo store.Repository, invoker Invoker, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		documentID:   doc.ID,
		gradeLevel:   gradeLevel,
		repo:         repo,
		invoker:      invoker,
		events:       newEventHub(),
		cfg:          cfg,
		logger:       logger.With("document_id", doc.ID),
		ctx:          ctx,
		cancel:       cancel,
		title:        doc.Title,
		stage:        doc.Stage,
		suggestions:  domain.DefaultsFor(doc.Stage).Suggestions,
		lastActivity: time.Now(),
	}
	s.autosave = newDebounced(cfg.AutosaveDelay, func() { s.flushSave(s.ctx) })
	s.idle = newDebounced(cfg.IdleCheckDelay, func() { s.idleCheck(s.ctx) })
	return s
}

// DocumentID returns the id of the document this session edits.
func (s *Session) DocumentID() string { return s.documentID }

// Subscribe registers an event listener for this session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.Subscribe()
}

// View is a read-only snapshot of session state for the editing surface.
// Gaps and standards are deduplicated for display; the session retains the
// full lists the coach returned.
type View struct {
	DocumentID  string                     `json:"document_id"`
	Title       string                     `json:"title"`
	Stage       domain.Stage               `json:"stage"`
	Content     string                     `json:"content"`
	Plan        string                     `json:"plan,omitempty"`
	Messages    []domain.Message           `json:"messages"`
	Gaps        []domain.InstructionalGap  `json:"gaps"`
	Standards   []domain.StandardReference `json:"standards"`
	Suggestions []string                   `json:"suggestions"`
}

// View returns the current session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		DocumentID:  s.documentID,
		Title:       s.title,
		Stage:       s.stage,
		Content:     s.buffer,
		Plan:        s.plan,
		Messages:    slices.Clone(s.messages),
		Gaps:        domain.DedupeGaps(s.gaps),
		Standards:   domain.DedupeStandards(s.standards),
		Suggestions: slices.Clone(s.suggestions),
	}
}

// HandleContentChange records an edit from the learner: the buffer is
// replaced and both background schedulers are superseded.
func (s *Session) HandleContentChange(content string) {
	s.mu.Lock()
	s.guards.hasUserInteracted = true
	s.buffer = content
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.autosave.Schedule()
	s.idle.Schedule()
}

// Rename updates the document title.
func (s *Session) Rename(ctx context.Context, title string) error {
	if err := s.repo.UpdateDocumentTitle(ctx, s.documentID, title); err != nil {
		return err
	}
	s.mu.Lock()
	s.title = title
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return nil
}

// flushSave persists the buffer as a new snapshot for the current stage,
// unless it matches the last persisted value. Safe to call from the autosave
// timer and from the coach scheduler's forced flush; both observe the same
// equality guard.
func (s *Session) flushSave(ctx context.Context) {
	s.mu.Lock()
	content := s.buffer
	stage := s.stage
	unchanged := content == s.guards.lastSavedContent
	s.mu.Unlock()

	if unchanged {
		return
	}

	s.events.Publish(Event{Type: EventSaving, Active: true})
	start := time.Now()

	err := s.repo.InsertSnapshot(ctx, s.documentID, stage, content)
	if err != nil {
		s.logger.Warn("autosave failed", "stage", stage, "error", err)
		s.events.Publish(Event{Type: EventSaving, Active: false})
		s.events.Publish(Event{Type: EventWarning, Warning: "We couldn't save your draft. Please copy your work to be safe."})
		return
	}

	s.mu.Lock()
	s.guards.lastSavedContent = content
	s.mu.Unlock()

	// Keep the saving state visible long enough to register.
	if remaining := s.cfg.MinSavingIndicator - time.Since(start); remaining > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(remaining):
		}
	}
	s.events.Publish(Event{Type: EventSaving, Active: false})
}

// idleFor returns how long the session has been untouched.
func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// Close tears the session down: pending timers are cancelled, a final save
// is attempted (equality-guarded), and all event subscribers are released.
func (s *Session) Close() {
	s.autosave.Stop()
	s.idle.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flushSave(closeCtx)

	s.cancel()
	s.events.Close()
}
