package workspace

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/piwrite/studio/internal/coach"
	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/store"
)

// fakeRepo is an in-memory Repository for orchestration tests.
type fakeRepo struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	snapshots []domain.DraftSnapshot
	messages  map[string][]domain.Message
	states    []*store.InstructionalStateEntry

	failInsertSnapshot bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		docs:     make(map[string]*domain.Document),
		messages: make(map[string][]domain.Message),
	}
}

func (f *fakeRepo) GetLearner(ctx context.Context, learnerID string) (*domain.Learner, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertLearner(ctx context.Context, learner *domain.Learner) error { return nil }

func (f *fakeRepo) UpdateLearnerLastSeen(ctx context.Context, learnerID string, lastSeen time.Time) error {
	return nil
}

func (f *fakeRepo) CreateDocument(ctx context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeRepo) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeRepo) ListDocuments(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []*domain.Document
	for _, doc := range f.docs {
		if doc.OwnerID == ownerID {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	return docs, nil
}

func (f *fakeRepo) UpdateDocumentTitle(ctx context.Context, documentID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return store.ErrNotFound
	}
	doc.Title = title
	return nil
}

func (f *fakeRepo) UpdateDocumentStage(ctx context.Context, documentID string, stage domain.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return store.ErrNotFound
	}
	doc.Stage = stage
	return nil
}

func (f *fakeRepo) InsertSnapshot(ctx context.Context, documentID string, stage domain.Stage, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertSnapshot {
		return context.DeadlineExceeded
	}
	f.snapshots = append(f.snapshots, domain.DraftSnapshot{
		ID:         int64(len(f.snapshots) + 1),
		DocumentID: documentID,
		Stage:      stage,
		Content:    content,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (f *fakeRepo) LatestSnapshot(ctx context.Context, documentID string, stage domain.Stage) (*domain.DraftSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		s := f.snapshots[i]
		if s.DocumentID == documentID && s.Stage == stage {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) AppendMessage(ctx context.Context, documentID string, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[documentID] = append(f.messages[documentID], msg)
	return nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, documentID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.messages[documentID]...), nil
}

func (f *fakeRepo) InsertInstructionalState(ctx context.Context, entry *store.InstructionalStateEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, entry)
	return nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// snapshotsFor returns snapshots recorded for a stage, oldest first.
func (f *fakeRepo) snapshotsFor(stage domain.Stage) []domain.DraftSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DraftSnapshot
	for _, s := range f.snapshots {
		if s.Stage == stage {
			out = append(out, s)
		}
	}
	return out
}

// fakeInvoker records every request and answers with a canned response.
type fakeInvoker struct {
	mu       sync.Mutex
	requests []coach.Request
	resp     *coach.Response
	err      error
}

func (f *fakeInvoker) Invoke(ctx context.Context, req coach.Request) (*coach.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &coach.Response{}, nil
}

func (f *fakeInvoker) calls() []coach.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]coach.Request(nil), f.requests...)
}

func testConfig() Config {
	return Config{
		AutosaveDelay:      10 * time.Millisecond,
		IdleCheckDelay:     20 * time.Millisecond,
		MinAnalyzeLength:   20,
		MinSavingIndicator: 0,
	}
}

func newTestSession(t *testing.T, stage domain.Stage, repo *fakeRepo, invoker Invoker) *Session {
	t.Helper()
	doc := &domain.Document{ID: "doc-1", OwnerID: "lrn-1", Title: "Test Story", Stage: stage}
	if _, ok := repo.docs[doc.ID]; !ok {
		repo.docs[doc.ID] = doc
	}
	s := newSession(doc, "3", repo, invoker, testConfig(), nil)
	t.Cleanup(s.Close)
	return s
}
