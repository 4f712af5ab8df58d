package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/piwrite/studio/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func createTestDocument(t *testing.T, repo Repository, id string) *domain.Document {
	t.Helper()
	now := time.Now()
	doc := &domain.Document{
		ID:        id,
		OwnerID:   "lrn-1",
		Title:     "Test Story",
		Stage:     domain.StagePrewriting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}
	return doc
}

func TestLearnerRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetLearner(ctx, "lrn-1")
	if err != nil {
		t.Fatalf("GetLearner returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected nil for unknown learner, got %+v", got)
	}

	now := time.Now()
	learner := &domain.Learner{ID: "lrn-1", GradeLevel: "3", CreatedAt: now, LastSeenAt: now}
	if err := repo.UpsertLearner(ctx, learner); err != nil {
		t.Fatalf("UpsertLearner returned error: %v", err)
	}

	got, err = repo.GetLearner(ctx, "lrn-1")
	if err != nil {
		t.Fatalf("GetLearner returned error: %v", err)
	}
	if got == nil || got.GradeLevel != "3" {
		t.Errorf("Got learner %+v", got)
	}

	if err := repo.UpdateLearnerLastSeen(ctx, "lrn-1", now.Add(time.Hour)); err != nil {
		t.Errorf("UpdateLearnerLastSeen returned error: %v", err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	createTestDocument(t, repo, "doc-1")

	doc, err := repo.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument returned error: %v", err)
	}
	if doc.Title != "Test Story" || doc.Stage != domain.StagePrewriting {
		t.Errorf("Got document %+v", doc)
	}

	if _, err := repo.GetDocument(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := repo.UpdateDocumentTitle(ctx, "doc-1", "Renamed"); err != nil {
		t.Fatalf("UpdateDocumentTitle returned error: %v", err)
	}
	if err := repo.UpdateDocumentStage(ctx, "doc-1", domain.StageDrafting); err != nil {
		t.Fatalf("UpdateDocumentStage returned error: %v", err)
	}

	doc, err = repo.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument returned error: %v", err)
	}
	if doc.Title != "Renamed" || doc.Stage != domain.StageDrafting {
		t.Errorf("Got document %+v after updates", doc)
	}

	if err := repo.UpdateDocumentTitle(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating unknown document, got %v", err)
	}
}

func TestListDocumentsFiltersByOwner(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	createTestDocument(t, repo, "doc-1")
	other := &domain.Document{
		ID: "doc-2", OwnerID: "lrn-2", Title: "Other", Stage: domain.StagePrewriting,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := repo.CreateDocument(ctx, other); err != nil {
		t.Fatalf("CreateDocument returned error: %v", err)
	}

	docs, err := repo.ListDocuments(ctx, "lrn-1")
	if err != nil {
		t.Fatalf("ListDocuments returned error: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" {
		t.Errorf("Got %d documents: %+v", len(docs), docs)
	}
}

func TestSnapshotsAreAppendOnly(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()
	createTestDocument(t, repo, "doc-1")

	snap, err := repo.LatestSnapshot(ctx, "doc-1", domain.StageDrafting)
	if err != nil {
		t.Fatalf("LatestSnapshot returned error: %v", err)
	}
	if snap != nil {
		t.Fatalf("Expected nil for missing snapshot, got %+v", snap)
	}

	if err := repo.InsertSnapshot(ctx, "doc-1", domain.StageDrafting, "<p>first</p>"); err != nil {
		t.Fatalf("InsertSnapshot returned error: %v", err)
	}
	if err := repo.InsertSnapshot(ctx, "doc-1", domain.StageDrafting, "<p>second</p>"); err != nil {
		t.Fatalf("InsertSnapshot returned error: %v", err)
	}
	if err := repo.InsertSnapshot(ctx, "doc-1", domain.StageRevising, "<p>other stage</p>"); err != nil {
		t.Fatalf("InsertSnapshot returned error: %v", err)
	}

	snap, err = repo.LatestSnapshot(ctx, "doc-1", domain.StageDrafting)
	if err != nil {
		t.Fatalf("LatestSnapshot returned error: %v", err)
	}
	if snap == nil || snap.Content != "<p>second</p>" {
		t.Errorf("Got snapshot %+v, want the newest drafting content", snap)
	}
	if snap.Stage != domain.StageDrafting {
		t.Errorf("Stage = %s", snap.Stage)
	}
}

func TestMessagesPreserveOrder(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()
	createTestDocument(t, repo, "doc-1")

	turns := []domain.Message{
		{Role: domain.RoleUser, Content: "help me start"},
		{Role: domain.RoleAssistant, Content: "How about a race?"},
		{Role: domain.RoleUser, Content: "yes!"},
	}
	for _, msg := range turns {
		if err := repo.AppendMessage(ctx, "doc-1", msg); err != nil {
			t.Fatalf("AppendMessage returned error: %v", err)
		}
	}

	got, err := repo.ListMessages(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("Got %d messages, want %d", len(got), len(turns))
	}
	for i := range turns {
		if got[i] != turns[i] {
			t.Errorf("Message %d = %+v, want %+v", i, got[i], turns[i])
		}
	}
}

func TestInsertInstructionalState(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	createTestDocument(t, repo, "doc-1")

	entry := &InstructionalStateEntry{
		DocumentID: "doc-1",
		DetectedGaps: []domain.InstructionalGap{
			{SkillDomain: "mechanics", Description: "missing capitals", Severity: domain.SeverityLow},
		},
		ActivePrompts:  []string{"Check my spelling"},
		ContextSummary: "updated via chat",
	}
	if err := repo.InsertInstructionalState(context.Background(), entry); err != nil {
		t.Fatalf("InsertInstructionalState returned error: %v", err)
	}
}
