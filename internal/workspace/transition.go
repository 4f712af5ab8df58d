package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piwrite/studio/internal/coach"
	"github.com/piwrite/studio/internal/domain"
)

// ErrInvalidTransition is returned for a stage change the workflow does not
// permit (unknown stage, or skipping forward more than one stage).
var ErrInvalidTransition = errors.New("invalid stage transition")

const checkingWorkMessage = "Taking a look at your work..."

// ChangeStage moves the session to the target stage.
//
// The handoff is an ordered, logged sequence: persist the outgoing stage's
// buffer (the only step whose failure aborts the transition), resolve the
// seed content for the target, swap the buffer and stage, persist the seed
// when required, record the stage on the document, greet, and finally invoke
// the coach for observed stages. Failures after the first step surface as
// warnings and are not rolled back; the up-front save guarantees the prior
// stage's work is never lost.
func (s *Session) ChangeStage(ctx context.Context, target domain.Stage) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, target)
	}

	s.mu.Lock()
	current := s.stage
	content := s.buffer
	s.lastActivity = time.Now()
	if !current.CanTransitionTo(target) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s skips ahead", ErrInvalidTransition, current, target)
	}
	s.mu.Unlock()

	// Re-selecting the current stage is a no-op: no coach call, and the
	// equality-guarded flush means no duplicate snapshot for unchanged
	// content.
	if target == current {
		s.flushSave(ctx)
		return nil
	}

	s.logger.Info("stage transition", "from", current, "to", target)

	// Step 1: save the outgoing stage. This is unconditional and first so a
	// failed handoff can never lose the learner's work.
	if err := s.repo.InsertSnapshot(ctx, s.documentID, current, content); err != nil {
		return fmt.Errorf("save %s draft before transition: %w", current, err)
	}

	lookup := func(stage domain.Stage) (string, bool) {
		snap, err := s.repo.LatestSnapshot(ctx, s.documentID, stage)
		if err != nil {
			s.logger.Warn("snapshot lookup failed during transition", "stage", stage, "error", err)
			return "", false
		}
		if snap == nil {
			return "", false
		}
		return snap.Content, true
	}

	// Step 2: resolve the seed content for the target stage.
	seed := ResolveSeed(target, current, content, lookup)

	// Step 3: swap buffer and stage. lastSavedContent tracks the seed so
	// the autosave timer does not immediately re-save unchanged content.
	defaults := domain.DefaultsFor(target)
	greeting := domain.Message{Role: domain.RoleAssistant, Content: defaults.Greeting}
	checking := domain.Message{Role: domain.RoleAssistant, Content: checkingWorkMessage}

	s.mu.Lock()
	if target == domain.StageDrafting {
		// The outgoing prewriting work becomes the read-only plan
		// reference; it is never copied into drafting's own snapshots.
		s.plan = content
	}
	s.buffer = seed.Content
	s.stage = target
	s.guards.lastSavedContent = seed.Content
	s.messages = append(s.messages, greeting, checking)
	s.suggestions = defaults.Suggestions
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventStage, Stage: target, Content: seed.Content})
	s.events.Publish(Event{Type: EventMessage, Message: &greeting})
	s.events.Publish(Event{Type: EventMessage, Message: &checking})
	s.events.Publish(Event{Type: EventSuggestions, Suggestions: defaults.Suggestions})

	// Step 4: persist the seed when the sync policy requires it.
	if seed.Persist && seed.Content != "" {
		s.transitionStep("persist seed snapshot", func() error {
			return s.repo.InsertSnapshot(ctx, s.documentID, target, seed.Content)
		})
	}

	// Step 5: record the new stage on the document.
	s.transitionStep("update document stage", func() error {
		return s.repo.UpdateDocumentStage(ctx, s.documentID, target)
	})

	// Step 6: observed stages get an immediate coach review of the seeded
	// content. Prewriting and publishing do not.
	if target.CoachObserved() {
		s.invokeCoach(ctx, coach.TriggerStageTransition, payloadStageEntry, seed.Content)
	}

	return nil
}

// transitionStep runs one best-effort step of the handoff sequence. A
// failure is logged and surfaced as a warning; already-applied changes stay.
func (s *Session) transitionStep(name string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Warn("stage transition step failed", "step", name, "error", err)
		s.events.Publish(Event{Type: EventWarning, Warning: "Something went wrong while switching stages, but your previous work is saved."})
	}
}
