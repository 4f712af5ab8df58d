package workspace

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/piwrite/studio/internal/coach"
	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/store"
)

// System-authored trigger payloads sent alongside non-user invocations.
const (
	payloadInitialLoad = "[SYSTEM: The student just loaded the workspace. Review the current content and provide guidance.]"
	payloadStageEntry  = "[SYSTEM: The student just transitioned to this stage. Review the content and provide stage-appropriate guidance. Provide a concrete and parallel example if valid.]"
	payloadIdleCheck   = "[SYSTEM: The student has updated the draft and has been idle. Briefly review the changes and offer a relevant coaching tip or encouragement. Do not be repetitive.]"
)

// idleCheck runs when the idle debounce elapses. The coach is invoked only
// when every guard holds: the stage is coach-observed, the learner has
// actually interacted since load, the buffer changed since the last
// analysis, and the draft has enough visible text to be worth reviewing.
// A flush precedes the call so the coach always reviews persisted content.
func (s *Session) idleCheck(ctx context.Context) {
	s.mu.Lock()
	stage := s.stage
	content := s.buffer
	interacted := s.guards.hasUserInteracted
	analyzed := s.guards.lastAnalyzedContent
	s.mu.Unlock()

	if !stage.CoachObserved() {
		return
	}
	if !interacted {
		s.logger.Debug("skipping idle check: no user interaction yet")
		return
	}
	if content == analyzed {
		s.logger.Debug("skipping idle check: content unchanged")
		return
	}
	if VisibleLength(content) <= s.cfg.MinAnalyzeLength {
		return
	}

	s.flushSave(ctx)
	s.invokeCoach(ctx, coach.TriggerPeriodicCheck, payloadIdleCheck, content)
}

// InitialCheck fires the one-time load check for coach-observed stages.
// Guarded by a flag that is never reset, so it runs at most once per
// session regardless of how it is scheduled.
func (s *Session) InitialCheck(ctx context.Context) {
	s.mu.Lock()
	if s.guards.initialCheckFired || !s.stage.CoachObserved() {
		s.mu.Unlock()
		return
	}
	s.guards.initialCheckFired = true
	content := s.buffer
	s.mu.Unlock()

	s.logger.Info("running initial load check")
	s.invokeCoach(ctx, coach.TriggerStageTransition, payloadInitialLoad, content)
}

// invokeCoach performs one proactive (system-triggered) invocation and
// merges the response. Failures are logged and swallowed; proactive checks
// never surface errors into the conversation.
func (s *Session) invokeCoach(ctx context.Context, trigger, payload, text string) {
	if s.invoker == nil {
		return
	}

	s.mu.Lock()
	req := coach.Request{
		DocumentID:     s.documentID,
		Stage:          s.stage,
		GradeLevel:     s.gradeLevel,
		DocumentText:   text,
		TriggerKind:    trigger,
		TriggerPayload: payload,
		Conversation:   slices.Clone(s.messages),
	}
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventLoading, Active: true})
	resp, err := s.invoker.Invoke(ctx, req)
	s.events.Publish(Event{Type: EventLoading, Active: false})
	if err != nil {
		s.logger.Warn("coach check failed", "trigger", trigger, "error", err)
		return
	}

	s.merge(ctx, resp, text, trigger)
}

// SendMessage handles an explicit learner chat message: it bypasses the
// idle debounce (cancelling any pending idle timer), invokes the coach
// directly, and surfaces failures as inline assistant messages so the
// learner sees them in context.
func (s *Session) SendMessage(ctx context.Context, text string) {
	s.idle.Stop()

	userMsg := domain.Message{Role: domain.RoleUser, Content: text}

	s.mu.Lock()
	s.messages = append(s.messages, userMsg)
	content := s.buffer
	req := coach.Request{
		DocumentID:           s.documentID,
		Stage:                s.stage,
		GradeLevel:           s.gradeLevel,
		DocumentText:         content,
		TriggerKind:          coach.TriggerUserInput,
		TriggerPayload:       text,
		Conversation:         slices.Clone(s.messages),
		PreviousDocumentText: s.previousText,
	}
	// Pre-mark the buffer as analyzed so the idle check does not fire
	// right after this exchange for the same content.
	s.guards.lastAnalyzedContent = content
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventMessage, Message: &userMsg})
	if err := s.repo.AppendMessage(ctx, s.documentID, userMsg); err != nil {
		s.logger.Warn("failed to persist user message", "error", err)
	}

	if s.invoker == nil {
		s.appendAssistant(ctx, "The AI coach is not available right now, but keep writing! Your work is being saved.")
		return
	}

	s.events.Publish(Event{Type: EventLoading, Active: true})
	resp, err := s.invoker.Invoke(ctx, req)
	s.events.Publish(Event{Type: EventLoading, Active: false})
	if err != nil {
		s.logger.Warn("chat invocation failed", "error", err)
		s.appendAssistant(ctx, chatErrorMessage(err))
		return
	}

	s.merge(ctx, resp, content, coach.TriggerUserInput)

	// Audit sink: record what the coach detected after this user-driven
	// exchange. Write-only; nothing in this service reads it back.
	s.mu.Lock()
	entry := &store.InstructionalStateEntry{
		DocumentID:     s.documentID,
		DetectedGaps:   slices.Clone(s.gaps),
		ActivePrompts:  slices.Clone(s.suggestions),
		ContextSummary: "updated via chat",
	}
	s.mu.Unlock()
	if err := s.repo.InsertInstructionalState(ctx, entry); err != nil {
		s.logger.Warn("failed to record instructional state", "error", err)
	}
}

// chatErrorMessage phrases a gateway failure for the conversation,
// distinguishing "the service is down" from everything else.
func chatErrorMessage(err error) string {
	if errors.Is(err, coach.ErrUnreachable) {
		return "I couldn't reach the AI coach. Is the coaching service running?"
	}
	return "I'm having trouble thinking right now. Please try again in a moment."
}

// appendAssistant adds an assistant-authored message to the transcript,
// persists it, and notifies subscribers.
func (s *Session) appendAssistant(ctx context.Context, content string) {
	msg := domain.Message{Role: domain.RoleAssistant, Content: content}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventMessage, Message: &msg})
	if err := s.repo.AppendMessage(ctx, s.documentID, msg); err != nil {
		s.logger.Warn("failed to persist assistant message", "error", err)
	}
}

// merge applies a coach response to session state. The policy is identical
// for every trigger:
//
//   - the trailing assistant message of the returned transcript, if any, is
//     appended to the conversation;
//   - returned gap and standard lists replace the prior lists wholesale;
//   - returned suggestions replace the chips, falling back to the stage
//     defaults when none came back;
//   - the returned document text overwrites the buffer only in prewriting
//     (the agent co-authors the plan there); every other stage ignores it
//     so learner formatting is never clobbered.
//
// Absent fields leave the corresponding state untouched. After the merge
// the analyzed buffer is recorded so the idle check does not immediately
// re-fire on the same content.
func (s *Session) merge(ctx context.Context, resp *coach.Response, analyzed, trigger string) {
	var out []Event

	reply, hasReply := resp.AssistantReply()

	s.mu.Lock()
	stage := s.stage

	if hasReply {
		msg := domain.Message{Role: domain.RoleAssistant, Content: reply}
		s.messages = append(s.messages, msg)
		out = append(out, Event{Type: EventMessage, Message: &msg})
	}
	if resp.InstructionalGaps != nil {
		s.gaps = resp.InstructionalGaps
		out = append(out, Event{Type: EventGaps, Gaps: domain.DedupeGaps(s.gaps)})
	}
	if resp.RetrievedStandards != nil {
		s.standards = resp.RetrievedStandards
		out = append(out, Event{Type: EventStandards, Standards: domain.DedupeStandards(s.standards)})
	}
	if len(resp.SuggestedPrompts) > 0 {
		s.suggestions = resp.SuggestedPrompts
	} else {
		s.suggestions = domain.DefaultsFor(stage).Suggestions
	}
	out = append(out, Event{Type: EventSuggestions, Suggestions: slices.Clone(s.suggestions)})

	var echoed string
	if stage == domain.StagePrewriting && resp.DocumentText != "" && resp.DocumentText != s.buffer {
		s.buffer = resp.DocumentText
		s.guards.lastSavedContent = resp.DocumentText
		echoed = resp.DocumentText
		out = append(out, Event{Type: EventContent, Content: echoed})
	}

	s.guards.lastAnalyzedContent = analyzed
	if trigger == coach.TriggerUserInput {
		if resp.PreviousDocumentText != "" {
			s.previousText = resp.PreviousDocumentText
		} else {
			s.previousText = analyzed
		}
	}
	s.mu.Unlock()

	for _, ev := range out {
		s.events.Publish(ev)
	}

	if echoed != "" {
		if err := s.repo.InsertSnapshot(ctx, s.documentID, domain.StagePrewriting, echoed); err != nil {
			s.logger.Warn("failed to persist coach-authored plan", "error", err)
		}
	}
	if hasReply {
		if err := s.repo.AppendMessage(ctx, s.documentID, domain.Message{Role: domain.RoleAssistant, Content: reply}); err != nil {
			s.logger.Warn("failed to persist assistant message", "error", err)
		}
	}
}
