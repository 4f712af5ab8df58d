// Package coach implements the client for the AI coaching service.
package coach

import (
	"github.com/piwrite/studio/internal/domain"
)

// Trigger kinds sent to the coaching service.
const (
	TriggerUserInput       = "user_input"
	TriggerStageTransition = "STAGE_TRANSITION"
	TriggerPeriodicCheck   = "PERIODIC_CHECK"
)

// Request carries session state to the coaching service for one invocation.
type Request struct {
	DocumentID           string           `json:"document_id"`
	Stage                domain.Stage     `json:"stage"`
	GradeLevel           string           `json:"grade_level"`
	DocumentText         string           `json:"document_text"`
	TriggerKind          string           `json:"trigger_kind"`
	TriggerPayload       string           `json:"trigger_payload"`
	Conversation         []domain.Message `json:"conversation_history"`
	PreviousDocumentText string           `json:"previous_document_text,omitempty"`
}

// Response is the coaching service's reply. Every field beyond Messages is
// optional; absent fields leave the corresponding session state unchanged.
type Response struct {
	Messages             []domain.Message           `json:"messages"`
	InstructionalGaps    []domain.InstructionalGap  `json:"instructional_gaps,omitempty"`
	RetrievedStandards   []domain.StandardReference `json:"retrieved_standards,omitempty"`
	SuggestedPrompts     []string                   `json:"suggested_prompts,omitempty"`
	DocumentText         string                     `json:"document_text,omitempty"`
	PreviousDocumentText string                     `json:"previous_document_text,omitempty"`
}

// AssistantReply returns the content of the trailing message in the returned
// transcript if it was authored by the assistant, and whether one was found.
func (r *Response) AssistantReply() (string, bool) {
	if r == nil || len(r.Messages) == 0 {
		return "", false
	}
	last := r.Messages[len(r.Messages)-1]
	if !last.IsAssistant() {
		return "", false
	}
	return last.Content, true
}
