// Package domain contains core domain types for the writing studio.
package domain

// Stage is one of the five ordered phases of the writing workflow.
type Stage string

const (
	StagePrewriting Stage = "prewriting"
	StageDrafting   Stage = "drafting"
	StageRevising   Stage = "revising"
	StageEditing    Stage = "editing"
	StagePublishing Stage = "publishing"
)

// Stages lists all stages in workflow order.
var Stages = []Stage{
	StagePrewriting,
	StageDrafting,
	StageRevising,
	StageEditing,
	StagePublishing,
}

var stageIndex = map[Stage]int{
	StagePrewriting: 0,
	StageDrafting:   1,
	StageRevising:   2,
	StageEditing:    3,
	StagePublishing: 4,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageIndex[s]
	return ok
}

// Index returns the position of s in the workflow order, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	if i, ok := stageIndex[s]; ok {
		return i
	}
	return -1
}

// CanTransitionTo reports whether a learner may move from s to target.
// Forward moves are limited to one stage at a time; any backward move is
// allowed.
func (s Stage) CanTransitionTo(target Stage) bool {
	if !s.Valid() || !target.Valid() {
		return false
	}
	return target.Index() <= s.Index()+1
}

// CoachObserved reports whether the coaching agent automatically reviews
// work in this stage. Prewriting is conversation-driven and publishing is
// layout-only, so neither gets automatic checks.
func (s Stage) CoachObserved() bool {
	switch s {
	case StageDrafting, StageRevising, StageEditing:
		return true
	default:
		return false
	}
}
