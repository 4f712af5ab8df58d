package domain

// Gap severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// InstructionalGap is a skill the coach detected the learner is missing.
// Each agent response replaces the prior list wholesale.
type InstructionalGap struct {
	SkillDomain string `json:"skill_domain"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Evidence    string `json:"evidence,omitempty"`
}

// StandardReference is a curriculum standard retrieved by the coach.
type StandardReference struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// DedupeGaps filters gaps by (skill domain, description), keeping first
// occurrences in order. The filter is presentation-only; callers retain the
// full list the agent returned.
func DedupeGaps(gaps []InstructionalGap) []InstructionalGap {
	if len(gaps) == 0 {
		return gaps
	}
	type key struct{ domain, desc string }
	seen := make(map[key]struct{}, len(gaps))
	out := make([]InstructionalGap, 0, len(gaps))
	for _, g := range gaps {
		k := key{g.SkillDomain, g.Description}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g)
	}
	return out
}

// DedupeStandards filters standards by content text, keeping first
// occurrences in order.
func DedupeStandards(standards []StandardReference) []StandardReference {
	if len(standards) == 0 {
		return standards
	}
	seen := make(map[string]struct{}, len(standards))
	out := make([]StandardReference, 0, len(standards))
	for _, s := range standards {
		if _, ok := seen[s.Content]; ok {
			continue
		}
		seen[s.Content] = struct{}{}
		out = append(out, s)
	}
	return out
}
