package workspace

import (
	"regexp"
	"strings"
)

// PlanSections is a prewriting plan broken into its story parts. Plans that
// don't follow the numbered format leave all sections empty; callers fall
// back to showing the raw plan.
type PlanSections struct {
	Beginning string `json:"beginning"`
	Middle    string `json:"middle"`
	End       string `json:"end"`
}

// Structured reports whether any section was recognized.
func (p PlanSections) Structured() bool {
	return p.Beginning != "" || p.Middle != "" || p.End != ""
}

var (
	beginningPattern = regexp.MustCompile(`(?i)1\.\s*Beginning:?\s*([\s\S]*?)(?:2\.\s*Middle|$)`)
	middlePattern    = regexp.MustCompile(`(?i)2\.\s*Middle:?\s*([\s\S]*?)(?:3\.\s*End|$)`)
	endPattern       = regexp.MustCompile(`(?i)3\.\s*End:?\s*([\s\S]*)$`)
)

// ParsePlan extracts the "1. Beginning / 2. Middle / 3. End" sections the
// prewriting coach produces from a plan that may carry rich-text markup.
// Tags are stripped directly rather than going through the markdown
// converter, which would escape the numbered labels the patterns key on.
func ParsePlan(plan string) PlanSections {
	var sections PlanSections
	if plan == "" {
		return sections
	}

	text := tagPattern.ReplaceAllString(plan, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = spacesPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if m := beginningPattern.FindStringSubmatch(text); m != nil {
		sections.Beginning = strings.TrimSpace(m[1])
	}
	if m := middlePattern.FindStringSubmatch(text); m != nil {
		sections.Middle = strings.TrimSpace(m[1])
	}
	if m := endPattern.FindStringSubmatch(text); m != nil {
		sections.End = strings.TrimSpace(m[1])
	}
	return sections
}
