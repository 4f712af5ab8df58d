package workspace

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/piwrite/studio/internal/domain"
)

// Seed is the content chosen to initialize a stage when it is entered, and
// whether it must be persisted as a snapshot for that stage right away.
type Seed struct {
	Content string
	Persist bool
}

// SnapshotLookup resolves the latest persisted content for a stage. A lookup
// that fails behind the scenes reports not-found; the caller logs.
type SnapshotLookup func(stage domain.Stage) (content string, ok bool)

// ResolveSeed computes the content a target stage starts with. Policy, in
// priority order:
//
//   - publishing entered directly from editing carries the buffer over
//     unchanged, so the final text never regresses to an older snapshot;
//   - publishing entered from anywhere else prefers the latest editing
//     snapshot, then revising, then whatever publishing snapshot exists;
//   - drafting always starts blank (the prewriting plan is kept as a
//     side-channel reference, never copied in);
//   - revising and editing resume their own snapshot when it has visible
//     text, otherwise carry the buffer forward;
//   - any other target starts blank.
func ResolveSeed(target, current domain.Stage, buffer string, lookup SnapshotLookup) Seed {
	switch {
	case target == domain.StagePublishing && current == domain.StageEditing:
		return Seed{Content: buffer, Persist: true}

	case target == domain.StagePublishing:
		if content, ok := lookup(domain.StageEditing); ok && content != "" {
			return Seed{Content: content, Persist: true}
		}
		if content, ok := lookup(domain.StageRevising); ok && content != "" {
			return Seed{Content: content, Persist: true}
		}
		if content, ok := lookup(domain.StagePublishing); ok {
			return Seed{Content: content, Persist: false}
		}
		return Seed{Content: "", Persist: true}

	case target == domain.StageDrafting:
		return Seed{Content: "", Persist: false}

	case target == domain.StageRevising || target == domain.StageEditing:
		if content, ok := lookup(target); ok && HasVisibleText(content) {
			return Seed{Content: content, Persist: false}
		}
		return Seed{Content: buffer, Persist: true}

	default:
		return Seed{Content: "", Persist: false}
	}
}

var (
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	spacesPattern = regexp.MustCompile(`\s+`)

	htmlConverter = md.NewConverter("", true, nil)
)

// VisibleText reduces rich-text HTML to the text a reader would see,
// trimmed. Conversion goes through the markdown converter; a conversion
// failure falls back to stripping tags directly.
func VisibleText(html string) string {
	text, err := htmlConverter.ConvertString(html)
	if err != nil {
		text = tagPattern.ReplaceAllString(html, " ")
	}
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = spacesPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// HasVisibleText reports whether content has any visible text once markup
// is stripped.
func HasVisibleText(content string) bool {
	return VisibleText(content) != ""
}

// VisibleLength returns the visible character count of content.
func VisibleLength(content string) int {
	return len([]rune(VisibleText(content)))
}
