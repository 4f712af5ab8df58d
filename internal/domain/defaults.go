package domain

// StageDefaults holds the greeting and fallback suggestion chips shown when
// a stage is entered or when the coach returns no suggestions of its own.
type StageDefaults struct {
	Greeting    string
	Suggestions []string
}

var stageDefaults = map[Stage]StageDefaults{
	StagePrewriting: {
		Greeting:    "Welcome to the brainstorming cloud! I can help you bubble up ideas and plan your story. What's on your mind?",
		Suggestions: []string{"I need an idea", "Help me plan", "What do I write about?"},
	},
	StageDrafting: {
		Greeting:    "Let's get those big ideas onto the page! Don't worry about mistakes yet, just let your story flow.",
		Suggestions: []string{"How do I start?", "I'm stuck", "Check my beginning"},
	},
	StageRevising: {
		Greeting:    "Time to add some magic! We can add juicy words and sensory details to bring your story to life.",
		Suggestions: []string{"Add sparkle words", "Make it sound better", "Describe the setting"},
	},
	StageEditing: {
		Greeting:    "Let's put on our editor hats! We'll check for capitals, punctuation, and spelling to make your writing clear.",
		Suggestions: []string{"Check my spelling", "Fix my grammar", "Is this correct?"},
	},
	StagePublishing: {
		Greeting:    "Your story is ready to become a book! Pick a style and see it come together.",
		Suggestions: nil,
	},
}

// DefaultsFor returns the defaults for a stage. Unknown stages get a plain
// welcome with no suggestions.
func DefaultsFor(stage Stage) StageDefaults {
	if d, ok := stageDefaults[stage]; ok {
		return d
	}
	return StageDefaults{Greeting: "Welcome!"}
}
