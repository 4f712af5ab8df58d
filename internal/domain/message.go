package domain

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the coaching conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsAssistant reports whether the message was authored by the coach. The
// coaching service sometimes labels its turns "ai" instead of "assistant".
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant || m.Role == "ai"
}
