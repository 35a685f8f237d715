package chat

// Message roles used across the prompt pipeline.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a model-agnostic chat message.
type Message struct {
	Role    string
	Content string
}
