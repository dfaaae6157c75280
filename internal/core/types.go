package core

// Message roles sent to the chat API
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatRequest is one outbound completion: a system prompt, a user prompt
// and a token cap. Built per call and never mutated.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Messages returns the two role-tagged messages sent upstream.
func (r *ChatRequest) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: r.SystemPrompt},
		{Role: RoleUser, Content: r.UserPrompt},
	}
}

// Message represents a single message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse holds the text of the first reply choice.
// Text is empty when the provider returned null content.
type ChatResponse struct {
	Text string
}
