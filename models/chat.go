package models

// Chat roles accepted in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// MaxTurnContentRunes caps a single turn, counted in characters as the
// max tag on ChatTurn.Content does. The request body limit bounds bytes.
const MaxTurnContentRunes = 32 * 1024

// ChatTurn is one entry of a conversation. Conversations live in the
// client's session only; nothing here is persisted.
type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"max=32768"`
}

type ChatRequest struct {
	Messages []ChatTurn `json:"messages" validate:"required,min=1,max=100,dive"`
	Language string     `json:"language,omitempty" validate:"omitempty,max=16"`
}

// LatestUserTurn returns the content of the last user turn, the one being answered.
func (r *ChatRequest) LatestUserTurn() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content, true
		}
	}
	return "", false
}

type ChatResponse struct {
	Reply string `json:"reply"`
}
