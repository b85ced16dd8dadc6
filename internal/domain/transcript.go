package domain

// Role — роль реплики в AI-диалоге.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn — одна реплика transcript AI-узла.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript — упорядоченная последовательность реплик одной AI-сессии.
// Append-only; читается с ограниченным окном истории.
type Transcript []Turn

// Tail возвращает последние n реплик (все, если n <= 0 или реплик меньше).
func (t Transcript) Tail(n int) Transcript {
	if n <= 0 || len(t) <= n {
		return t
	}
	return t[len(t)-n:]
}
