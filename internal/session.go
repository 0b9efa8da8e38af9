package internal

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolStatus is the lifecycle state of a tool indicator
type ToolStatus string

const (
	ToolRunning ToolStatus = "running"
	ToolDone    ToolStatus = "done"
)

// Message represents one conversational turn
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Finalized bool      `json:"finalized" yaml:"finalized"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ToolEvent represents one server-side tool invocation during a turn
type ToolEvent struct {
	ID      string     `json:"id" yaml:"id"`
	Name    string     `json:"name" yaml:"name"` // human label
	RawName string     `json:"raw_name,omitempty" yaml:"raw_name,omitempty"`
	Status  ToolStatus `json:"status" yaml:"status"`
	Output  any        `json:"output,omitempty" yaml:"output,omitempty"`
	TurnID  string     `json:"turn_id" yaml:"turn_id"`
}

// Transcript is the persisted form of a conversation
type Transcript struct {
	Key        string      `json:"key" yaml:"key"`
	Mode       Mode        `json:"mode" yaml:"mode"`
	ThreadID   string      `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	ResponseID string      `json:"response_id,omitempty" yaml:"response_id,omitempty"`
	Messages   []Message   `json:"messages" yaml:"messages"`
	Tools      []ToolEvent `json:"tools,omitempty" yaml:"tools,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Title returns the first user message, truncated, for listings
func (t *Transcript) Title() string {
	for _, msg := range t.Messages {
		if msg.Role != RoleUser || msg.Content == "" {
			continue
		}
		title := []rune(msg.Content)
		if len(title) > 50 {
			return string(title[:47]) + "..."
		}
		return string(title)
	}
	return "Untitled"
}
