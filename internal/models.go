package internal

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire `type` discriminators of the assistant stream
const (
	TypeResponseCreated = "response.created"
	TypeResponseID      = "response_id"
	TypeTextDelta       = "response.output_text.delta"
	TypeFunctionCall    = "response.function_call"
	TypeToolResult      = "tool_result"
	TypeTool            = "response.tool"
	TypeCompleted       = "response.completed"
	TypeError           = "error"
	TypeLegacyText      = "text"

	// RenderToolName is the reserved response.tool name whose output carries
	// the final Markdown for the turn.
	RenderToolName = "response.render"
)

// errUnknownType marks payloads with a `type` this client does not handle
var errUnknownType = errors.New("unknown event type")

// Event is one decoded protocol event
type Event interface {
	EventType() string
}

// CreatedEvent announces the conversation continuation key
type CreatedEvent struct {
	ID string
}

// DeltaEvent carries an incremental fragment of assistant text
type DeltaEvent struct {
	Text   string
	Legacy bool // sent as a `text` event
}

// FunctionCallEvent starts a tool indicator
type FunctionCallEvent struct {
	Name   string
	CallID string
}

// ToolResultEvent completes a tool indicator
type ToolResultEvent struct {
	CallID string
	Name   string
	Output any
}

// ToolInvocationEvent is a response.tool event other than the render tool.
// It starts a tool indicator like FunctionCallEvent.
type ToolInvocationEvent struct {
	Name   string
	CallID string
	Output any
}

// RenderEvent supplies the final Markdown for the whole turn
type RenderEvent struct {
	Markdown string
}

// CompletedEvent ends the turn
type CompletedEvent struct{}

// ErrorEvent aborts the turn
type ErrorEvent struct {
	Message string
}

func (CreatedEvent) EventType() string        { return TypeResponseCreated }
func (e DeltaEvent) EventType() string        { return deltaType(e.Legacy) }
func (FunctionCallEvent) EventType() string   { return TypeFunctionCall }
func (ToolResultEvent) EventType() string     { return TypeToolResult }
func (ToolInvocationEvent) EventType() string { return TypeTool }
func (RenderEvent) EventType() string         { return RenderToolName }
func (CompletedEvent) EventType() string      { return TypeCompleted }
func (ErrorEvent) EventType() string          { return TypeError }

func deltaType(legacy bool) string {
	if legacy {
		return TypeLegacyText
	}
	return TypeTextDelta
}

// rawEvent is the superset of fields seen on the wire. ParseEvent narrows
// it to exactly one concrete event per `type`.
type rawEvent struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Delta      json.RawMessage `json:"delta"`
	Name       string          `json:"name"`
	CallID     string          `json:"call_id"`
	ToolCallID string          `json:"tool_call_id"`
	Output     json.RawMessage `json:"output"`
	Message    json.RawMessage `json:"message"`
	Content    json.RawMessage `json:"content"`
}

type renderOutput struct {
	Markdown string `json:"markdown"`
	MD       string `json:"md"`
	Text     string `json:"text"`
}

// ParseEvent parses one `data:` payload into a typed Event. Payloads that
// are not JSON, carry an unknown type, or miss their key fields return an
// error; the decoder drops those.
func ParseEvent(data []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse event JSON: %w", err)
	}

	switch raw.Type {
	case TypeResponseCreated, TypeResponseID:
		if raw.ID == "" {
			return nil, fmt.Errorf("%s event without id", raw.Type)
		}
		return CreatedEvent{ID: raw.ID}, nil

	case TypeTextDelta:
		text, err := deltaText(raw.Delta)
		if err != nil {
			return nil, err
		}
		return DeltaEvent{Text: text}, nil

	case TypeLegacyText:
		text, ok := rawString(raw.Content)
		if !ok || text == "" {
			return nil, fmt.Errorf("text event without content")
		}
		return DeltaEvent{Text: text, Legacy: true}, nil

	case TypeFunctionCall:
		if raw.Name == "" {
			return nil, fmt.Errorf("function_call event without name")
		}
		return FunctionCallEvent{Name: raw.Name, CallID: raw.CallID}, nil

	case TypeToolResult:
		callID := raw.ToolCallID
		if callID == "" {
			callID = raw.ID
		}
		if callID == "" && raw.Name == "" {
			return nil, fmt.Errorf("tool_result event without id or name")
		}
		return ToolResultEvent{CallID: callID, Name: raw.Name, Output: decodeOutput(raw.Output)}, nil

	case TypeTool:
		if raw.Name == "" {
			return nil, fmt.Errorf("response.tool event without name")
		}
		if raw.Name == RenderToolName {
			return parseRender(raw.Output)
		}
		callID := raw.CallID
		if callID == "" {
			callID = raw.ID
		}
		return ToolInvocationEvent{Name: raw.Name, CallID: callID, Output: decodeOutput(raw.Output)}, nil

	case TypeCompleted:
		return CompletedEvent{}, nil

	case TypeError:
		msg, _ := rawString(raw.Message)
		if msg == "" {
			msg = "the assistant stream reported an error"
		}
		return ErrorEvent{Message: msg}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, raw.Type)
	}
}

// deltaText reads `delta.text`; a bare string delta is accepted too.
func deltaText(raw json.RawMessage) (string, error) {
	if s, ok := rawString(raw); ok {
		if s == "" {
			return "", fmt.Errorf("empty delta")
		}
		return s, nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil || obj.Text == "" {
		return "", fmt.Errorf("delta event without delta.text")
	}
	return obj.Text, nil
}

func parseRender(raw json.RawMessage) (Event, error) {
	var out renderOutput
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return nil, fmt.Errorf("render event without output object")
	}
	for _, md := range []string{out.Markdown, out.MD, out.Text} {
		if md != "" {
			return RenderEvent{Markdown: md}, nil
		}
	}
	return nil, fmt.Errorf("render event without markdown")
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeOutput(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
