package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SSEFrame renders one payload as a `data:` frame. Strings are sent as is,
// anything else is JSON encoded.
func SSEFrame(payload interface{}) string {
	var data string
	switch p := payload.(type) {
	case string:
		data = p
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			panic(fmt.Sprintf("testutil: marshal SSE payload: %v", err))
		}
		data = string(raw)
	}
	return "data: " + data + "\n\n"
}

// SSEBody joins payloads into one event stream
func SSEBody(payloads ...interface{}) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString(SSEFrame(p))
	}
	return b.String()
}

// WriteSSE writes payloads as an event stream, flushing after each frame
func WriteSSE(w http.ResponseWriter, payloads ...interface{}) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, p := range payloads {
		_, _ = fmt.Fprint(w, SSEFrame(p))
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Created is a response.created payload
func Created(id string) map[string]interface{} {
	return map[string]interface{}{"type": "response.created", "id": id}
}

// Delta is a response.output_text.delta payload
func Delta(text string) map[string]interface{} {
	return map[string]interface{}{"type": "response.output_text.delta", "delta": map[string]string{"text": text}}
}

// FunctionCall is a response.function_call payload
func FunctionCall(name, callID string) map[string]interface{} {
	return map[string]interface{}{"type": "response.function_call", "name": name, "call_id": callID}
}

// ToolResult is a tool_result payload
func ToolResult(callID, name string, output interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "tool_result", "tool_call_id": callID, "name": name, "output": output}
}

// Render is a response.tool payload for the render tool
func Render(markdown string) map[string]interface{} {
	return map[string]interface{}{
		"type":   "response.tool",
		"name":   "response.render",
		"output": map[string]string{"markdown": markdown},
	}
}

// Completed is a response.completed payload
func Completed() map[string]interface{} {
	return map[string]interface{}{"type": "response.completed"}
}

// StreamError is an error payload
func StreamError(message string) map[string]interface{} {
	return map[string]interface{}{"type": "error", "message": message}
}
