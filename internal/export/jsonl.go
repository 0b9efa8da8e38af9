package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/chef-chat/internal"
)

// JSONLExporter exports transcripts in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a transcript to JSONL format. Assistant lines carry the
// labels of the tools used during that turn.
func (e *JSONLExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	tools := toolsByTurn(transcript)

	for _, msg := range transcript.Messages {
		obj := map[string]interface{}{
			"role":    msg.Role,
			"content": msg.Content,
		}

		if !msg.CreatedAt.IsZero() {
			obj["created_at"] = msg.CreatedAt.Format(time.RFC3339)
		}
		if used := tools[msg.ID]; len(used) > 0 {
			labels := make([]string, 0, len(used))
			for _, tool := range used {
				labels = append(labels, tool.Name)
			}
			obj["tools"] = labels
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
