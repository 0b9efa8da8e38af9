package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/chef-chat/internal"
)

// MarkdownExporter exports transcripts in Markdown format
type MarkdownExporter struct{}

// Export exports a transcript to Markdown format. Message content is
// already Markdown and is written as is, so tables keep rendering.
func (e *MarkdownExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	// Header
	_, _ = fmt.Fprintf(w, "# %s\n\n", transcript.Title())

	if transcript.ThreadID != "" {
		_, _ = fmt.Fprintf(w, "**Thread:** %s  \n", transcript.ThreadID)
	}
	_, _ = fmt.Fprintf(w, "**Mode:** %s  \n", transcript.Mode)
	if !transcript.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", transcript.UpdatedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(transcript.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	tools := toolsByTurn(transcript)
	for i, msg := range transcript.Messages {
		timestamp := ""
		if !msg.CreatedAt.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.CreatedAt.Format(time.RFC3339))
		}

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n", speaker(msg.Role), timestamp)

		if used := tools[msg.ID]; len(used) > 0 {
			_, _ = fmt.Fprintf(w, "> %s\n\n", toolLine(used))
		}

		_, _ = fmt.Fprintf(w, "%s\n\n", strings.TrimRight(msg.Content, "\n"))

		if i < len(transcript.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func speaker(role internal.Role) string {
	if role == internal.RoleUser {
		return "You"
	}
	return "Assistant"
}

func toolLine(tools []internal.ToolEvent) string {
	parts := make([]string, 0, len(tools))
	for _, tool := range tools {
		mark := "✓"
		if tool.Status == internal.ToolRunning {
			mark = "…"
		}
		parts = append(parts, fmt.Sprintf("%s %s", mark, tool.Name))
	}
	return "Tools: " + strings.Join(parts, ", ")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
