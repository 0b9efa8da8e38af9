package export

import (
	"fmt"
	"io"

	"github.com/iksnae/chef-chat/internal"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(transcript *internal.Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}

// toolsByTurn groups tool events under the assistant message they belong to
func toolsByTurn(transcript *internal.Transcript) map[string][]internal.ToolEvent {
	grouped := make(map[string][]internal.ToolEvent)
	for _, tool := range transcript.Tools {
		grouped[tool.TurnID] = append(grouped[tool.TurnID], tool)
	}
	return grouped
}
