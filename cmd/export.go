package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/internal/export"
)

var (
	exportFormat string
	exportOutDir string
	exportStdout bool
)

var exportCmd = &cobra.Command{
	Use:   "export [key...]",
	Short: "Export conversations to files",
	Long: `Export local conversations to jsonl, md, yaml or json.

Without keys every stored conversation is exported, one file per
conversation. Use 'chef-chat list' to see the keys. With --stdout a single
conversation is written to standard output instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		transcripts, err := selectTranscripts(e.store, args)
		if err != nil {
			return err
		}
		if len(transcripts) == 0 {
			internal.PrintInfo("No conversations to export")
			return nil
		}

		if exportStdout {
			if len(transcripts) != 1 {
				return fmt.Errorf("--stdout exports exactly one conversation, got %d", len(transcripts))
			}
			return exporter.Export(transcripts[0], cmd.OutOrStdout())
		}

		if err := os.MkdirAll(exportOutDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		written := 0
		err = internal.ShowProgress(commandContext(cmd), fmt.Sprintf("Exporting %d conversation(s) to %s", len(transcripts), exportOutDir), func() error {
			for _, t := range transcripts {
				path := filepath.Join(exportOutDir, exportFileName(t, exporter.Extension()))
				if err := writeExport(exporter, t, path); err != nil {
					internal.LogError("Failed to export conversation %s: %v", t.Key, err)
					continue
				}
				written++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if written < len(transcripts) {
			return fmt.Errorf("exported %d of %d conversation(s)", written, len(transcripts))
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d conversation(s) exported to %s", written, exportOutDir))
		return nil
	},
}

// selectTranscripts loads the transcripts named by keys, or all of them
func selectTranscripts(store *internal.Storage, keys []string) ([]*internal.Transcript, error) {
	if len(keys) == 0 {
		return store.LoadTranscripts()
	}
	transcripts := make([]*internal.Transcript, 0, len(keys))
	for _, key := range keys {
		t, err := store.LoadTranscript(key)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("conversation not found: %s (use 'chef-chat list' to see available conversations)", key)
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, nil
}

func exportFileName(t *internal.Transcript, ext string) string {
	key := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, t.Key)
	return fmt.Sprintf("chat_%s.%s", key, ext)
}

func writeExport(exporter export.Exporter, t *internal.Transcript, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Export(t, file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write a single conversation to stdout")
}
