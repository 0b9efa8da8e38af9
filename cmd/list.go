package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
)

var listLimit int

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	modeLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List local conversations",
	Long: `List the conversations stored on this machine, most recent first.

The current conversation of each mode is marked with *. Use the key with
'chef-chat history' or 'chef-chat export'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		transcripts, err := e.store.LoadTranscripts()
		if err != nil {
			return err
		}
		if listLimit > 0 && len(transcripts) > listLimit {
			transcripts = transcripts[:listLimit]
		}

		current := make(map[string]bool)
		for _, mode := range []internal.Mode{internal.ModeAuthenticated, internal.ModeGuest} {
			keys, err := e.store.ContinuationKeys(mode)
			if err != nil {
				internal.LogDebug("No continuation keys for %s: %v", mode, err)
				continue
			}
			if keys.ThreadID != "" {
				current[keys.ThreadID] = true
			}
		}

		displayTranscripts(cmd.OutOrStdout(), transcripts, current, time.Now())
		return nil
	},
}

func displayTranscripts(out io.Writer, transcripts []*internal.Transcript, current map[string]bool, now time.Time) {
	if len(transcripts) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No conversations yet. Start one with 'chef-chat chat'."))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d conversation(s)", len(transcripts))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("Key")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Mode")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t")

	for _, t := range transcripts {
		key := t.Key
		if current[t.Key] {
			key += " *"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(key),
			t.Title(),
			modeLabelStyle.Render(string(t.Mode)),
			countStyle.Render(strconv.Itoa(len(t.Messages))),
			dateStyle.Render(relativeTime(t.UpdatedAt.Local(), now.Local())),
		)
	}
	_ = w.Flush()
}

// relativeTime formats t for listings, shorter the more recent it is
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour && t.Day() == now.Day():
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most n conversations")
}
