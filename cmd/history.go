package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/internal/tui"
)

var (
	historyLimit  int
	historyRemote bool
	historyRaw    bool
	historyStyle  string
)

var (
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))

	userMessageStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	assistantMessageStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("208"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	toolLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

var historyCmd = &cobra.Command{
	Use:   "history [key]",
	Short: "Show a conversation",
	Long: `Show the messages of a conversation.

Without a key the current conversation is shown. Keys are listed by
'chef-chat list'. With --remote the history of the thread is fetched from
the server first and replaces the local copy (signed in users only).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		var key string
		if len(args) == 1 {
			key = args[0]
		}

		var transcript *internal.Transcript
		if historyRemote {
			session, err := e.newSession(internal.LogNotifier{})
			if err != nil {
				return err
			}
			n, err := session.LoadHistory(commandContext(cmd), key)
			if errors.Is(err, internal.ErrNoToken) {
				return fmt.Errorf("--remote needs a signed-in user; run 'chef-chat token set' first")
			}
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			internal.LogInfo("Loaded %d message(s) from the server", n)
			key = session.Keys().ThreadID
		}

		if key == "" {
			session, err := e.newSession(internal.LogNotifier{})
			if err != nil {
				return err
			}
			keys := session.Keys()
			transcript = &internal.Transcript{
				Key:        keys.ThreadID,
				Mode:       session.Mode(),
				ThreadID:   keys.ThreadID,
				ResponseID: keys.ResponseID,
				Messages:   session.Messages(),
				Tools:      session.Tools(),
			}
		} else {
			transcript, err = e.store.LoadTranscript(key)
			if err != nil {
				return err
			}
			if transcript == nil {
				return fmt.Errorf("conversation not found: %s", key)
			}
		}

		var renderer *tui.MarkdownRenderer
		if !historyRaw && internal.IsTerminal() {
			renderer = tui.NewMarkdownRenderer(historyStyle)
		}
		displayTranscript(cmd.OutOrStdout(), transcript, historyLimit, renderer)
		return nil
	},
}

func displayTranscript(out io.Writer, t *internal.Transcript, limit int, renderer *tui.MarkdownRenderer) {
	fmt.Fprintln(out, sessionHeaderStyle.Render(t.Title()))

	metaParts := []string{fmt.Sprintf("Mode: %s", t.Mode), fmt.Sprintf("Messages: %d", len(t.Messages))}
	if t.ThreadID != "" {
		metaParts = append(metaParts, fmt.Sprintf("Thread: %s", t.ThreadID))
	}
	if !t.UpdatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Updated: %s", t.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	fmt.Fprintln(out, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	fmt.Fprintln(out)

	if len(t.Messages) == 0 {
		fmt.Fprintln(out, timestampStyle.Render("(no messages)"))
		return
	}

	messages := t.Messages
	skipped := 0
	if limit > 0 && len(messages) > limit {
		skipped = len(messages) - limit
		messages = messages[skipped:]
	}
	if skipped > 0 {
		fmt.Fprintln(out, timestampStyle.Render(fmt.Sprintf("... (%d earlier message(s))", skipped)))
		fmt.Fprintln(out)
	}

	tools := make(map[string][]internal.ToolEvent)
	for _, tool := range t.Tools {
		tools[tool.TurnID] = append(tools[tool.TurnID], tool)
	}

	for _, msg := range messages {
		displayMessage(out, msg, tools[msg.ID], renderer)
	}
}

func displayMessage(out io.Writer, msg internal.Message, tools []internal.ToolEvent, renderer *tui.MarkdownRenderer) {
	header := userMessageStyle.Render("You")
	if msg.Role == internal.RoleAssistant {
		header = assistantMessageStyle.Render("Assistant")
	}
	if !msg.CreatedAt.IsZero() {
		header += " " + timestampStyle.Render(msg.CreatedAt.Local().Format("Jan 02 15:04"))
	}
	fmt.Fprintln(out, header)

	for _, tool := range tools {
		fmt.Fprintln(out, toolLineStyle.Render("  ✓ "+tool.Name))
	}

	content := strings.TrimSpace(msg.Content)
	switch {
	case content == "":
		fmt.Fprintln(out, timestampStyle.Render("(empty message)"))
	case renderer != nil && msg.Role == internal.RoleAssistant:
		fmt.Fprintln(out, renderer.Render(content, 80))
	default:
		fmt.Fprintln(out, content)
	}
	fmt.Fprintln(out)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the last n messages")
	historyCmd.Flags().BoolVar(&historyRemote, "remote", false, "Fetch the thread history from the server")
	historyCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print Markdown as is")
	historyCmd.Flags().StringVar(&historyStyle, "style", "dark", "Markdown style (dark, light, notty, ...)")
}
