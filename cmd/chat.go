package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/internal/tui"
)

// turnFlags are the optional context fields sent with every turn
type turnFlags struct {
	chef   string
	topic  string
	mealID string
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.chef, "chef", "", "Chef username the conversation is about")
	cmd.Flags().StringVar(&f.topic, "topic", "", "Conversation topic hint")
	cmd.Flags().StringVar(&f.mealID, "meal-id", "", "Meal the conversation is about")
}

func (f *turnFlags) input() internal.TurnInput {
	return internal.TurnInput{ChefUsername: f.chef, Topic: f.topic, MealID: f.mealID}
}

var (
	chatTurn  turnFlags
	chatPlain bool
	chatStyle string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with the assistant.

The previous conversation is restored and continued. Keys:
  enter    send
  esc      stop the reply being written
  ctrl+n   start a new chat
  ctrl+c   quit

When stdin or stdout is not a terminal, or with --plain, a line based chat
is used instead; type /new for a new chat and /quit to exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		if chatPlain || !internal.IsTerminal() || !stdinIsTerminal(cmd) {
			session, err := e.newSession(internal.TerminalNotifier{})
			if err != nil {
				return err
			}
			defer session.Close()
			return tui.RunPlain(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout(), chatTurn.input())
		}

		notices := tui.NewChannelNotifier()
		session, err := e.newSession(notices)
		if err != nil {
			return err
		}
		defer session.Close()

		var logOutput io.Writer
		if f, err := os.OpenFile(e.paths.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600); err != nil {
			internal.LogDebug("Chat log disabled: %v", err)
		} else {
			defer f.Close()
			logOutput = f
		}
		return tui.Run(ctx, tui.Options{
			Session:   session,
			Notices:   notices,
			Base:      chatTurn.input(),
			Style:     chatStyle,
			AltScreen: true,
			LogOutput: logOutput,
		})
	},
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatTurn.register(chatCmd)
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Use the line based chat even on a terminal")
	chatCmd.Flags().StringVar(&chatStyle, "style", "dark", "Markdown style for replies (dark, light, notty, ...)")
}
