package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/internal/tui"
)

var sendTurn turnFlags

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the reply",
	Long: `Send one message in the current conversation and stream the reply to
stdout. Tool activity is shown as it happens.

Use "-" as the message to read it from stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		if message == "-" {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}
			message = string(raw)
		}
		if strings.TrimSpace(message) == "" {
			return fmt.Errorf("message is empty")
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		session, err := e.newSession(internal.LogNotifier{})
		if err != nil {
			return err
		}
		defer session.Close()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		stopPrinting := tui.PrintStream(session, out)
		input := sendTurn.input()
		input.Message = message
		err = session.SubmitTurn(ctx, input)
		stopPrinting()
		fmt.Fprintln(out)

		if err != nil {
			internal.LogDebug("Turn failed: %v", err)
			return errors.New(internal.UserFacingError(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendTurn.register(sendCmd)
}
