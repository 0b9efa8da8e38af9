package cmd

import (
	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start a new conversation",
	Long: `Tell the server to start a new conversation and forget the local
continuation of the current one. Stored transcripts are kept and the
guest identity survives.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		ctx := commandContext(cmd)
		if err := internal.ShowProgress(ctx, "Starting a new conversation", func() error {
			return session.ResetSession(ctx)
		}); err != nil {
			return err
		}
		internal.PrintSuccess("New conversation started")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
