package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
)

var guestForget bool

var guestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Show or forget the guest identity",
	Long: `Show the guest id used for guest chats.

With --forget the guest id and the guest conversation continuation are
removed; the next guest turn starts over with a new identity.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if guestForget {
			if err := e.store.ForgetGuestID(); err != nil {
				return err
			}
			if err := e.store.SetContinuationKeys(internal.ModeGuest, internal.ContinuationKeys{}); err != nil {
				return err
			}
			internal.PrintSuccess("Guest identity forgotten")
			return nil
		}

		id, err := e.store.GuestID()
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No guest id yet; one is assigned on the first guest chat.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(guestCmd)
	guestCmd.Flags().BoolVar(&guestForget, "forget", false, "Forget the guest id and the guest conversation")
}
