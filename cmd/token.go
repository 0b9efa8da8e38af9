package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iksnae/chef-chat/internal"
)

var (
	tokenRefresh string
	tokenUserID  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored access credential",
	Long: `Manage the access credential used for authenticated chats.

With a stored access token every turn is sent as the signed in user and
threads on the server side thread id. Without one the client chats as a
guest.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <access-token>",
	Short: "Store an access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		access := strings.TrimSpace(args[0])
		if access == "" {
			return fmt.Errorf("access token is empty")
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.SetCredentials(internal.Credentials{
			AccessToken:  access,
			RefreshToken: strings.TrimSpace(tokenRefresh),
			UserID:       strings.TrimSpace(tokenUserID),
		}); err != nil {
			return err
		}
		internal.PrintSuccess("Access token stored, chats now use your account")
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored credentials and chat as a guest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.ClearCredentials(); err != nil {
			return err
		}
		internal.PrintSuccess("Credentials removed, chats now run as a guest")
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which identity chats use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		creds, err := e.store.Credentials()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if creds.AccessToken == "" {
			fmt.Fprintln(out, "Mode: guest")
			return nil
		}
		fmt.Fprintln(out, "Mode: authenticated")
		fmt.Fprintf(out, "Access token: %s\n", maskToken(creds.AccessToken))
		fmt.Fprintf(out, "Refresh token: %t\n", creds.RefreshToken != "")
		if creds.UserID != "" {
			fmt.Fprintf(out, "User: %s\n", creds.UserID)
		}
		return nil
	},
}

// maskToken keeps the last four characters of a secret
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd, tokenClearCmd, tokenStatusCmd)
	tokenSetCmd.Flags().StringVar(&tokenRefresh, "refresh", "", "Refresh token used to renew the access token")
	tokenSetCmd.Flags().StringVar(&tokenUserID, "user-id", "", "User id sent with authenticated turns")
}
