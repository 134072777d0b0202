package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/autoreply/internal/google"
)

func newAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Google consent URL and exit",
		Long: `Print the URL that grants autoreply access to the mailbox.

The URL carries no state parameter, so the consent it starts completes
against a separately running "autoreply serve" using the same credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			auth, err := loadAuthenticator(cfg, google.WithState(""))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.AuthURL())
			return nil
		},
	}
}
