package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// publish re-uploads the stored public key, e.g. after pointing the CLI at a
// fresh relay.
func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish your public key to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := wire.Accounts.Publish(cmd.Context(), passphrase); err != nil {
				return err
			}
			fmt.Println("published")
			return nil
		},
	}
}
