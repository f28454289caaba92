package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"unichat/internal/domain"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <user>",
		Short: "Generate identity keys, store them securely and publish the public half",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Accounts.Setup(cmd.Context(), passphrase, domain.UserID(args[0]))
			if err != nil {
				return err
			}
			fp, err := wire.Accounts.Fingerprint(passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created for %s.\nFingerprint: %s\n", id.UserID, fp)
			return nil
		},
	}
}
