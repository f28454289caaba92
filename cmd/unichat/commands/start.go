package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"unichat/internal/domain"
)

// start <peer>: create a two-party encrypted room with <peer>.
func startCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "start <peer>",
		Short: "Start an encrypted chat with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Accounts.Load(passphrase)
			if err != nil {
				return err
			}
			peer := domain.UserID(args[0])
			if name == "" {
				name = fmt.Sprintf("%s & %s", id.UserID, peer)
			}
			room, err := wire.Rooms.Establish(cmd.Context(), id, peer, name)
			if err != nil {
				return err
			}
			fmt.Printf("room %s established with %s\n", room, peer)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "room name (defaults to the participant pair)")
	return cmd
}
