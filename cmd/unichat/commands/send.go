package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"unichat/internal/domain"
)

// send <room> <message>: open the room, encrypt and persist one message.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <room> <message>",
		Short: "Send a message to a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Accounts.Load(passphrase)
			if err != nil {
				return err
			}
			ctrl := wire.Controller(cfg, id, nil)
			if err := ctrl.OpenRoom(cmd.Context(), domain.RoomID(args[0])); err != nil {
				return err
			}
			defer ctrl.CloseRoom()
			if !ctrl.Encrypted() {
				fmt.Println("warning: room has no session key, sending in the clear")
			}
			if err := ctrl.Send(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}
