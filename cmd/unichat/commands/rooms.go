package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"unichat/internal/chat"
)

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List your rooms, newest activity first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Accounts.Load(passphrase)
			if err != nil {
				return err
			}
			rooms, err := wire.Records.Rooms(cmd.Context(), id.UserID)
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Println("no rooms")
				return nil
			}
			for _, r := range rooms {
				// Previews are shown from the stored row only; ciphertext is
				// redacted, never decrypted for a listing.
				preview := chat.PreviewText(r.LastMessage, r.LastMessageIV)
				if preview == "" {
					preview = "(no messages)"
				}
				fmt.Printf("%s  %-20s  %s\n", r.ID, r.Name, preview)
			}
			return nil
		},
	}
}
