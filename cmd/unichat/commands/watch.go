package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"unichat/internal/domain"
)

// printSink writes controller output to stdout as it happens.
type printSink struct{}

func (printSink) HistoryLoaded(room domain.RoomID, msgs []domain.PlainMessage) {
	for _, m := range msgs {
		printMessage(m)
	}
	fmt.Println("--- live ---")
}

func (printSink) MessageArrived(room domain.RoomID, msg domain.PlainMessage) {
	printMessage(msg)
}

func (printSink) PreviewUpdated(room domain.RoomID, preview string, at time.Time) {
	fmt.Printf("[%s] activity in %s: %s\n", at.Format("15:04"), room, preview)
}

func printMessage(m domain.PlainMessage) {
	name := m.SenderID.String()
	if m.Sender != nil && m.Sender.DisplayName != "" {
		name = m.Sender.DisplayName
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), name, m.Text)
}

// watch <room>: print the room's history, then live messages until interrupted.
func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <room>",
		Short: "Follow a room's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Accounts.Load(passphrase)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl := wire.Controller(cfg, id, printSink{})
			sub, err := wire.Relay.Subscribe(ctx, ctrl.OnRelayEvent)
			if err != nil {
				return err
			}
			defer sub.Close()

			if err := ctrl.OpenRoom(ctx, domain.RoomID(args[0])); err != nil {
				return err
			}
			defer ctrl.CloseRoom()
			if !ctrl.Encrypted() {
				fmt.Println("warning: room has no session key, messages are plaintext")
			}

			<-ctx.Done()
			return nil
		},
	}
}
