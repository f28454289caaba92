package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"unichat/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string
	verbose    bool

	cfg  app.Config
	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "unichat",
		Short: "End-to-end encrypted chat CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".unichat")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			log := zerolog.Nop()
			if verbose {
				log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
					With().Timestamp().Logger().Level(zerolog.DebugLevel)
			}
			cfg = app.Config{Home: home, RelayURL: relayURL, Log: log}

			var err error
			wire, err = app.NewWire(cfg)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.unichat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity file")
	root.PersistentFlags().StringVar(&relayURL, "relay", "http://127.0.0.1:8080", "relay base URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log wire activity to stderr")

	root.AddCommand(initCmd(), fingerprintCmd(), publishCmd(), roomsCmd(), startCmd(), sendCmd(), watchCmd())
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
