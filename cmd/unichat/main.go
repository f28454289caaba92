package main

import (
	"os"

	"unichat/cmd/unichat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
