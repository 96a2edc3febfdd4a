package main

import (
	"os"

	"chatcore/cmd/chatcore/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
