// Package main provides farectl, the fare engine operator CLI.
package main

import (
	"os"

	"github.com/chauffeurline/fareengine/cmd/farectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
