package main

import (
	"os"

	"github.com/billm/ipcbench/cmd"
)

func main() {
	// Execute the root command
	cmd.Execute()

	// Ensure clean exit
	os.Exit(0)
}
