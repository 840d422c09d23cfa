package main

import (
	"fmt"
	"os"

	"seidash/internal/rpcclient"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", displayError(err))
		os.Exit(1)
	}
}

// displayError prefers the short user-facing message of client errors
func displayError(err error) string {
	if rpcclient.KindOf(err) != "" {
		return rpcclient.UserMessage(err)
	}
	return err.Error()
}
