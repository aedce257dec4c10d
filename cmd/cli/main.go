package main

import (
	"fmt"
	"os"

	"github.com/crucial707/mydiary/cmd/cli/auth"
	"github.com/crucial707/mydiary/cmd/cli/diaries"
	"github.com/crucial707/mydiary/cmd/cli/root"
	"github.com/crucial707/mydiary/cmd/cli/users"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	diaries.InitDiaries(rootCmd)
	users.InitUsers(rootCmd)

	// Execute the root Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
