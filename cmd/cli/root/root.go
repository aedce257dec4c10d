package root

import (
	"github.com/spf13/cobra"
)

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:           "mydiary",
	Short:         "MyDiary CLI",
	Long:          "Command line interface for writing and managing entries in MyDiary.\nThe API base URL is read from MYDIARY_API_URL (default http://localhost:8080).",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetRoot returns the RootCmd
func GetRoot() *cobra.Command {
	return RootCmd
}
