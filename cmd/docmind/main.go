package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor    bool
	tokenFlag  string
	serverFlag string
)

var rootCmd = &cobra.Command{
	Use:           "docmind",
	Short:         "Shared documents with AI summaries, tags and semantic search",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token for API commands (default $DOCMIND_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "server base URL (default http://127.0.0.1:<server.port>)")

	rootCmd.AddCommand(serveCmd, mcpCmd, statusCmd)
	rootCmd.AddCommand(docCmd, searchCmd, askCmd, activityCmd)
	rootCmd.AddCommand(userCmd, tokenCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
