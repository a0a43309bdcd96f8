// Package main implements the git2pdf command: an HTTP service and CLI that
// render git repositories into PDF documents.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag shared by every subcommand.
var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "git2pdf",
		Short: "Render git repositories into PDF documents",
		Long: `git2pdf clones a repository, renders every text file into a paginated
PDF and publishes the result in its workspace.

Configuration is read from ~/.config/git2pdf/config.yaml (or --config) and
GIT2PDF_* environment variables.`,
		SilenceUsage: true,
		Version:      version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/git2pdf/config.yaml)")

	root.AddCommand(newServeCmd(), newConvertCmd(), newSweepCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "git2pdf by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
