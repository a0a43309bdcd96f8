package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/git2pdf/internal/converter"
)

func newConvertCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "convert <repository-url>",
		Short: "Convert one repository and print the artifact path",
		Long: `Clone a repository, render it to PDF and print the published path.

Examples:
  # Convert a public GitHub repository
  git2pdf convert https://github.com/go-git/go-git

  # Print the full result as JSON
  git2pdf convert --json https://github.com/go-git/go-git`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runConvert(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), configPath, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runConvert(ctx context.Context, stdout, stderr io.Writer, path, rawURL string, asJSON bool) error {
	a, err := newApp(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.converter.Convert(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("%s: %w", converter.Kind(err), err)
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(stdout, res.Path)
	fmt.Fprintf(stderr, "%s: %d pages, %d files, %s in %s\n",
		res.Repository, res.Pages, res.FilesIncluded,
		humanize.IBytes(uint64(res.SizeBytes)), res.Duration.Round(time.Millisecond))
	if n := len(res.SkippedBySize) + len(res.SkippedByType); n > 0 {
		fmt.Fprintf(stderr, "skipped %d files (%d by size, %d by type)\n",
			n, len(res.SkippedBySize), len(res.SkippedByType))
	}
	return nil
}
