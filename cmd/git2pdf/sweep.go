package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired artifacts and scratch directories",
		Long: `Run the operations and artifacts retention sweeps once against the
resolved workspace. Entries older than workspace.retention are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}
}

func runSweep(ctx context.Context, out io.Writer, path string) error {
	a, err := newApp(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.converter.Sweep(ctx)
	kinds := make([]string, 0, len(results))
	for kind := range results {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		r := results[kind]
		switch {
		case r.Skipped:
			fmt.Fprintf(out, "%s: skipped (another sweep holds the lock)\n", kind)
		default:
			fmt.Fprintf(out, "%s: removed %d, failed %d\n", kind, r.Removed, r.Failed)
		}
	}
	return err
}
