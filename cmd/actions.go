package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/qbittorrent"
)

// actionFunc applies an action to a set of torrent hashes.
type actionFunc func(ctx context.Context, hashes []string) error

// newActionCmd builds a command applying fn to the torrents matched by its
// filter arguments.
func newActionCmd(use, short, verb string, fn func() actionFunc, extra func(*cobra.Command)) *cobra.Command {
	var (
		dryRun bool
		preset string
	)

	cmd := &cobra.Command{
		Use:   use + " FILTER...",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && preset == "" {
				return fmt.Errorf("%s needs a filter; use \"all\" to select every torrent", use)
			}

			expr, err := getFilterExpression(filter.DomainTorrent, args, preset)
			if err != nil {
				return err
			}
			m, err := filter.Torrents.ParseLine(expr)
			if err != nil {
				return fmt.Errorf("invalid filter expression: %w", err)
			}

			items, err := client.Select(cmd.Context(), m)
			if err != nil {
				return err
			}

			return runAction(cmd.Context(), cmd.OutOrStdout(), verb, items, dryRun, fn())
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "show the matching torrents without changing them")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
	if extra != nil {
		extra(cmd)
	}
	return cmd
}

func runAction(ctx context.Context, w io.Writer, verb string, items []filter.Item, dryRun bool, fn actionFunc) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No torrents found matching the filter criteria.")
		return nil
	}

	for _, it := range items {
		name, _ := it.Get("name")
		fmt.Fprintf(w, "• %v\n", name)
	}

	if dryRun {
		fmt.Fprintf(w, "\n[DRY RUN] Would %s %d torrent(s)\n", verb, len(items))
		return nil
	}

	if err := fn(ctx, qbittorrent.Hashes(items)); err != nil {
		return err
	}

	logger.Info().Str("action", verb).Int("count", len(items)).Msg("Done")
	fmt.Fprintf(w, "\n✓ %s: %d torrent(s)\n", verb, len(items))
	return nil
}

func init() {
	var deleteFiles bool

	rootCmd.AddCommand(
		newActionCmd("stop", "Stop torrents matching the filter", "stop",
			func() actionFunc { return client.Stop }, nil),
		newActionCmd("start", "Start torrents matching the filter", "start",
			func() actionFunc { return client.Start }, nil),
		newActionCmd("verify", "Recheck the data of torrents matching the filter", "verify",
			func() actionFunc { return client.Verify }, nil),
		newActionCmd("announce", "Reannounce torrents matching the filter", "announce",
			func() actionFunc { return client.Announce }, nil),
		newActionCmd("remove", "Remove torrents matching the filter", "remove",
			func() actionFunc {
				return func(ctx context.Context, hashes []string) error {
					return client.Remove(ctx, hashes, deleteFiles)
				}
			},
			func(cmd *cobra.Command) {
				cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "also delete downloaded data from disk")
			}),
	)
}
