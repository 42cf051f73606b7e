package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torq/config"
	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/pool"
)

var (
	watchFlags    queryFlags
	watchDomain   string
	watchInterval time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [FILTER...]",
	Short: "Keep a filtered list on screen, refreshed every poll interval",
	Long: `Poll the daemon and redraw the matching items after every cycle.

The poll interval comes from poll.interval in the config file, and edits to
the config file while watching apply the new interval immediately.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchDomain, "domain", string(filter.DomainTorrent), "item domain: torrent, file, peer, tracker or setting")
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 0, "poll interval (overrides poll.interval)")
	watchCmd.Flags().StringVarP(&watchFlags.sort, "sort", "s", "", "sort order")
	watchCmd.Flags().StringSliceVarP(&watchFlags.columns, "columns", "c", nil, "columns to show (filter names)")
	watchCmd.Flags().StringVarP(&watchFlags.preset, "preset", "p", "", "use a preset filter from config")
	watchCmd.Flags().StringVarP(&watchFlags.torrents, "torrents", "t", "", "torrent filter for file, peer and tracker domains")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	domain := filter.Domain(watchDomain)

	q, err := buildQuery(domain, args, &watchFlags)
	if err != nil {
		return err
	}
	f, err := q.fetcher()
	if err != nil {
		return err
	}

	interval := cfg.Poll.Interval
	if watchInterval > 0 {
		interval = watchInterval
	}

	p := pool.New(f, pool.WithInterval(interval), pool.WithLogger(logger.With().Str("component", "pool").Logger()))

	out := cmd.OutOrStdout()
	sub := p.Register("watch", func(items []filter.Item) {
		redraw(out, q, items)
	}, q.keys(), q.matcher)
	defer sub.Close()

	if err := config.Watch(cfg, logger, func(next *config.Config) {
		if watchInterval > 0 {
			return
		}
		if next.Poll.Interval != p.Interval() {
			logger.Info().Dur("interval", next.Poll.Interval).Msg("Applying new poll interval")
			p.SetInterval(next.Poll.Interval)
		}
	}); err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		logger.Warn().Err(err).Msg("Config reload disabled")
	}

	if err := p.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-p.Done():
	}
	return p.Stop()
}

// redraw clears the terminal and prints the current items.
func redraw(w io.Writer, q *query, items []filter.Item) {
	fmt.Fprint(w, "\033[H\033[2J")
	fmt.Fprintf(w, "%s  filter: %s  sort: %s\n\n", time.Now().Format(time.TimeOnly), matcherString(q.matcher), q.sorter.String())
	if err := writeTable(w, q.columns, q.sorter.Apply(items)); err != nil {
		logger.Error().Err(err).Msg("Failed to render table")
	}
}
