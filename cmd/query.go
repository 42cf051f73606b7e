package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/pool"
	"github.com/s0up4200/torq/sorter"
)

// queryFlags are shared by every command that lists items.
type queryFlags struct {
	preset   string
	sort     string
	torrents string
	columns  []string
	output   string
}

func (q *queryFlags) register(cmd *cobra.Command, domain filter.Domain) {
	cmd.Flags().StringVarP(&q.sort, "sort", "s", "", "sort order, e.g. \"!ratio,name\"")
	cmd.Flags().StringSliceVarP(&q.columns, "columns", "c", nil, "columns to show (filter names)")
	cmd.Flags().StringVarP(&q.output, "output", "o", "table", "output format: table or yaml")
	if domain == filter.DomainTorrent {
		cmd.Flags().StringVarP(&q.preset, "preset", "p", "", "use a preset filter from config")
	} else {
		cmd.Flags().StringVarP(&q.torrents, "torrents", "t", "", "filter selecting the torrents whose items are listed")
	}
}

// query is a parsed listing request.
type query struct {
	domain  filter.Domain
	matcher filter.Matcher
	sorter  *sorter.Sorter
	columns []column
	owners  filter.Matcher
}

// keys returns every key the query needs from the backend.
func (q *query) keys() filter.KeySet {
	keys := columnKeys(q.columns).Union(q.sorter.NeededKeys())
	if q.matcher != nil {
		keys = keys.Union(q.matcher.NeededKeys())
	}
	return keys
}

func (q *query) fetcher() (pool.Fetcher, error) {
	switch q.domain {
	case filter.DomainFile:
		return client.Files(q.owners), nil
	case filter.DomainPeer:
		return client.PeerList(q.owners), nil
	case filter.DomainTracker:
		return client.Trackers(q.owners), nil
	}
	return client.Fetcher(q.domain)
}

// getFilterExpression determines the filter expression to use
func getFilterExpression(domain filter.Domain, args []string, preset string) (string, error) {
	// Priority: command line filter > preset > default
	if len(args) > 0 {
		return strings.Join(quoteArgs(args), " "), nil
	}

	if preset != "" {
		if cfg.Presets != nil {
			if expr, ok := cfg.Presets.Expression(preset); ok {
				return expr, nil
			}
			if names := cfg.Presets.Names(); len(names) > 0 {
				return "", fmt.Errorf("preset '%s' not found in config (available: %s)", preset, strings.Join(names, ", "))
			}
		}
		return "", fmt.Errorf("preset '%s' not found in config", preset)
	}

	expr, _ := cfg.Domain(domain)
	return expr, nil
}

// quoteArgs protects shell-split arguments from being split again.
func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t'\"\\") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		out[i] = a
	}
	return out
}

func buildQuery(domain filter.Domain, args []string, q *queryFlags) (*query, error) {
	fr, ok := filter.ForDomain(domain)
	if !ok {
		return nil, fmt.Errorf("unknown domain: %s", domain)
	}
	sr, ok := sorter.ForDomain(domain)
	if !ok {
		return nil, fmt.Errorf("unknown domain: %s", domain)
	}

	expr, err := getFilterExpression(domain, args, q.preset)
	if err != nil {
		return nil, err
	}
	m, err := fr.ParseLine(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	sortSpec := q.sort
	if sortSpec == "" {
		_, sortSpec = cfg.Domain(domain)
	}
	s, err := sorter.Parse(sr, sortSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid sort order: %w", err)
	}

	cols, err := resolveColumns(fr, q.columns)
	if err != nil {
		return nil, err
	}

	var owners filter.Matcher
	if q.torrents != "" {
		owners, err = filter.Torrents.ParseLine(q.torrents)
		if err != nil {
			return nil, fmt.Errorf("invalid torrent filter: %w", err)
		}
	}

	return &query{domain: domain, matcher: m, sorter: s, columns: cols, owners: owners}, nil
}

// newListCmd builds a one-shot listing command for a domain.
func newListCmd(domain filter.Domain, use string, aliases []string, short string) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:     use + " [FILTER...]",
		Aliases: aliases,
		Short:   short,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(domain, args, &flags)
			if err != nil {
				return err
			}

			f, err := q.fetcher()
			if err != nil {
				return err
			}

			logger.Debug().Str("domain", string(domain)).Str("filter", matcherString(q.matcher)).Str("sort", q.sorter.String()).Msg("Listing")

			res, err := f.Fetch(cmd.Context(), q.matcher, q.keys())
			if err != nil {
				return err
			}
			for _, msg := range res.Messages {
				logger.Warn().Msg(msg)
			}

			items := q.sorter.Apply(res.Items)
			return render(cmd.OutOrStdout(), flags.output, q.columns, items)
		},
	}
	flags.register(cmd, domain)
	return cmd
}

func matcherString(m filter.Matcher) string {
	if m == nil {
		return "all"
	}
	return m.String()
}

func init() {
	rootCmd.AddCommand(
		newListCmd(filter.DomainTorrent, "list", []string{"ls"}, "List torrents matching the filter"),
		newListCmd(filter.DomainFile, "files", []string{"lsf"}, "List files of torrents"),
		newListCmd(filter.DomainPeer, "peers", []string{"lsp"}, "List connected peers of torrents"),
		newListCmd(filter.DomainTracker, "trackers", []string{"lst"}, "List trackers of torrents"),
		newListCmd(filter.DomainSetting, "settings", []string{"prefs"}, "List daemon settings"),
	)
}
