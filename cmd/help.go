package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/sorter"
)

var domainNames = []string{"torrent", "file", "peer", "tracker", "setting"}

// helpFilterCmd represents the help-filter command
var helpFilterCmd = &cobra.Command{
	Use:       "help-filter [DOMAIN]",
	Short:     "Describe the filters of an item domain",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: domainNames,
	Annotations: map[string]string{
		offlineAnnotation: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		r, ok := filter.ForDomain(domainArg(args))
		if !ok {
			return fmt.Errorf("unknown domain: %s (one of %s)", args[0], strings.Join(domainNames, ", "))
		}
		return writeFilterHelp(cmd.OutOrStdout(), r)
	},
}

// helpSortCmd represents the help-sort command
var helpSortCmd = &cobra.Command{
	Use:       "help-sort [DOMAIN]",
	Short:     "Describe the sort orders of an item domain",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: domainNames,
	Annotations: map[string]string{
		offlineAnnotation: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		r, ok := sorter.ForDomain(domainArg(args))
		if !ok {
			return fmt.Errorf("unknown domain: %s (one of %s)", args[0], strings.Join(domainNames, ", "))
		}
		return writeSortHelp(cmd.OutOrStdout(), r)
	},
}

func init() {
	rootCmd.AddCommand(helpFilterCmd, helpSortCmd)
}

func domainArg(args []string) filter.Domain {
	if len(args) == 0 {
		return filter.DomainTorrent
	}
	return filter.Domain(strings.ToLower(args[0]))
}

func names(name string, aliases []string) string {
	return strings.Join(append([]string{name}, aliases...), ", ")
}

func writeFilterHelp(w io.Writer, r *filter.Registry) error {
	fmt.Fprintf(w, `Filter syntax: [!]NAME[[!]OP VALUE]
  Operators: = (equal), ~ (contains), >, <, >=, <=
  Prefix NAME or OP with ! to invert. A bare word matches %s~WORD.
  Join filters with & (and) or | (or); & binds tighter.
  Strings match case-insensitively unless VALUE has an uppercase letter.

`, r.DefaultFilter)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "BOOLEAN FILTERS\t\t")
	for _, s := range r.BooleanSpecs() {
		fmt.Fprintf(tw, "  %s\t%s\t\n", names(s.Name, s.Aliases), s.Description)
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "COMPARATIVE FILTERS\tTYPE\t")
	for _, s := range r.ComparativeSpecs() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", names(s.Name, s.Aliases), s.ValueType, s.Description)
	}

	return tw.Flush()
}

func writeSortHelp(w io.Writer, r *sorter.Registry) error {
	fmt.Fprintf(w, `Sort syntax: [!]NAME[,[!]NAME...]
  The first name sorts first. Prefix a name with ! or . to reverse it.
  Ties always fall back to %s.

`, r.DefaultSort)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range r.Specs() {
		fmt.Fprintf(tw, "  %s\t%s\n", names(s.Name, s.Aliases), s.Description)
	}
	return tw.Flush()
}
