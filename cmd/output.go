package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/s0up4200/torq/filter"
)

// defaultColumns are shown when --columns is not given.
var defaultColumns = map[filter.Domain][]string{
	filter.DomainTorrent: {"name", "state", "size", "progress", "ratio", "rate-down", "rate-up", "eta"},
	filter.DomainFile:    {"torrent", "path", "size", "progress", "priority"},
	filter.DomainPeer:    {"torrent", "host", "client", "progress", "rate-down", "rate-up"},
	filter.DomainTracker: {"torrent", "domain", "status", "tier", "seeds", "leeches", "message"},
	filter.DomainSetting: {"name", "value", "description"},
}

// column is one table column backed by a comparative filter.
type column struct {
	header string
	key    string
	vt     filter.ValueType
}

// resolveColumns maps filter names or aliases to columns.
func resolveColumns(r *filter.Registry, names []string) ([]column, error) {
	if len(names) == 0 {
		names = defaultColumns[r.Domain]
	}

	cols := make([]column, 0, len(names))
	for _, name := range names {
		spec, ok := r.Lookup(strings.TrimSpace(name))
		if !ok || spec.Boolean() || spec.ValueType == filter.TypeExpression || len(spec.NeededKeys) == 0 {
			return nil, fmt.Errorf("unknown column: %s", name)
		}
		cols = append(cols, column{
			header: strings.ToUpper(spec.Name),
			key:    spec.NeededKeys[0],
			vt:     spec.ValueType,
		})
	}
	return cols, nil
}

func columnKeys(cols []column) filter.KeySet {
	keys := filter.Keys()
	for _, c := range cols {
		keys.Add(c.key)
	}
	return keys
}

// formatCell renders a value for humans. Missing values render as "-".
func formatCell(vt filter.ValueType, v any, ok bool) string {
	if !ok || v == nil {
		return "-"
	}

	switch vt {
	case filter.TypeSize:
		if n, ok := asFloat(v); ok && n >= 0 {
			return humanize.IBytes(uint64(n))
		}
	case filter.TypeRate:
		if n, ok := asFloat(v); ok && n >= 0 {
			if n == 0 {
				return "-"
			}
			return humanize.IBytes(uint64(n)) + "/s"
		}
	case filter.TypePercent:
		if n, ok := asFloat(v); ok {
			return fmt.Sprintf("%.1f%%", n)
		}
	case filter.TypeRatio:
		if n, ok := asFloat(v); ok {
			if math.IsInf(n, 1) {
				return "inf"
			}
			return fmt.Sprintf("%.2f", n)
		}
	case filter.TypeDuration:
		if d, ok := v.(time.Duration); ok {
			return d.Round(time.Second).String()
		}
	case filter.TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			if t.IsZero() {
				return "-"
			}
			return humanize.Time(t)
		}
	}

	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case string:
		return val
	}
	return filter.FormatValue(vt, v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// writeTable prints items as an aligned table.
func writeTable(w io.Writer, cols []column, items []filter.Item) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	row := make([]string, len(cols))
	for _, it := range items {
		for i, c := range cols {
			v, ok := it.Get(c.key)
			row[i] = formatCell(c.vt, v, ok)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// writeYAML prints items as a YAML list keyed by column key.
func writeYAML(w io.Writer, cols []column, items []filter.Item) error {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m := make(map[string]any, len(cols))
		for _, c := range cols {
			v, ok := it.Get(c.key)
			if !ok {
				continue
			}
			m[c.key] = yamlValue(c.vt, v)
		}
		out = append(out, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func yamlValue(vt filter.ValueType, v any) any {
	switch val := v.(type) {
	case string, bool, int64, []string:
		return val
	case float64:
		if math.IsInf(val, 0) {
			return filter.FormatValue(vt, val)
		}
		return val
	}
	return filter.FormatValue(vt, v)
}

// render writes items in the requested format.
func render(w io.Writer, format string, cols []column, items []filter.Item) error {
	switch format {
	case "", "table":
		return writeTable(w, cols, items)
	case "yaml":
		return writeYAML(w, cols, items)
	}
	return fmt.Errorf("unknown output format: %s", format)
}
