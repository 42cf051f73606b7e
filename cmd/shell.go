package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Hellseher/go-shellquote"
	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/pool"
	"github.com/s0up4200/torq/sorter"
)

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive torrent list backed by a live poll",
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// session is the state of one interactive shell.
type session struct {
	out  io.Writer
	pool *pool.Pool
	sub  *pool.Subscription

	mu      sync.Mutex
	matcher filter.Matcher
	sorter  *sorter.Sorter
	columns []column
	items   []filter.Item
	follow  bool
	pending bool
}

func newSession(out io.Writer, p *pool.Pool, cols []column) *session {
	s := &session{
		out:     out,
		pool:    p,
		sorter:  sorter.MustParse(sorter.Torrents, ""),
		columns: cols,
		pending: true,
	}
	if _, spec := cfg.Domain(filter.DomainTorrent); spec != "" {
		if def, err := sorter.Parse(sorter.Torrents, spec); err == nil {
			s.sorter = def
		}
	}
	if expr, _ := cfg.Domain(filter.DomainTorrent); expr != "" {
		if m, err := filter.Torrents.ParseLine(expr); err == nil {
			s.matcher = m
		}
	}
	s.sub = p.Register("shell", s.update, s.keys(), s.matcher)
	return s
}

func (s *session) keys() filter.KeySet {
	return columnKeys(s.columns).Union(s.sorter.NeededKeys())
}

// update receives every poll result and prints it when asked to.
func (s *session) update(items []filter.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items
	if s.follow || s.pending {
		s.pending = false
		s.printLocked()
	}
}

func (s *session) printLocked() {
	if err := writeTable(s.out, s.columns, s.sorter.Apply(s.items)); err != nil {
		fmt.Fprintln(s.out, "Error:", err)
	}
}

// resubscribe pushes the current filter and keys to the pool and requests a
// fresh listing.
func (s *session) resubscribe() error {
	s.mu.Lock()
	keys, m := s.keys(), s.matcher
	s.pending = true
	s.mu.Unlock()

	if err := s.sub.Update(keys, m); err != nil {
		return err
	}
	s.pool.Poll()
	return nil
}

// exec runs one shell line. It returns io.EOF when the shell should exit.
func (s *session) exec(line string) error {
	words, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if len(words) == 0 {
		return nil
	}

	name, args := strings.ToLower(words[0]), words[1:]
	switch name {
	case "help", "?":
		s.printHelp()

	case "list", "ls":
		m, err := filter.Torrents.ParseArgs(args...)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.matcher = m
		s.mu.Unlock()
		return s.resubscribe()

	case "sort":
		return s.sort(args)

	case "interval":
		if len(args) != 1 {
			return errors.New("usage: interval DURATION")
		}
		d, err := filter.ParseDuration(args[0])
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid interval: %s", args[0])
		}
		s.pool.SetInterval(d)
		fmt.Fprintf(s.out, "Poll interval set to %s\n", d)

	case "poll":
		s.mu.Lock()
		s.pending = true
		s.mu.Unlock()
		s.pool.Poll()

	case "follow":
		s.mu.Lock()
		s.follow = len(args) == 0 || args[0] != "off"
		s.mu.Unlock()

	case "quit", "exit", "q":
		return io.EOF

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", name)
	}
	return nil
}

func (s *session) sort(args []string) error {
	mode := ""
	if len(args) > 0 && (args[0] == "--add" || args[0] == "--delete") {
		mode, args = args[0], args[1:]
	}

	next, err := sorter.New(sorter.Torrents, args...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch mode {
	case "--add":
		next, err = s.sorter.Add(next)
	case "--delete":
		next, err = s.sorter.Remove(next)
	}
	if err == nil {
		s.sorter = next
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.resubscribe()
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, `Commands:
  list|ls [FILTER...]        Show torrents matching FILTER (all when empty)
  sort [--add|--delete] SPEC Set, extend or shrink the sort order
  interval DURATION          Change the poll interval
  poll                       Poll now and show the result
  follow [on|off]            Reprint the list after every poll
  help                       Show this help
  quit                       Leave the shell`)
}

func runShell(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return errors.New("shell needs an interactive terminal")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "torq> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	cols, err := resolveColumns(filter.Torrents, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p := pool.New(client.Torrents(), pool.WithInterval(cfg.Poll.Interval), pool.WithLogger(logger.With().Str("component", "pool").Logger()))
	s := newSession(rl.Stdout(), p, cols)
	defer s.sub.Close()

	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	s.printHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}

		if err := s.exec(line); err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(rl.Stdout(), "Exiting...")
				return nil
			}
			fmt.Fprintln(rl.Stdout(), "Error:", err)
		}

		if !p.Running() {
			if err := p.Err(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
