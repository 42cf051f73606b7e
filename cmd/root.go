package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/s0up4200/torq/config"
	"github.com/s0up4200/torq/qbittorrent"
)

// offlineAnnotation marks commands that run without a daemon connection.
const offlineAnnotation = "offline"

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	client  *qbittorrent.Client
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "torq",
	Short: "Query, watch and act on the torrents of a qBittorrent daemon",
	Long: `torq lists torrents, files, peers, trackers and settings of a
qBittorrent daemon using a small filter language, keeps those lists live in
watch mode or an interactive shell, and applies bulk actions to filtered
selections.

Filters are NAME[OP VALUE] terms joined by & (and) or | (or). Run
"torq help-filter" for the available filters.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, ~/.torq/config.yaml or /etc/torq/config.yaml)")
}

// initializeApp loads the configuration, sets up logging and connects to
// the daemon unless the command is marked offline.
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err = setupLogger(cfg.Logging)
	if err != nil {
		return err
	}

	if cmd.Annotations[offlineAnnotation] != "" {
		return nil
	}

	opts := []qbittorrent.Option{
		qbittorrent.WithTimeout(cfg.QBittorrent.Timeout),
		qbittorrent.WithConcurrency(cfg.Poll.Concurrency),
	}
	if cfg.QBittorrent.BasicUser != "" {
		opts = append(opts, qbittorrent.WithBasicAuth(cfg.QBittorrent.BasicUser, cfg.QBittorrent.BasicPass))
	}
	if cfg.QBittorrent.TLSSkipVerify {
		opts = append(opts, qbittorrent.WithInsecureSkipVerify())
	}

	client, err = qbittorrent.NewClient(cmd.Context(), cfg.QBittorrent.URL, cfg.QBittorrent.Username, cfg.QBittorrent.Password, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
		}
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create log directory: %w", err)
		}
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		})
	}

	return zerolog.New(out).With().Timestamp().Logger(), nil
}
