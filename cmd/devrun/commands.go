package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/filosign-dapp/devrun/internal/config"
	"github.com/filosign-dapp/devrun/internal/console"
	"github.com/filosign-dapp/devrun/internal/logger"
	"github.com/filosign-dapp/devrun/internal/metrics"
	"github.com/filosign-dapp/devrun/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// buildRoot creates the root command, which runs a session, and its
// subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}

	root := createRootCommand(globalFlags, runFlags)
	root.AddCommand(createConfigCommand(globalFlags))
	return root
}

func createRootCommand(g *GlobalFlags, r *RunFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "devrun",
		Short: "Run the client and server of a project and restart them on source changes",
		Long: `devrun starts the client build and the API server of a project, prefixes
their output with [CLIENT] and [SERVER], and restarts both when a watched
source file changes. It stops both when either exits or on Ctrl+C.

Examples:
  devrun
  devrun --no-watch
  devrun --root ./app --server-cmd "bun run server:dev"
  devrun --metrics-listen 127.0.0.1:9464`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, g, r)
		},
	}

	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "path to TOML config file (default <root>/devrun.toml if present)")
	root.PersistentFlags().StringVar(&g.Root, "root", ".", "project root containing the marker file")
	root.PersistentFlags().StringVar(&g.LogLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.Flags().BoolVar(&r.NoWatch, "no-watch", false, "do not watch files for changes")
	root.Flags().BoolVarP(&r.Yes, "yes", "y", false, "continue without file watching when it is unavailable, without asking")
	root.Flags().StringVar(&r.ClientCmd, "client-cmd", "", "client command (default \"bun run client:dev\")")
	root.Flags().StringVar(&r.ServerCmd, "server-cmd", "", "server command (default \"bun run server:start\")")
	root.Flags().StringVar(&r.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	return root
}

func createConfigCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration devrun would run with, after defaults, the config
file, DEVRUN_* environment variables and flags, followed by which watch
paths exist under the root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.ConfigPath, overrides(cmd, g, nil))
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func runSession(cmd *cobra.Command, g *GlobalFlags, r *RunFlags) error {
	cfg, err := config.Load(g.ConfigPath, overrides(cmd, g, r))
	if err != nil {
		return err
	}

	log, closer := logger.New(cfg.Log, cmd.ErrOrStderr())
	defer func() { _ = closer.Close() }()
	slog.SetDefault(log)
	if cfg.File != "" {
		log.Debug("config loaded", "file", cfg.File)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				log.Error("metrics server", "addr", cfg.Metrics.Listen, "err", err)
			}
		}()
		log.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	c := session.New(cfg, session.Options{
		NoWatch:   r.NoWatch,
		AssumeYes: r.Yes,
		In:        cmd.InOrStdin(),
	}, console.New(cmd.OutOrStdout()), log)
	return c.Run(ctx)
}

func printConfig(w io.Writer, cfg *config.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "watch paths:")
	for _, p := range cfg.Watch.Paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(cfg.Root, p)
		}
		status := "missing"
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			status = "ok"
		}
		_, _ = fmt.Fprintf(w, "  %-7s %s\n", status, p)
	}
	return nil
}
