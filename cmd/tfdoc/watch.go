package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tfdoc/internal/storage"
	"tfdoc/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		save        bool
		catalogPath string
		poll        bool
		interval    time.Duration
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever a Terraform file changes",
		Long: `Run a build, then watch the repository for changed .tf files and
tfdoc.toml declarations and rebuild after every batch of changes. Changes
come from filesystem notifications; --poll compares directory snapshots
instead, for filesystems without notification support.

Every rebuild is a fresh build; nothing is carried over from the previous
one. With --save or --catalog each successful rebuild replaces the catalog.

Examples:
  tfdoc watch
  tfdoc watch --save
  tfdoc watch --poll --interval=2s`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := ""
			if save || catalogPath != "" {
				path = storage.DefaultPath(env.repoRoot)
				if catalogPath != "" {
					path = env.abs(catalogPath)
				}
			}

			rebuild := func(ctx context.Context, events []watcher.Event) {
				if err := watchBuild(ctx, cmd, env, path); err != nil {
					env.logger.Error("Rebuild failed", "error", err.Error(), "changes", len(events))
				}
			}
			rebuild(ctx, nil)

			cfg := watcher.DefaultConfig()
			cfg.Poll = poll
			cfg.PollInterval = interval
			cfg.Debounce = debounce
			cfg.Ignore = env.cfg.Modules.Ignore
			return watcher.New(cfg, []string{env.repoRoot}, env.logger, rebuild).Watch(ctx)
		}),
	}

	cmd.Flags().BoolVar(&save, "save", false, "Save every rebuild to the catalog in .tfdoc/catalog.db")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Save every rebuild to this catalog file")
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll for changes instead of using filesystem notifications")
	cmd.Flags().DurationVar(&interval, "interval", watcher.DefaultConfig().PollInterval, "Polling interval with --poll")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultConfig().Debounce, "Quiet period before rebuilding")
	return cmd
}

// watchBuild runs one build and prints its report. Failed builds are
// reported but never saved over the catalog.
func watchBuild(ctx context.Context, cmd *cobra.Command, env *cliEnv, catalog string) error {
	res, err := env.build(ctx)
	if err != nil {
		return err
	}
	resp := convertBuildReport(res.Report())
	if catalog != "" && !res.Failed() {
		db, err := storage.Open(catalog, env.logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveBuild(ctx, res); err != nil {
			return err
		}
		resp.Catalog = env.rel(catalog)
	}
	return env.print(cmd, resp)
}
