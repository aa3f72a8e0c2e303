package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tfdoc/internal/build"
	"tfdoc/internal/config"
	"tfdoc/internal/paths"
	"tfdoc/internal/slogutil"
)

// cliEnv is what every command needs: the repository root, the effective
// configuration and a logger.
type cliEnv struct {
	repoRoot string
	cfg      *config.Config
	logger   *slog.Logger
	format   OutputFormat
	factory  *slogutil.LoggerFactory
}

// newEnv resolves the repository root from --dir or the working
// directory, loads the configuration and creates the CLI logger.
func newEnv(cmd *cobra.Command, opts *rootOptions) (*cliEnv, error) {
	format, err := ParseOutputFormat(opts.format)
	if err != nil {
		return nil, err
	}

	start := opts.dir
	if start == "" {
		if start, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	repoRoot, err := paths.FindRepoRoot(start)
	if err != nil {
		return nil, fmt.Errorf("failed to find repository root: %w", err)
	}

	configPath := opts.configPath
	if configPath != "" && !filepath.IsAbs(configPath) {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadConfigFromPath(repoRoot, configPath)
	if err != nil {
		return nil, err
	}

	cliSet := opts.verbosity > 0 || opts.quiet
	factory := slogutil.NewLoggerFactory(repoRoot, cfg, slogutil.LevelFromVerbosity(opts.verbosity, opts.quiet), cliSet)
	factory.SetOutput(cmd.ErrOrStderr())

	return &cliEnv{
		repoRoot: repoRoot,
		cfg:      cfg,
		logger:   factory.CLILogger(),
		format:   format,
		factory:  factory,
	}, nil
}

// Close releases log files.
func (e *cliEnv) Close() error {
	return e.factory.Close()
}

// build runs a full two-phase build.
func (e *cliEnv) build(ctx context.Context) (*build.Result, error) {
	return build.New(e.cfg, e.logger).Run(ctx)
}

// rel shortens path for display relative to the repository root.
func (e *cliEnv) rel(path string) string {
	if r, err := filepath.Rel(e.repoRoot, path); err == nil && filepath.IsLocal(r) {
		return filepath.ToSlash(r)
	}
	return path
}

// abs resolves a user-supplied path against the repository root.
func (e *cliEnv) abs(path string) string {
	return paths.ResolveAgainst(e.repoRoot, path)
}

// print formats resp and writes it to the command's output.
func (e *cliEnv) print(cmd *cobra.Command, resp any) error {
	out, err := FormatResponse(resp, e.format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// withEnv wraps a command body with environment setup and teardown.
func withEnv(opts *rootOptions, fn func(cmd *cobra.Command, args []string, env *cliEnv) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd, opts)
		if err != nil {
			return err
		}
		defer env.Close()
		return fn(cmd, args, env)
	}
}
