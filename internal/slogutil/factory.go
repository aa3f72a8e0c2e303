package slogutil

import (
	"io"
	"log/slog"
	"os"

	"tfdoc/internal/config"
	"tfdoc/internal/paths"
)

// LoggerFactory creates the CLI logger and its optional file sink.
// Level precedence: CLI flags > config logging.level > default (warn).
type LoggerFactory struct {
	repoRoot string
	config   *config.Config
	cliLevel slog.Level
	cliSet   bool
	stderr   io.Writer
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory.
// cliSet reports whether -v or -q was given on the command line.
func NewLoggerFactory(repoRoot string, cfg *config.Config, cliLevel slog.Level, cliSet bool) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		repoRoot: repoRoot,
		config:   cfg,
		cliLevel: cliLevel,
		cliSet:   cliSet,
		stderr:   os.Stderr,
	}
}

// SetOutput redirects the console sink, mainly for tests.
func (f *LoggerFactory) SetOutput(w io.Writer) {
	f.stderr = w
}

// CLILogger returns a logger writing to stderr, teed into
// <repoRoot>/.tfdoc/logs/tfdoc.log when logging.file is enabled.
// File sink failures degrade to console-only logging.
func (f *LoggerFactory) CLILogger() *slog.Logger {
	level := f.EffectiveLevel()
	console := NewHandler(f.stderr, &slog.HandlerOptions{Level: level})

	if !f.config.Logging.File || f.repoRoot == "" {
		return slog.New(console)
	}
	if _, err := paths.EnsureLogsDir(f.repoRoot); err != nil {
		return slog.New(console)
	}

	file, err := os.OpenFile(paths.GetLogPath(f.repoRoot), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, file)

	// The file always records at least info so -q does not blank it
	fileLevel := level
	if fileLevel > slog.LevelInfo {
		fileLevel = slog.LevelInfo
	}
	return slog.New(NewTeeHandler(console, NewHandler(file, &slog.HandlerOptions{Level: fileLevel})))
}

// EffectiveLevel returns the console log level.
func (f *LoggerFactory) EffectiveLevel() slog.Level {
	if f.cliSet {
		return f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelWarn
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
