package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-repository directory holding tfdoc configuration and logs.
	DataDirName = ".tfdoc"
	// LogsSubdir is the logs directory inside DataDirName.
	LogsSubdir = "logs"
	// LogFileName is the CLI log file written when file logging is enabled.
	LogFileName = "tfdoc.log"
	// DeclarationFileName is the optional root-module declaration file at the repo root.
	DeclarationFileName = "tfdoc.toml"
)

// GetDataDir returns <repoRoot>/.tfdoc.
func GetDataDir(repoRoot string) string {
	return filepath.Join(repoRoot, DataDirName)
}

// GetLogPath returns <repoRoot>/.tfdoc/logs/tfdoc.log.
func GetLogPath(repoRoot string) string {
	return filepath.Join(repoRoot, DataDirName, LogsSubdir, LogFileName)
}

// EnsureLogsDir creates <repoRoot>/.tfdoc/logs if needed and returns it.
func EnsureLogsDir(repoRoot string) (string, error) {
	dir := filepath.Join(repoRoot, DataDirName, LogsSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// FindRepoRoot walks up from start looking for a directory that holds
// .tfdoc/ or tfdoc.toml. If none is found, the absolute start directory
// is returned.
func FindRepoRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if isDir(filepath.Join(dir, DataDirName)) || isFile(filepath.Join(dir, DeclarationFileName)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// CanonicalizePath converts an absolute path to a repo-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to repo root
// - Returns repo-relative path with forward slashes
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := evalSymlinksIfExists(absolutePath)
	if err != nil {
		return "", err
	}
	rootResolved, err := evalSymlinksIfExists(repoRoot)
	if err != nil {
		return "", err
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(relativePath), nil
}

// IsWithinRepo checks if a path is within the repository root
func IsWithinRepo(path string, repoRoot string) bool {
	canonical, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts OS separators to forward slashes
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// ResolveAgainst returns path unchanged when absolute, otherwise joined onto base.
// The result is cleaned.
func ResolveAgainst(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, filepath.FromSlash(path))
}

func evalSymlinksIfExists(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		return "", err
	}
	return resolved, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
