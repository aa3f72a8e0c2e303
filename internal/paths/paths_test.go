package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetLogPath(t *testing.T) {
	got := GetLogPath("/repo")
	want := filepath.Join("/repo", ".tfdoc", "logs", "tfdoc.log")
	if got != want {
		t.Errorf("GetLogPath = %s, want %s", got, want)
	}
}

func TestEnsureLogsDir(t *testing.T) {
	root := t.TempDir()

	dir, err := EnsureLogsDir(root)
	if err != nil {
		t.Fatalf("EnsureLogsDir failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("logs dir not created: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join(DataDirName, LogsSubdir)) {
		t.Errorf("unexpected logs dir %s", dir)
	}
}

func TestFindRepoRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DataDirName), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "terraform", "modules", "net")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRepoRoot(nested)
	if err != nil {
		t.Fatalf("FindRepoRoot failed: %v", err)
	}
	wantResolved, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != wantResolved {
		t.Errorf("FindRepoRoot = %s, want %s", got, root)
	}
}

func TestFindRepoRoot_DeclarationFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DeclarationFileName), []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRepoRoot(sub)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != filepath.Base(root) {
		t.Errorf("FindRepoRoot = %s, want %s", got, root)
	}
}

func TestCanonicalizePath(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "modules", "main.tf")
	if err := os.MkdirAll(filepath.Dir(testFile), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if err := os.WriteFile(testFile, []byte(`variable "x" {}`), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	canonical, err := CanonicalizePath(testFile, tempDir)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if canonical != "modules/main.tf" {
		t.Errorf("Expected modules/main.tf, got %s", canonical)
	}
}

func TestIsWithinRepo(t *testing.T) {
	tempDir := t.TempDir()
	inside := filepath.Join(tempDir, "main.tf")
	outside := filepath.Join(filepath.Dir(tempDir), "elsewhere.tf")

	if !IsWithinRepo(inside, tempDir) {
		t.Errorf("%s should be within %s", inside, tempDir)
	}
	if IsWithinRepo(outside, tempDir) {
		t.Errorf("%s should not be within %s", outside, tempDir)
	}
}

func TestResolveAgainst(t *testing.T) {
	if got := ResolveAgainst("/repo", "./terraform/../infra"); got != filepath.Join("/repo", "infra") {
		t.Errorf("relative: got %s", got)
	}
	if got := ResolveAgainst("/repo", "/abs/path/"); got != "/abs/path" {
		t.Errorf("absolute: got %s", got)
	}
}
