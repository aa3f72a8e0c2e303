package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tfdoc/internal/config"
	"tfdoc/internal/export"
	"tfdoc/internal/testutil"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func decode(t *testing.T, r cliResult, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(r.stdout), v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, r.stdout)
	}
}

func platform(t *testing.T) string {
	t.Helper()
	return testutil.FixtureRoot(t, "platform")
}

func TestVersionFlag(t *testing.T) {
	r := runCLI(t, "--version")
	if r.code != 0 || !strings.HasPrefix(r.stdout, "tfdoc version ") {
		t.Errorf("version output = %q (exit %d)", r.stdout, r.code)
	}
}

func TestBuildCommand(t *testing.T) {
	r := runCLI(t, "-C", platform(t), "build", "--format=json")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}

	var resp BuildResponseCLI
	decode(t, r, &resp)
	if resp.Modules != 4 || resp.Definitions != 11 || resp.Failed {
		t.Errorf("report = %+v", resp)
	}
	if len(resp.Roots) != 2 || resp.Roots[0] != "edge" {
		t.Errorf("roots = %v", resp.Roots)
	}
}

func TestBuildCommand_Failed(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"tfdoc.toml": "markup = \"md\"\n",
		"main.tf":    "variable \"ok\" {}\n",
		"broken.tf":  "resource \"a\" \"b\" {\n",
	})
	r := runCLI(t, "-C", root, "-q", "build")
	if r.code != 1 {
		t.Fatalf("exit %d, want 1", r.code)
	}
	if !strings.Contains(r.stdout, "FAILED") || !strings.Contains(r.stdout, "File errors (1)") {
		t.Errorf("output = %s", r.stdout)
	}
}

func TestBuildCommand_SaveCatalog(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "catalog.db")
	r := runCLI(t, "-C", platform(t), "build", "--catalog", catalog)
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	if _, err := os.Stat(catalog); err != nil {
		t.Errorf("catalog not written: %v", err)
	}

	s := runCLI(t, "-C", platform(t), "search", "newb", "--catalog", catalog, "--format=json")
	if s.code != 0 {
		t.Fatalf("search exit %d: %s", s.code, s.stderr)
	}
	var resp SearchResponseCLI
	decode(t, s, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Identifier != "live/network/subnets/variable-newbits" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].FilePath != "modules/network/subnets/main.tf" {
		t.Errorf("result path = %s", resp.Results[0].FilePath)
	}
}

func TestSearchCommand_NoCatalog(t *testing.T) {
	r := runCLI(t, "-C", platform(t), "search", "vpc", "--catalog", filepath.Join(t.TempDir(), "none.db"))
	if r.code != 1 || !strings.Contains(r.stderr, "no catalog") {
		t.Errorf("exit %d, stderr %q", r.code, r.stderr)
	}
}

func TestListCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"all", nil, 11},
		{"variables", []string{"--kind=variable"}, 3},
		{"module", []string{"--module=edge"}, 2},
		{"file", []string{"--file=modules/network/main.tf"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-C", platform(t), "list", "--format=json"}, tt.args...)
			r := runCLI(t, args...)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			var resp ListResponseCLI
			decode(t, r, &resp)
			if resp.Total != tt.want || len(resp.Definitions) != tt.want {
				t.Errorf("total = %d, want %d", resp.Total, tt.want)
			}
		})
	}

	r := runCLI(t, "-C", platform(t), "list", "--kind=provider")
	if r.code != 1 || !strings.Contains(r.stderr, "unknown kind") {
		t.Errorf("bad kind: exit %d, stderr %q", r.code, r.stderr)
	}
}

func TestModulesCommand(t *testing.T) {
	r := runCLI(t, "-C", platform(t), "modules")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	for _, line := range []string{"edge  (root", "live  (root", "  network  (call", "    subnets  (nested"} {
		if !strings.Contains(r.stdout, line) {
			t.Errorf("missing %q in\n%s", line, r.stdout)
		}
	}
}

func TestResolveCommand(t *testing.T) {
	root := platform(t)

	r := runCLI(t, "-C", root, "resolve", "aws_vpc.main", "--format=json")
	if r.code != 1 {
		t.Fatalf("ambiguous signature: exit %d", r.code)
	}
	var amb ResolveResponseCLI
	decode(t, r, &amb)
	if amb.Failed != 1 || amb.Results[0].Error == nil || amb.Results[0].Error.Code != "AMBIGUOUS_REFERENCE" {
		t.Fatalf("results = %+v", amb.Results)
	}
	if len(amb.Results[0].Error.Candidates) != 2 {
		t.Errorf("candidates = %v", amb.Results[0].Error.Candidates)
	}

	r = runCLI(t, "-C", root, "resolve", "aws_vpc.main", "variable:cidr",
		"--context=live/network", "--document=guide", "--format=json")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stdout)
	}
	var ok ResolveResponseCLI
	decode(t, r, &ok)
	if ok.Resolved != 2 || ok.Results[0].Level != 2 || ok.Results[0].Definition.Module != "live/network" {
		t.Errorf("results = %+v", ok.Results)
	}
	if docs := ok.Usage["live/network/resource-aws_vpc.main"]; len(docs) != 1 || docs[0] != "guide" {
		t.Errorf("usage = %v", ok.Usage)
	}
}

func TestShowCommand(t *testing.T) {
	root := platform(t)

	r := runCLI(t, "-C", root, "show", "aws_vpc.main", "--rootmodule=live", "--module=network", "--format=json")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	var resp ShowResponseCLI
	decode(t, r, &resp)
	if resp.Definition.Identifier != "live/network/resource-aws_vpc.main" {
		t.Errorf("definition = %+v", resp.Definition)
	}
	if resp.Markup != "markdown" || resp.MarkupLevel != "global" {
		t.Errorf("markup = %s from %s", resp.Markup, resp.MarkupLevel)
	}

	r = runCLI(t, "-C", root, "show", "edge/aws_ami.ubuntu", "--markup=rst")
	if r.code != 0 || !strings.Contains(r.stdout, "Latest Ubuntu image.") || !strings.Contains(r.stdout, "(from override)") {
		t.Errorf("human show = %q (exit %d)", r.stdout, r.code)
	}

	r = runCLI(t, "-C", root, "show", "cidr", "--rootmodule=nowhere")
	if r.code != 1 || !strings.Contains(r.stderr, "UNKNOWN_ROOT_MODULE") {
		t.Errorf("unknown root: exit %d, stderr %q", r.code, r.stderr)
	}
}

func TestIndexCommand(t *testing.T) {
	r := runCLI(t, "-C", platform(t), "index", "--format=yaml")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	if !strings.Contains(r.stdout, "letter: a") || !strings.Contains(r.stdout, "identifier: edge/data-aws_ami.ubuntu") {
		t.Errorf("yaml index = %s", r.stdout)
	}
}

func TestExportCommand(t *testing.T) {
	out := t.TempDir()
	scipPath := filepath.Join(out, "index.scip")
	jsonPath := filepath.Join(out, "docs.json.zst")

	r := runCLI(t, "-C", platform(t), "export", "--scip", scipPath, "--json", jsonPath, "--zstd", "--format=json")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	var resp ExportResponseCLI
	decode(t, r, &resp)
	if len(resp.Written) != 2 || resp.Written[1].Kind != "json+zstd" {
		t.Errorf("written = %+v", resp.Written)
	}

	index, err := export.LoadSCIP(scipPath)
	if err != nil || len(index.Documents) == 0 {
		t.Errorf("SCIP index = %v, %v", index, err)
	}

	file, err := os.Open(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	snap, err := export.ReadJSON(file)
	if err != nil || snap.Metadata.ModuleCount != 4 {
		t.Errorf("snapshot = %+v, %v", snap, err)
	}

	if r := runCLI(t, "-C", platform(t), "export"); r.code != 1 || !strings.Contains(r.stderr, "nothing to export") {
		t.Errorf("empty export: exit %d, stderr %q", r.code, r.stderr)
	}
}

func TestConfigCommand(t *testing.T) {
	r := runCLI(t, "-C", platform(t), "config", "--format=json")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	var resp struct {
		Sources []config.RootSource `json:"sources"`
		EnvVars map[string]string   `json:"envVars"`
	}
	decode(t, r, &resp)
	if len(resp.Sources) != 2 || resp.EnvVars["TFDOC_SCAN_WORKERS"] != "scan.workers" {
		t.Errorf("config = %+v", resp)
	}
}

func TestUnknownFormat(t *testing.T) {
	r := runCLI(t, "-C", platform(t), "build", "--format=xml")
	if r.code != 1 || !strings.Contains(r.stderr, "unsupported format") {
		t.Errorf("exit %d, stderr %q", r.code, r.stderr)
	}
}

func TestWatchBuild(t *testing.T) {
	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})

	env, err := newEnv(cmd, &rootOptions{dir: platform(t), format: "json", quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()

	catalog := filepath.Join(t.TempDir(), "catalog.db")
	if err := watchBuild(context.Background(), cmd, env, catalog); err != nil {
		t.Fatalf("watchBuild: %v", err)
	}
	var resp BuildResponseCLI
	decode(t, cliResult{stdout: stdout.String()}, &resp)
	if resp.Definitions != 11 || resp.Catalog == "" {
		t.Errorf("report = %+v", resp)
	}
	if _, err := os.Stat(catalog); err != nil {
		t.Errorf("catalog not written: %v", err)
	}
}
