package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tfdoc/internal/export"
)

// ExportResponseCLI lists the files an export wrote.
type ExportResponseCLI struct {
	BuildID string          `json:"buildId"`
	Written []exportFileCLI `json:"written"`
}

type exportFileCLI struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

type exportFlags struct {
	scipPath     string
	jsonPath     string
	sqlitePath   string
	compress     bool
	undocumented bool
	text         bool
	organized    bool
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	f := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the registry as SCIP, JSON, SQLite or text",
		Long: `Build the registry and write it in one or more formats.

  --scip      SCIP index with one definition occurrence per block
  --json      JSON snapshot grouped by module and file (--zstd compresses it)
  --sqlite    SQLite catalog with a full-text index over doc comments
  --text      print a compact outline of documented definitions
  --organized print a module map with cross-module bridges

Examples:
  tfdoc export --scip=index.scip
  tfdoc export --json=docs.json.zst --zstd
  tfdoc export --sqlite=catalog.db --text`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			if f.scipPath == "" && f.jsonPath == "" && f.sqlitePath == "" && !f.text && !f.organized {
				return errors.New("nothing to export: pass --scip, --json, --sqlite, --text or --organized")
			}
			return runExport(cmd, env, f)
		}),
	}

	cmd.Flags().StringVar(&f.scipPath, "scip", "", "Write a SCIP index to this path")
	cmd.Flags().StringVar(&f.jsonPath, "json", "", "Write a JSON snapshot to this path")
	cmd.Flags().StringVar(&f.sqlitePath, "sqlite", "", "Write a SQLite catalog to this path")
	cmd.Flags().BoolVar(&f.compress, "zstd", false, "Compress the JSON snapshot with zstd")
	cmd.Flags().BoolVar(&f.undocumented, "undocumented", false, "Include definitions without a doc comment in JSON and text")
	cmd.Flags().BoolVar(&f.text, "text", false, "Print a text outline")
	cmd.Flags().BoolVar(&f.organized, "organized", false, "Print the module map")
	return cmd
}

func runExport(cmd *cobra.Command, env *cliEnv, f *exportFlags) error {
	res, err := env.build(cmd.Context())
	if err != nil {
		return err
	}
	if res.Failed() {
		env.logger.Warn("Exporting a build with errors", "file_errors", len(res.FileErrors), "module_problems", len(res.ModuleProblems))
	}

	exp := export.NewExporter(export.Options{
		Root:         env.repoRoot,
		Compress:     f.compress,
		Undocumented: f.undocumented,
	}, env.logger)
	resp := &ExportResponseCLI{BuildID: res.BuildID}

	if f.scipPath != "" {
		path := env.abs(f.scipPath)
		if err := exp.WriteSCIP(res, path); err != nil {
			return err
		}
		resp.Written = append(resp.Written, exportFileCLI{Kind: "scip", Path: env.rel(path)})
	}

	snap := exp.Snapshot(res)

	if f.jsonPath != "" {
		path := env.abs(f.jsonPath)
		if err := writeSnapshot(exp, snap, path); err != nil {
			return err
		}
		kind := "json"
		if f.compress {
			kind = "json+zstd"
		}
		resp.Written = append(resp.Written, exportFileCLI{Kind: kind, Path: env.rel(path)})
	}

	if f.sqlitePath != "" {
		path := env.abs(f.sqlitePath)
		if err := saveCatalog(cmd, env, res, path); err != nil {
			return err
		}
		resp.Written = append(resp.Written, exportFileCLI{Kind: "sqlite", Path: env.rel(path)})
	}

	out := cmd.OutOrStdout()
	if f.text {
		fmt.Fprint(out, exp.FormatText(snap))
	}
	if f.organized {
		fmt.Fprint(out, export.FormatOrganizedText(export.NewOrganizer(snap).Organize()))
	}
	if len(resp.Written) == 0 {
		return nil
	}
	return env.print(cmd, resp)
}

func writeSnapshot(exp *export.Exporter, snap *export.Snapshot, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := exp.WriteJSON(file, snap); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
