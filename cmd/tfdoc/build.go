package main

import (
	"github.com/spf13/cobra"

	"tfdoc/internal/build"
	"tfdoc/internal/storage"
)

// BuildResponseCLI is the output of tfdoc build.
type BuildResponseCLI struct {
	BuildID          string         `json:"buildId"`
	DurationMs       int64          `json:"durationMs"`
	Roots            []string       `json:"roots"`
	Modules          int            `json:"modules"`
	Definitions      int            `json:"definitions"`
	ByKind           map[string]int `json:"byKind"`
	FilesScanned     int            `json:"filesScanned"`
	Failed           bool           `json:"failed"`
	Catalog          string         `json:"catalog,omitempty"`
	ModuleProblems   []problemCLI   `json:"moduleProblems,omitempty"`
	FileErrors       []problemCLI   `json:"fileErrors,omitempty"`
	Warnings         []problemCLI   `json:"warnings,omitempty"`
	DefinitionErrors []problemCLI   `json:"definitionErrors,omitempty"`
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var (
		save        bool
		catalogPath string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan all modules and report the registry",
		Long: `Build the module tree, scan every Terraform file and register its
documented blocks, then print the build report.

The command exits non-zero when any file failed to parse or a module cycle
was found. Definitions from the other files are still registered.

Examples:
  tfdoc build
  tfdoc build --save
  tfdoc build --format=json`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			res, err := env.build(cmd.Context())
			if err != nil {
				return err
			}

			resp := convertBuildReport(res.Report())
			if save || catalogPath != "" {
				path := catalogPath
				if path == "" {
					path = storage.DefaultPath(env.repoRoot)
				} else {
					path = env.abs(path)
				}
				if err := saveCatalog(cmd, env, res, path); err != nil {
					return err
				}
				resp.Catalog = env.rel(path)
			}

			if err := env.print(cmd, resp); err != nil {
				return err
			}
			if res.Failed() {
				return &exitError{code: 1}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&save, "save", false, "Save the result to the catalog in .tfdoc/catalog.db")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Save the result to this catalog file")
	return cmd
}

func convertBuildReport(r build.Report) *BuildResponseCLI {
	return &BuildResponseCLI{
		BuildID:          r.BuildID,
		DurationMs:       r.DurationMs,
		Roots:            r.Roots,
		Modules:          r.Modules,
		Definitions:      r.Definitions,
		ByKind:           r.ByKind,
		FilesScanned:     r.FilesScanned,
		Failed:           r.Failed,
		ModuleProblems:   convertProblems(r.ModuleProblems),
		FileErrors:       convertProblems(r.FileErrors),
		Warnings:         convertProblems(r.Warnings),
		DefinitionErrors: convertProblems(r.DefinitionErrors),
	}
}

func saveCatalog(cmd *cobra.Command, env *cliEnv, res *build.Result, path string) error {
	db, err := storage.Open(path, env.logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveBuild(cmd.Context(), res)
}
