package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tfdoc/internal/storage"
)

// SearchResponseCLI is the output of tfdoc search.
type SearchResponseCLI struct {
	Query   string                 `json:"query"`
	BuildID string                 `json:"buildId"`
	Results []storage.SearchResult `json:"results"`
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		catalogPath string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search saved definitions by name and doc text",
		Long: `Search the catalog written by 'tfdoc build --save' or 'tfdoc export --sqlite'.

Exact phrase matches rank first, then prefix matches, then plain
substring matches.

Examples:
  tfdoc search vpc
  tfdoc search "environment name" --limit=5
  tfdoc search subnet --catalog=catalog.db`,
		Args: cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			path := storage.DefaultPath(env.repoRoot)
			if catalogPath != "" {
				path = env.abs(catalogPath)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no catalog at %s; run 'tfdoc build --save' first", env.rel(path))
			}

			db, err := storage.Open(path, env.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			last, err := db.LastBuild(cmd.Context())
			if err != nil {
				return err
			}
			if last == nil {
				return fmt.Errorf("catalog %s is empty; run 'tfdoc build --save' first", env.rel(path))
			}

			results, err := db.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for i := range results {
				results[i].FilePath = env.rel(results[i].FilePath)
			}
			return env.print(cmd, &SearchResponseCLI{Query: args[0], BuildID: last.BuildID, Results: results})
		}),
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file (default .tfdoc/catalog.db)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}
