package main

import (
	"github.com/spf13/cobra"
)

// IndexResponseCLI is the output of tfdoc index.
type IndexResponseCLI struct {
	Groups []indexGroupCLI `json:"groups"`
}

type indexGroupCLI struct {
	Letter  string          `json:"letter"`
	Entries []indexEntryCLI `json:"entries"`
}

type indexEntryCLI struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Identifier  string `json:"identifier"`
	Module      string `json:"module"`
	Kind        string `json:"kind"`
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Print the alphabetical definition index",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			res, err := env.build(cmd.Context())
			if err != nil {
				return err
			}

			resp := &IndexResponseCLI{}
			for _, g := range res.Registry.IndexEntries() {
				group := indexGroupCLI{Letter: g.Letter}
				for _, d := range g.Definitions {
					group.Entries = append(group.Entries, indexEntryCLI{
						Name:        d.Name(),
						DisplayName: d.DisplayName(),
						Identifier:  d.Identifier(),
						Module:      d.ModuleName(),
						Kind:        string(d.Kind),
					})
				}
				resp.Groups = append(resp.Groups, group)
			}
			return env.print(cmd, resp)
		}),
	}
}
