package main

import (
	"github.com/spf13/cobra"

	"tfdoc/internal/build"
	"tfdoc/internal/modules"
)

// ModulesResponseCLI is the output of tfdoc modules.
type ModulesResponseCLI struct {
	Roots []moduleCLI `json:"roots"`
	Total int         `json:"total"`
}

type moduleCLI struct {
	Fullname    string      `json:"fullname"`
	Name        string      `json:"name"`
	Origin      string      `json:"origin"`
	Path        string      `json:"path"`
	Files       int         `json:"files"`
	Definitions int         `json:"definitions"`
	Children    []moduleCLI `json:"children,omitempty"`
}

func newModulesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "Print the module tree",
		Long: `Print every root module with the child modules discovered through local
module calls and nested directories.

Examples:
  tfdoc modules
  tfdoc modules --format=yaml`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			res, err := env.build(cmd.Context())
			if err != nil {
				return err
			}
			return env.print(cmd, env.convertTree(res))
		}),
	}
}

func (e *cliEnv) convertTree(res *build.Result) *ModulesResponseCLI {
	var convert func(m *modules.Module) moduleCLI
	convert = func(m *modules.Module) moduleCLI {
		out := moduleCLI{
			Fullname:    m.Fullname,
			Name:        m.Name,
			Origin:      string(m.Origin),
			Path:        e.rel(m.Path),
			Files:       len(m.Files),
			Definitions: len(res.Registry.InModule(m.Fullname)),
		}
		for _, c := range m.Children {
			out.Children = append(out.Children, convert(c))
		}
		return out
	}

	resp := &ModulesResponseCLI{Total: res.Tree.Len()}
	for _, m := range res.Tree.All() {
		if m.IsRoot() {
			resp.Roots = append(resp.Roots, convert(m))
		}
	}
	return resp
}
