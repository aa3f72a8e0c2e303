package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tfdoc/internal/hclscan"
	"tfdoc/internal/registry"
)

// ListResponseCLI is the output of tfdoc list.
type ListResponseCLI struct {
	Definitions []definitionCLI `json:"definitions"`
	Total       int             `json:"total"`
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var module, kind, file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered definitions",
		Long: `List the definitions of the registry in registration order.

Examples:
  tfdoc list
  tfdoc list --module=live/network
  tfdoc list --kind=variable
  tfdoc list --file=modules/network/main.tf`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			filter := registry.Filter{Module: module}
			if kind != "" {
				k, ok := hclscan.ParseKind(kind)
				if !ok {
					return fmt.Errorf("unknown kind %q (want resource, data, variable, output or module)", kind)
				}
				filter.Kind = k
			}
			if file != "" {
				filter.File = env.abs(file)
			}

			res, err := env.build(cmd.Context())
			if err != nil {
				return err
			}

			defs := env.convertDefinitions(res.Registry.Query(filter))
			return env.print(cmd, &ListResponseCLI{Definitions: defs, Total: len(defs)})
		}),
	}

	cmd.Flags().StringVar(&module, "module", "", "Only definitions of this module fullname")
	cmd.Flags().StringVar(&kind, "kind", "", "Only definitions of this kind")
	cmd.Flags().StringVar(&file, "file", "", "Only definitions from this file")
	return cmd
}
