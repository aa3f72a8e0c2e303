package main

import (
	"github.com/spf13/cobra"

	"tfdoc/internal/xref"
)

// ShowResponseCLI is the output of tfdoc show.
type ShowResponseCLI struct {
	Definition  definitionCLI `json:"definition"`
	Level       string        `json:"level"`
	Markup      string        `json:"markup"`
	MarkupLevel string        `json:"markupLevel"`
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var overrideMarkup, rootModule, module, contextModule, documentMarkup string

	cmd := &cobra.Command{
		Use:   "show <signature>",
		Short: "Show the documentation of one definition",
		Long: `Resolve a signature the way an inclusion directive does and print the
definition's documentation together with the markup language it is
rendered in.

The markup language is the first of: --markup, the configured
terraformCommentMarkup, the including document's language
(--document-markup, default documentMarkup from the config).

Examples:
  tfdoc show aws_vpc.main --rootmodule=live --module=network
  tfdoc show live/variable:cidr --markup=md`,
		Args: cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			res, err := env.build(cmd.Context())
			if err != nil {
				return err
			}
			resolver, err := res.Resolver()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("document-markup") {
				documentMarkup = env.cfg.DocumentMarkup
			}
			inc, err := resolver.Include(args[0], xref.IncludeOptions{
				Markup:         overrideMarkup,
				RootModule:     rootModule,
				Module:         module,
				Context:        xref.Context{Module: contextModule, Location: "command line"},
				DocumentMarkup: documentMarkup,
			})
			if err != nil {
				return err
			}

			return env.print(cmd, &ShowResponseCLI{
				Definition:  env.convertDefinition(inc.Definition),
				Level:       inc.Level.String(),
				Markup:      inc.Markup.String(),
				MarkupLevel: string(inc.MarkupLevel),
			})
		}),
	}

	cmd.Flags().StringVar(&overrideMarkup, "markup", "", "Markup language for this inclusion (md, rst, ...)")
	cmd.Flags().StringVar(&rootModule, "rootmodule", "", "Root module of the resolution context")
	cmd.Flags().StringVar(&module, "module", "", "Submodule of the resolution context, relative to the root")
	cmd.Flags().StringVar(&contextModule, "context", "", "Module fullname of the including document")
	cmd.Flags().StringVar(&documentMarkup, "document-markup", "", "Markup language of the including document")
	return cmd
}
