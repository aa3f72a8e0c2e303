package main

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
	"tfdoc/internal/xref"
)

// ResolveResponseCLI is the output of tfdoc resolve.
type ResolveResponseCLI struct {
	Results  []resolveResultCLI  `json:"results"`
	Resolved int                 `json:"resolved"`
	Failed   int                 `json:"failed"`
	Usage    map[string][]string `json:"usage,omitempty"`
}

type resolveResultCLI struct {
	Signature  string         `json:"signature"`
	Definition *definitionCLI `json:"definition,omitempty"`
	Level      int            `json:"level,omitempty"`
	LevelName  string         `json:"levelName,omitempty"`
	Error      *errorCLI      `json:"error,omitempty"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var module, kind, document string

	cmd := &cobra.Command{
		Use:   "resolve <signature>...",
		Short: "Resolve cross-reference signatures",
		Long: `Resolve each signature to exactly one definition.

A signature is [module-path/][kind:]label[.label]. Resolution tries, in order,
the qualified module, the --context module, a label match across all
modules and finally the last label alone. The first level with any
candidate decides; more than one candidate there is an ambiguity error.

The command exits 1 when any signature fails.

Examples:
  tfdoc resolve aws_vpc.main
  tfdoc resolve network/resource:aws_vpc.main cidr --context=live
  tfdoc resolve main --kind=resource --document=guide/network`,
		Args: cobra.MinimumNArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			ctx := xref.Context{Module: module, Location: "command line"}
			if kind != "" {
				k, ok := hclscan.ParseKind(kind)
				if !ok {
					return fmt.Errorf("unknown kind %q", kind)
				}
				ctx.Kind = k
			}

			res, err := env.build(cmd.Context())
			if err != nil {
				return err
			}
			resolver, err := res.Resolver()
			if err != nil {
				return err
			}

			refs := make([]xref.Reference, 0, len(args))
			for _, sig := range args {
				refs = append(refs, xref.Reference{Signature: sig, Document: document, Context: ctx})
			}
			report, err := resolver.ResolveAll(cmd.Context(), refs, env.cfg.Scan.Workers)
			if err != nil {
				return err
			}

			resp := env.convertResolveReport(report)
			if document == "" {
				resp.Usage = nil
			}
			if err := env.print(cmd, resp); err != nil {
				return err
			}
			if resp.Failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&module, "context", "", "Module fullname of the referencing document")
	cmd.Flags().StringVar(&kind, "kind", "", "Restrict resolution to one kind")
	cmd.Flags().StringVar(&document, "document", "", "Document name recorded in the usage report")
	return cmd
}

func (e *cliEnv) convertResolveReport(report *xref.Report) *ResolveResponseCLI {
	resp := &ResolveResponseCLI{Usage: report.Usage}
	for _, o := range report.Outcomes {
		r := resolveResultCLI{Signature: o.Reference.Signature}
		if o.Err != nil {
			r.Error = convertError(o.Err)
			resp.Failed++
		} else {
			def := e.convertDefinition(o.Resolution.Definition)
			r.Definition = &def
			r.Level = int(o.Resolution.Level)
			r.LevelName = o.Resolution.Level.String()
			resp.Resolved++
		}
		resp.Results = append(resp.Results, r)
	}
	return resp
}

func convertError(err error) *errorCLI {
	out := &errorCLI{Code: string(errors.CodeOf(err)), Message: err.Error(), Candidates: xref.Candidates(err)}
	var te *errors.TfdocError
	if stderrors.As(err, &te) {
		out.Message = te.Message
	}
	if out.Code == "" {
		out.Code = string(errors.InternalError)
	}
	return out
}
