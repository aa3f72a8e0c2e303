package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tfdoc/internal/errors"
	"tfdoc/internal/version"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	dir        string
	configPath string
	format     string
	verbosity  int
	quiet      bool
}

// exitError carries a process exit code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tfdoc",
		Short: "tfdoc - Terraform documentation registry",
		Long: `tfdoc extracts the documentation comments written above Terraform blocks,
organizes the blocks into a module tree and resolves abbreviated
cross-reference signatures such as "network/aws_vpc.main" to exactly one
definition.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("tfdoc version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.dir, "dir", "C", "", "Run as if tfdoc was started in this directory")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default .tfdoc/config.{json,yaml,toml})")
	flags.StringVar(&opts.format, "format", string(FormatHuman), "Output format (json, human, yaml)")
	flags.CountVarP(&opts.verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress all log output")

	cmd.AddCommand(
		newBuildCmd(opts),
		newListCmd(opts),
		newModulesCmd(opts),
		newResolveCmd(opts),
		newShowCmd(opts),
		newIndexCmd(opts),
		newExportCmd(opts),
		newSearchCmd(opts),
		newConfigCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// run executes the CLI and maps errors to exit codes.
func run(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var exit *exitError
	if stderrors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	for _, hint := range suggestedFixes(err) {
		fmt.Fprintf(stderr, "  hint: %s\n", hint)
	}
	return 1
}

// suggestedFixes renders the fixes attached to a tfdoc error.
func suggestedFixes(err error) []string {
	var te *errors.TfdocError
	if !stderrors.As(err, &te) {
		return nil
	}
	var out []string
	for _, fix := range te.SuggestedFixes {
		hint := fix.Description
		if fix.Command != "" {
			hint = fmt.Sprintf("%s (%s)", fix.Description, fix.Command)
		}
		out = append(out, hint)
	}
	return out
}
