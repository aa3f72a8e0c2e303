package main

import (
	"github.com/spf13/cobra"

	"tfdoc/internal/config"
)

// ConfigResponseCLI is the effective configuration.
type ConfigResponseCLI struct {
	RepoRoot   string              `json:"repoRoot"`
	ConfigFile string              `json:"configFile,omitempty"`
	Config     *config.Config      `json:"config"`
	Sources    []config.RootSource `json:"sources"`
	EnvVars    map[string]string   `json:"envVars"`
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file, tfdoc.toml
declarations and TFDOC_* environment overrides are applied.`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, env *cliEnv) error {
			return env.print(cmd, &ConfigResponseCLI{
				RepoRoot:   env.repoRoot,
				ConfigFile: env.cfg.ConfigFile,
				Config:     env.cfg,
				Sources:    env.cfg.Sources(),
				EnvVars:    config.SupportedEnvVars(),
			})
		}),
	}
}
