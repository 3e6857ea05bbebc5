package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/framepress/internal/config"
)

const (
	appName    = "framepress"
	appVersion = "0.1.0"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	configPath string
}

// loadConfig returns defaults, overlaid with the config file when one is set.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	if g.configPath == "" {
		return config.NewConfig("", ""), nil
	}
	cfg, err := config.Load(config.ExpandPath(g.configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var g globalOptions

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Compress frame sequences into MP4 with ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Configuration file (TOML or YAML)")

	rootCmd.AddCommand(newEncodeCommand(&g))
	rootCmd.AddCommand(newProbeCommand(&g))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}
