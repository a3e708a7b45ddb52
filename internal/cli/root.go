// Package cli implements the lsp-bridge command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lsp-bridge/internal/config"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lsp-bridge",
	Short: "lsp-bridge - drive language servers and index their symbols",
	Long: `lsp-bridge runs language servers over stdio and exposes their code
intelligence: it indexes document symbols across a workspace and answers
multi-key queries over the result.

Servers are configured per language in a simple YAML file; see the config
command of your deployment or the documented defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the YAML server configuration (default ~/.lsp-bridge/config.yaml)")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the --config flag, falling back to the default path
// and, when no file exists there either, to the built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
		if _, err := os.Stat(path); err != nil {
			return config.GetDefaultConfig(), nil
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}
