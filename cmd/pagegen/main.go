package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/config"
	logpkg "github.com/kailas-cloud/pagegen/internal/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "pagegen",
	Short:         "Generate SEO landing pages from keyword lists",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Configuration file (default: config/<ENV>.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress at info level")

	rootCmd.AddCommand(serveCmd, generateCmd, extractCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pagegen:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise the file for $ENV.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(config.GetEnv())
}

// cliLogger writes to stderr so stdout stays clean for command output.
func cliLogger(cfg config.Config) (*zap.Logger, error) {
	level := ""
	if verbose {
		level = "info"
		if cfg.Logging.Level == "debug" {
			level = "debug"
		}
	}
	return logpkg.NewLogger(logpkg.EnvCLI, level)
}
