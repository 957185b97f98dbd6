package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelscutari/readdir/internal/config"
	"github.com/michaelscutari/readdir/internal/logger"
)

var version = "0.1.0"

var (
	configPath string
	logLevel   string

	cfg               = config.DefaultConfig()
	log logger.Logger = logger.NewNoOpLogger()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "readdir",
	Short: "Enumerate directory trees",
	Long: `readdir lists directory trees with depth, glob, regexp and type filters.
It can also record a tree into a SQLite snapshot and browse it.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./"+config.FileName+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace|debug|info|warn|error")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(queryCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		if !logger.ValidLevel(logLevel) {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		loaded.LogLevel = logLevel
	}
	cfg = loaded
	log = logger.NewConsoleLogger(os.Stderr, cfg.LogLevel)
	return nil
}
