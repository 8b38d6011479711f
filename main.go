package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sitekernel/pkg/config"
	"sitekernel/pkg/logging"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "sitekernel",
	Short:         "Single-threaded plan fragment execution engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return logging.Init(logging.Config{
			Level:      logging.ParseLevel(cfg.Logging.Level),
			Format:     cfg.Logging.Format,
			OutputPath: cfg.Logging.OutputPath,
		})
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	rootCmd.AddCommand(runCmd(), consoleCmd(), serveCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
