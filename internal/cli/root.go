// Package cli 实现 fatwactl 命令行工具。
package cli

import (
	"fmt"
	"os"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/pkg/log"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fatwactl",
	Short: "Operate the fatwa retrieval engine",
	Long: `fatwactl manages the fatwa retrieval engine from the command line.

Example usage:
  fatwactl ingest ./dumps                         # Import local Q&A dumps
  fatwactl upload ./dumps/en/2024.json --lang en  # Upload to MinIO and enqueue
  fatwactl retrieve -q "zakat on gold" --lang en  # Run the retrieval gateway
  fatwactl token --subject ops                    # Mint an admin token`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		log.Init(level, "console", "")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

// Execute 运行根命令。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./configs/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}
