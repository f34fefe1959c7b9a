package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fixedratio",
	Short: "Fixed-ratio token exchange on an embedded ledger",
	Long: `fixedratio runs the fixed-ratio trading program on an in-process ledger.

It provides commands for:
- Wallet management
- Program address derivation
- Scripted scenario simulation
- Serving pool, treasury and history data over HTTP`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.fixedratio.yaml or $HOME/.fixedratio.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
}

func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		loaded.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		loaded.Log.Format = format
	}
	cfg = loaded

	slog.SetDefault(common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format))
	return nil
}
