package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/fixed-ratio-trading/internal/scenario"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario.yaml]",
	Short: "Replay a scenario file against a fresh ledger",
	Long: `Deploy the program on a fresh ledger, create the scenario's mints, users
and pools, then play its steps and print the outcome. Commits are persisted to
the configured database unless --no-storage is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	addStorageFlags(simulateCmd)
}

func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-storage", false, "do not persist commits")
	cmd.Flags().Bool("skip-failed", false, "persist successful commits only")
	cmd.Flags().Int("batch-size", 0, "commits buffered per storage write (overrides database.batch_size)")
}

func storageOptions(cmd *cobra.Command) envOptions {
	noStorage, _ := cmd.Flags().GetBool("no-storage")
	skipFailed, _ := cmd.Flags().GetBool("skip-failed")
	if size, _ := cmd.Flags().GetInt("batch-size"); size > 0 {
		cfg.Database.BatchSize = size
	}
	return envOptions{persist: !noStorage, skipFailed: skipFailed}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := newEnvironment(ctx, cfg, storageOptions(cmd))
	if err != nil {
		return err
	}

	runner := scenario.NewRunner(env.client, env.authority.PrivateKey())
	runner.SetLogger(env.logger)
	report, err := runner.Run(ctx, s)
	if err != nil {
		_ = env.Close(ctx)
		return err
	}

	out := cmd.OutOrStdout()
	renderReport(out, s, report, runner, env.client)
	if env.repo != nil {
		if err := env.flush(ctx); err != nil {
			env.logger.Error("failed to flush storage batch", "error", err)
		}
		if txs, err := env.repo.Transactions().FindRecent(ctx, 0); err == nil {
			fmt.Fprintf(out, "Persisted %d transactions\n", len(txs))
		}
	}
	if err := env.Close(ctx); err != nil {
		return err
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d steps did not behave as expected", n, len(report.Steps))
	}
	return nil
}
