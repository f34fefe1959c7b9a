package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lugondev/fixed-ratio-trading/internal/api"
	"github.com/lugondev/fixed-ratio-trading/internal/scenario"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exchange state over HTTP",
	Long: `Deploy the program on a fresh ledger and serve pool, treasury and
transaction history over a read-only HTTP API. --scenario seeds the ledger
with a scenario file before the server starts.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addStorageFlags(serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (overrides api.listen)")
	serveCmd.Flags().String("scenario", "", "scenario file to replay before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.API.Listen = listen
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, cfg, storageOptions(cmd))
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(context.Background()); err != nil {
			env.logger.Error("shutdown failed", "error", err)
		}
	}()

	if path, _ := cmd.Flags().GetString("scenario"); path != "" {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		runner := scenario.NewRunner(env.client, env.authority.PrivateKey())
		runner.SetLogger(env.logger)
		report, err := runner.Run(ctx, s)
		if err != nil {
			return err
		}
		if err := env.flush(ctx); err != nil {
			return fmt.Errorf("flush storage batch: %w", err)
		}
		env.logger.Info("scenario replayed", "name", report.Name, "steps", len(report.Steps), "failed", report.Failed())
	}

	server := api.NewServer(env.client, env.repo)
	server.SetLogger(env.logger)
	server.Start(cfg.API.Listen)

	<-ctx.Done()
	env.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
