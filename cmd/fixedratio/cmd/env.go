package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/processor"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
	_ "github.com/lugondev/fixed-ratio-trading/internal/storage/memory"
	_ "github.com/lugondev/fixed-ratio-trading/internal/storage/mongo"
	_ "github.com/lugondev/fixed-ratio-trading/internal/storage/mysql"
	_ "github.com/lugondev/fixed-ratio-trading/internal/storage/postgres"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/internal/wallet"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
)

// environment is a ledger with the token and fixed-ratio programs
// deployed, optionally persisting every commit.
type environment struct {
	logger    *slog.Logger
	bank      *ledger.Bank
	client    *client.Client
	authority *wallet.Wallet
	metrics   *metrics.Collection

	conn  *storage.ConnectionManager
	repo  storage.Repository
	batch *processor.BatchProcessor[*ledger.Committed]
}

type envOptions struct {
	persist    bool
	skipFailed bool
}

func programID(cfg *config.Config) (solana.PublicKey, error) {
	if cfg.Program.ID == "" {
		return program.DefaultProgramID, nil
	}
	id, err := solana.PublicKeyFromBase58(cfg.Program.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program.id: %w", err)
	}
	return id, nil
}

func loadAuthority(cfg *config.Config, logger *slog.Logger) (*wallet.Wallet, error) {
	path := cfg.Program.UpgradeAuthorityKeypair
	if path == "" {
		w := wallet.New()
		logger.Info("using an ephemeral upgrade authority", "pubkey", w.PublicKey())
		return w, nil
	}
	w, created, err := wallet.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load upgrade authority: %w", err)
	}
	if created {
		logger.Info("created upgrade authority keypair", "path", path, "pubkey", w.PublicKey())
	}
	return w, nil
}

func ledgerConfig(cfg config.LedgerConfig) ledger.Config {
	return ledger.Config{
		LamportsPerSignature: cfg.LamportsPerSignature,
		ComputeUnitLimit:     cfg.ComputeUnitLimit,
		Rent: ledger.Rent{
			LamportsPerByteYear: cfg.RentLamportsPerByteYear,
			ExemptionThreshold:  cfg.RentExemptionThreshold,
		},
		GenesisUnixTimestamp: cfg.GenesisUnixTimestamp,
	}
}

func newEnvironment(ctx context.Context, cfg *config.Config, opts envOptions) (*environment, error) {
	logger := slog.Default()
	id, err := programID(cfg)
	if err != nil {
		return nil, err
	}
	authority, err := loadAuthority(cfg, logger)
	if err != nil {
		return nil, err
	}

	env := &environment{
		logger:    logger,
		authority: authority,
		metrics:   metrics.NewCollection(metrics.NewLogMetrics(logger)),
	}
	if err := env.metrics.Initialize(ctx); err != nil {
		return nil, err
	}

	registry := decoder.NewRegistry()
	program.RegisterEvents(registry, id)

	onCommit := processor.NewChainedProcessor[*ledger.Committed](
		processor.ProcessorFunc[*ledger.Committed](func(ctx context.Context, c *ledger.Committed, m *metrics.Collection) error {
			return m.UpdateGauge(ctx, metrics.MetricLedgerSlot, float64(c.Meta.Slot))
		}),
	)
	if opts.persist && cfg.Database.Enabled {
		persist, err := env.openStorage(ctx, cfg, id, registry, opts.skipFailed)
		if err != nil {
			return nil, err
		}
		onCommit.Add(persist)
	}

	env.bank = ledger.NewBank(ledgerConfig(cfg.Ledger),
		ledger.WithMetrics(env.metrics),
		ledger.WithCommitProcessor(onCommit),
	)
	env.bank.SetLogger(logger)
	if err := token.Install(env.bank); err != nil {
		return nil, err
	}
	prog, err := program.New(id, program.WithMetrics(env.metrics))
	if err != nil {
		return nil, err
	}
	env.bank.Airdrop(authority.PublicKey(), 100_000_000_000)
	if err := prog.Deploy(env.bank, authority.PublicKey()); err != nil {
		return nil, fmt.Errorf("failed to deploy program: %w", err)
	}

	env.client, err = client.New(env.bank, id, client.WithRetry(cfg.Client), client.WithRegistry(registry))
	if err != nil {
		return nil, err
	}
	env.client.SetLogger(logger)
	logger.Info("program deployed", "program_id", id, "version", program.Version)
	return env, nil
}

// openStorage connects the configured backend and returns the processor that
// persists commits into it. Storage failures are counted and logged but never
// fail the commit.
func (e *environment) openStorage(ctx context.Context, cfg *config.Config, id solana.PublicKey, registry *decoder.Registry, skipFailed bool) (processor.Processor[*ledger.Committed], error) {
	conn, err := storage.NewConnectionManager(&cfg.Database)
	if err != nil {
		return nil, err
	}
	conn.SetLogger(e.logger)
	repo, err := conn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	e.conn, e.repo = conn, repo
	e.logger.Info("storage connected", "type", cfg.Database.Type)

	sink := storage.NewSink(repo,
		storage.WithEvents(registry, id),
		storage.WithInstructionNamer(instruction.Namer(id)),
		storage.WithWorkers(cfg.Database.Workers),
	)
	sink.SetLogger(e.logger)

	e.batch = processor.NewBatchProcessor[*ledger.Committed](
		processor.ProcessorFunc[[]*ledger.Committed](func(ctx context.Context, batch []*ledger.Committed, m *metrics.Collection) error {
			for _, c := range batch {
				if err := sink.Process(ctx, c, m); err != nil {
					return err
				}
			}
			return nil
		}),
		cfg.Database.BatchSize,
	)

	var persist processor.Processor[*ledger.Committed] = e.batch
	if skipFailed {
		persist = processor.NewConditionalProcessor(persist, func(c *ledger.Committed) bool {
			return c.Meta.Err == nil
		})
	}
	return processor.NewErrorHandlingProcessor(persist, func(err error) error {
		metrics.LogError(e.logger, metrics.MetricStorageFailures, e.metrics.IncrementCounter(context.Background(), metrics.MetricStorageFailures, 1))
		e.logger.Error("failed to persist commit", "error", err)
		return nil
	}), nil
}

// flush writes any partially filled storage batch.
func (e *environment) flush(ctx context.Context) error {
	if e.batch == nil {
		return nil
	}
	return e.batch.Flush(ctx, e.metrics)
}

// Close drains buffered commits, closes storage and flushes metrics.
func (e *environment) Close(ctx context.Context) error {
	var errs []error
	if err := e.flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush storage batch: %w", err))
	}
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := e.metrics.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
