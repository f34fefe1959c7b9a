package storage

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
	txlog "github.com/lugondev/fixed-ratio-trading/pkg/log"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// InstructionNamer labels a persisted instruction. An empty name is stored
// as unnamed.
type InstructionNamer func(ix types.Instruction) string

// Sink persists every committed transaction into a Repository. It runs as
// a post-commit processor of the ledger.
type Sink struct {
	common.LoggerMixin
	repo     Repository
	decoder  *decoder.BatchDecoder
	programs []solana.PublicKey
	namer    InstructionNamer
	parser   *txlog.LogParser
	workers  int
}

type SinkOption func(*Sink)

// WithEvents decodes the program data logs of programs through registry and
// stores the resulting events.
func WithEvents(registry *decoder.Registry, programs ...solana.PublicKey) SinkOption {
	return func(s *Sink) {
		s.decoder = decoder.NewBatchDecoder(registry)
		s.programs = append(s.programs, programs...)
	}
}

func WithInstructionNamer(namer InstructionNamer) SinkOption {
	return func(s *Sink) { s.namer = namer }
}

// WithWorkers bounds the number of concurrent repository writes.
func WithWorkers(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewSink(repo Repository, opts ...SinkOption) *Sink {
	s := &Sink{
		LoggerMixin: common.NewLoggerMixin(),
		repo:        repo,
		parser:      txlog.NewParser(),
		workers:     4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process implements processor.Processor[*ledger.Committed].
func (s *Sink) Process(ctx context.Context, c *ledger.Committed, m *metrics.Collection) error {
	meta := c.Meta
	if meta == nil {
		return fmt.Errorf("committed transaction has no status meta")
	}
	signature := meta.Signature.String()

	// The transaction row goes first so readers never see orphaned children.
	numInstructions := 0
	if c.Transaction != nil {
		numInstructions = len(c.Transaction.Instructions)
	}
	if err := s.repo.Transactions().Save(ctx, TransactionToModel(meta, numInstructions, c.UnixTimestamp)); err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", signature, err)
	}

	instructions := s.instructions(signature, c)
	events := s.events(signature, meta, c.UnixTimestamp)

	var (
		snapshots []*AccountModel
		tokens    []*TokenAccountModel
		closed    []string
	)
	for _, ka := range c.Accounts {
		if ka.Account == nil {
			closed = append(closed, ka.Key.String())
			continue
		}
		snapshots = append(snapshots, AccountToModel(ka.Key, ka.Account, meta.Slot))
		if ta, ok := TokenAccountToModel(ka.Key, ka.Account, meta.Slot); ok {
			tokens = append(tokens, ta)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	if len(instructions) > 0 {
		g.Go(func() error { return s.repo.Instructions().SaveBatch(gctx, instructions) })
	}
	if len(events) > 0 {
		g.Go(func() error { return s.repo.Events().SaveBatch(gctx, events) })
	}
	if len(snapshots) > 0 {
		g.Go(func() error { return s.repo.Accounts().SaveBatch(gctx, snapshots) })
	}
	if len(tokens) > 0 {
		g.Go(func() error { return s.repo.TokenAccounts().SaveBatch(gctx, tokens) })
	}
	for _, key := range closed {
		key := key
		g.Go(func() error { return s.repo.Accounts().Delete(gctx, key) })
	}
	if err := g.Wait(); err != nil {
		s.GetLogger().Error("failed to persist commit", "signature", signature, "error", err)
		return err
	}

	if m != nil {
		metrics.LogError(s.GetLogger(), metrics.MetricAccountsPersisted, m.IncrementCounter(ctx, metrics.MetricAccountsPersisted, uint64(len(snapshots))))
	}
	s.GetLogger().Debug("persisted commit",
		"signature", signature,
		"slot", meta.Slot,
		"instructions", len(instructions),
		"events", len(events),
		"accounts", len(snapshots),
		"closed", len(closed),
	)
	return nil
}

func (s *Sink) name(ix types.Instruction) string {
	if s.namer == nil {
		return ""
	}
	return s.namer(ix)
}

func (s *Sink) instructions(signature string, c *ledger.Committed) []*InstructionModel {
	var out []*InstructionModel
	if c.Transaction != nil {
		for i, ix := range c.Transaction.Instructions {
			out = append(out, InstructionToModel(signature, i, nil, ix, s.name(ix)))
		}
	}
	for _, group := range c.Meta.InnerInstructions {
		for j, inner := range group.Instructions {
			j := j
			out = append(out, InstructionToModel(signature, int(group.Index), &j, inner.Instruction, s.name(inner.Instruction)))
		}
	}
	return out
}

func (s *Sink) events(signature string, meta *types.TransactionStatusMeta, blockTime int64) []*EventModel {
	if s.decoder == nil {
		return nil
	}
	var out []*EventModel
	for _, pid := range s.programs {
		pid := pid
		payloads := s.parser.ProgramData(meta.LogMessages, pid)
		if len(payloads) == 0 {
			continue
		}
		decoded := s.decoder.DecodeAllFastWithOptions(payloads, &pid, &decoder.BatchOptions{CollectErrors: true})
		for _, err := range decoded.Errors {
			s.GetLogger().Warn("undecodable program data", "signature", signature, "program", pid, "error", err)
		}
		for _, ev := range decoded.Events {
			model, err := EventToModel(signature, pid, ev.Name, ev.Data, meta.Slot, blockTime)
			if err != nil {
				s.GetLogger().Warn("failed to convert event", "event", ev.Name, "error", err)
				continue
			}
			out = append(out, model)
		}
	}
	return out
}
