// Package client submits fixed-ratio program instructions to a ledger Bank
// and decodes what comes back: return data, events and account state.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
	txlog "github.com/lugondev/fixed-ratio-trading/pkg/log"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// Result is an executed transaction, successful or not.
type Result struct {
	Signature solana.Signature
	Meta      *types.TransactionStatusMeta
	Events    []*decoder.Event
}

// Client sends transactions for one deployed program.
type Client struct {
	common.LoggerMixin
	bank      *ledger.Bank
	programID solana.PublicKey
	builder   *instruction.Builder
	registry  *decoder.Registry
	parser    *txlog.LogParser
	retry     config.ClientConfig
}

type Option func(*Client)

// WithRetry sets the AccountInUse retry policy.
func WithRetry(cfg config.ClientConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithRegistry decodes events with reg instead of a private registry.
func WithRegistry(reg *decoder.Registry) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

func New(bank *ledger.Bank, programID solana.PublicKey, opts ...Option) (*Client, error) {
	builder, err := instruction.NewBuilder(programID)
	if err != nil {
		return nil, err
	}
	c := &Client{
		LoggerMixin: common.NewLoggerMixin(),
		bank:        bank,
		programID:   programID,
		builder:     builder,
		parser:      txlog.NewParser(),
		retry:       config.DefaultConfig().Client,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = decoder.NewRegistry()
		program.RegisterEvents(c.registry, programID)
	}
	return c, nil
}

func (c *Client) ProgramID() solana.PublicKey   { return c.programID }
func (c *Client) Builder() *instruction.Builder { return c.builder }
func (c *Client) Bank() *ledger.Bank            { return c.bank }
func (c *Client) Registry() *decoder.Registry   { return c.registry }

func (c *Client) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.retry.RetryInitialInterval > 0 {
		b.InitialInterval = c.retry.RetryInitialInterval
		b.MaxInterval = c.retry.RetryInitialInterval * 10
	}
	return b
}

// Send signs ixs with payer and signers and processes them. A transaction
// rejected with AccountInUse never executed, so it is rebuilt on a fresh
// blockhash and retried with exponential backoff. Any other rejection, or
// an executed transaction that failed, ends the retries. The result is
// returned together with the failure whenever the transaction executed.
func (c *Client) Send(ctx context.Context, payer solana.PrivateKey, signers []solana.PrivateKey, ixs ...types.Instruction) (*Result, error) {
	keys := append([]solana.PrivateKey{payer}, signers...)

	var result *Result
	op := func() (*Result, error) {
		tx := ledger.NewTransaction(ixs, c.bank.LatestBlockhash(), payer.PublicKey())
		if err := tx.SignWith(keys...); err != nil {
			return nil, backoff.Permanent(err)
		}
		meta, err := c.bank.Process(ctx, tx)
		if meta == nil {
			if errors.Is(err, errors.ErrAccountInUse) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		result = &Result{Signature: meta.Signature, Meta: meta, Events: c.events(meta)}
		if err != nil {
			return result, backoff.Permanent(err)
		}
		return result, nil
	}

	notify := func(err error, wait time.Duration) {
		c.GetLogger().Debug("retrying transaction", "payer", payer.PublicKey(), "error", err, "backoff", wait)
	}
	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.retry.MaxRetries + 1),
		backoff.WithNotify(notify),
	}
	if c.retry.RetryMaxElapsedTime > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(c.retry.RetryMaxElapsedTime))
	}

	_, err := backoff.Retry(ctx, op, retryOpts...)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (c *Client) events(meta *types.TransactionStatusMeta) []*decoder.Event {
	payloads := c.parser.ProgramData(meta.LogMessages, c.programID)
	if len(payloads) == 0 {
		return nil
	}
	events, err := c.registry.DecodeAll(payloads, &c.programID)
	if err != nil {
		c.GetLogger().Warn("event decoding failed", "signature", meta.Signature, "error", err)
	}
	return events
}

// Event returns the first event named name, or nil.
func (r *Result) Event(name string) *decoder.Event {
	if r == nil {
		return nil
	}
	for _, e := range r.Events {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ReturnData returns the program's return data, failing when the program set none.
func (r *Result) ReturnData(programID solana.PublicKey) ([]byte, error) {
	if r == nil || r.Meta == nil || r.Meta.ReturnData == nil {
		return nil, fmt.Errorf("transaction produced no return data")
	}
	if !r.Meta.ReturnData.ProgramID.Equals(programID) {
		return nil, fmt.Errorf("return data set by %s, not %s", r.Meta.ReturnData.ProgramID, programID)
	}
	return r.Meta.ReturnData.Data, nil
}
