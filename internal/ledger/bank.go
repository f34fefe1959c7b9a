// Package ledger is an in-process account ledger with the execution contract
// Solana programs rely on: atomic multi-instruction transactions, account write
// locks, signer and ownership checks, program-derived-address signing for
// cross-program calls, rent, a clock, a compute budget and program logs.
package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/processor"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// MaxRecentBlockhashes is how many blockhashes stay valid for new transactions.
const MaxRecentBlockhashes = 150

// Config holds the bank's fee, budget and rent parameters.
type Config struct {
	LamportsPerSignature uint64
	ComputeUnitLimit     uint64
	Rent                 Rent
	GenesisUnixTimestamp int64
}

// DefaultConfig returns mainnet-like parameters.
func DefaultConfig() Config {
	return Config{
		LamportsPerSignature: 5_000,
		ComputeUnitLimit:     200_000,
		Rent:                 DefaultRent(),
		GenesisUnixTimestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}
}

// KeyedAccount pairs an address with its account. A nil Account marks an
// account that was closed.
type KeyedAccount struct {
	Key     solana.PublicKey
	Account *types.Account
}

// Committed is handed to post-commit processors for every processed
// transaction, successful or not.
type Committed struct {
	Transaction *Transaction
	Meta        *types.TransactionStatusMeta
	// Accounts holds the post-state of every account the commit wrote.
	Accounts []KeyedAccount
	// UnixTimestamp is the ledger clock the transaction ran under.
	UnixTimestamp int64
}

// InstructionError attributes a failure to one instruction of a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

type registered struct {
	program Program
	builtin bool
}

// Bank holds every account and executes transactions against them.
type Bank struct {
	common.LoggerMixin

	cfg Config

	mu          sync.RWMutex
	accounts    map[solana.PublicKey]*types.Account
	programs    map[solana.PublicKey]registered
	clock       Clock
	blockhashes []solana.Hash
	processed   map[solana.Hash]map[solana.Signature]struct{}
	inflight    map[solana.Signature]struct{}

	locks    *accountLocks
	onCommit processor.Processor[*Committed]
	metrics  *metrics.Collection
}

// Option configures a Bank.
type Option func(*Bank)

// WithCommitProcessor runs p after every commit.
func WithCommitProcessor(p processor.Processor[*Committed]) Option {
	return func(b *Bank) { b.onCommit = p }
}

// WithMetrics sets the metrics collection.
func WithMetrics(m *metrics.Collection) Option {
	return func(b *Bank) { b.metrics = m }
}

// NewBank creates a bank with the system program and loader registered.
func NewBank(cfg Config, opts ...Option) *Bank {
	b := &Bank{
		LoggerMixin: common.NewLoggerMixin(),
		cfg:         cfg,
		accounts:    make(map[solana.PublicKey]*types.Account),
		programs:    make(map[solana.PublicKey]registered),
		clock:       Clock{UnixTimestamp: cfg.GenesisUnixTimestamp},
		processed:   make(map[solana.Hash]map[solana.Signature]struct{}),
		inflight:    make(map[solana.Signature]struct{}),
		locks:       newAccountLocks(),
		onCommit:    processor.NewNoopProcessor[*Committed](),
		metrics:     metrics.NewCollection(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pushBlockhash()
	b.RegisterBuiltin(solana.SystemProgramID, "system_program", SystemProgram{})
	b.RegisterBuiltin(LoaderProgramID, "bpf_loader_upgradeable_program", LoaderProgram{})
	return b
}

// Config returns the bank configuration.
func (b *Bank) Config() Config { return b.cfg }

// Rent returns the rent schedule.
func (b *Bank) Rent() Rent { return b.cfg.Rent }

// Metrics returns the metrics collection.
func (b *Bank) Metrics() *metrics.Collection { return b.metrics }

func (b *Bank) pushBlockhash() {
	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], b.clock.Slot)
	prev := solana.Hash{}
	if n := len(b.blockhashes); n > 0 {
		prev = b.blockhashes[n-1]
	}
	h := solana.Hash(sha256.Sum256(append(prev[:], slot[:]...)))
	b.blockhashes = append(b.blockhashes, h)
	b.processed[h] = make(map[solana.Signature]struct{})
	if len(b.blockhashes) > MaxRecentBlockhashes {
		delete(b.processed, b.blockhashes[0])
		b.blockhashes = b.blockhashes[1:]
	}
}

// RegisterBuiltin installs a native program at id.
func (b *Bank) RegisterBuiltin(id solana.PublicKey, name string, program Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[id] = registered{program: program, builtin: true}
	b.accounts[id] = &types.Account{
		Lamports:   1,
		Data:       []byte(name),
		Owner:      NativeLoaderID,
		Executable: true,
	}
}

// Deploy installs program at programID the way the upgradeable loader does:
// an executable program account pointing at a program-data record that holds
// the upgrade authority. A nil authority deploys an immutable program.
func (b *Bank) Deploy(programID solana.PublicKey, program Program, upgradeAuthority *solana.PublicKey) error {
	programData, _, err := FindProgramDataAddress(programID)
	if err != nil {
		return errors.ErrInvalidSeeds.WithCause(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.programs[programID]; ok {
		return errors.ErrAccountAlreadyInUse.Withf("program %s already deployed", programID)
	}
	header := MarshalProgramData(ProgramData{Slot: b.clock.Slot, UpgradeAuthority: upgradeAuthority})
	b.accounts[programData] = &types.Account{
		Lamports: b.cfg.Rent.MinimumBalance(len(header)),
		Data:     header,
		Owner:    LoaderProgramID,
	}
	b.accounts[programID] = &types.Account{
		Lamports:   b.cfg.Rent.MinimumBalance(ProgramAccountLen),
		Data:       marshalProgramAccount(programData),
		Owner:      LoaderProgramID,
		Executable: true,
	}
	b.programs[programID] = registered{program: program}
	b.GetLogger().Info("program deployed", "program_id", programID, "program_data", programData)
	return nil
}

func (b *Bank) program(id solana.PublicKey) (Program, bool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.programs[id]
	return r.program, r.builtin, ok
}

// Airdrop credits lamports to key out of thin air.
func (b *Bank) Airdrop(key solana.PublicKey, lamports uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[key]
	if !ok {
		acct = &types.Account{Owner: solana.SystemProgramID}
		b.accounts[key] = acct
	}
	acct.Lamports += lamports
}

// SetAccount stores a copy of acct at key.
func (b *Bank) SetAccount(key solana.PublicKey, acct *types.Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[key] = acct.Clone()
}

// GetAccount returns a copy of the account at key.
func (b *Bank) GetAccount(key solana.PublicKey) (*types.Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acct, ok := b.accounts[key]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Balance returns the lamport balance of key, 0 if it does not exist.
func (b *Bank) Balance(key solana.PublicKey) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if acct, ok := b.accounts[key]; ok {
		return acct.Lamports
	}
	return 0
}

// ProgramAccounts returns copies of every account owned by owner, sorted by key.
func (b *Bank) ProgramAccounts(owner solana.PublicKey) []KeyedAccount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []KeyedAccount
	for k, a := range b.accounts {
		if a.Owner.Equals(owner) {
			out = append(out, KeyedAccount{Key: k, Account: a.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key[:], out[j].Key[:]) < 0 })
	return out
}

// Clock returns the current clock.
func (b *Bank) Clock() Clock {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clock
}

// Warp advances the clock by d and moves the slot forward accordingly.
func (b *Bank) Warp(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock.UnixTimestamp += int64(d / time.Second)
	b.clock.Slot += uint64(d / SlotDuration)
	b.clock.Epoch = b.clock.Slot / slotsPerEpoch
	b.pushBlockhash()
}

// SetUnixTimestamp pins the clock's unix timestamp.
func (b *Bank) SetUnixTimestamp(ts int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock.UnixTimestamp = ts
}

// LatestBlockhash returns the newest blockhash.
func (b *Bank) LatestBlockhash() solana.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blockhashes[len(b.blockhashes)-1]
}

func (b *Bank) isRecentBlockhash(h solana.Hash) bool {
	_, ok := b.processed[h]
	return ok
}

// workingSet holds private copies of every account a transaction touches.
type workingSet struct {
	accounts map[solana.PublicKey]*types.Account
	pre      map[solana.PublicKey]uint64
}

func (ws *workingSet) lamports() (sum uint64) {
	for _, a := range ws.accounts {
		sum += a.Lamports
	}
	return sum
}

func (b *Bank) load(keys []solana.PublicKey) *workingSet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ws := &workingSet{
		accounts: make(map[solana.PublicKey]*types.Account, len(keys)),
		pre:      make(map[solana.PublicKey]uint64, len(keys)),
	}
	for _, k := range keys {
		if acct, ok := b.accounts[k]; ok {
			ws.accounts[k] = acct.Clone()
		} else {
			ws.accounts[k] = &types.Account{Owner: solana.SystemProgramID}
		}
		ws.pre[k] = ws.accounts[k].Lamports
	}
	return ws
}

// Process verifies, executes and commits tx. A transaction rejected before
// execution (bad signature, unknown blockhash, lock conflict, fee payer
// unable to pay) returns a nil meta. Once executed, the meta is returned and
// the error equals meta.Err: on failure every effect except the fee is
// discarded.
func (b *Bank) Process(ctx context.Context, tx *Transaction) (*types.TransactionStatusMeta, error) {
	if len(tx.Instructions) == 0 {
		return nil, errors.ErrInvalidArgument.Withf("transaction has no instructions")
	}
	if err := tx.Verify(); err != nil {
		return nil, err
	}
	sig := tx.Signature()

	clock, err := b.reserve(tx.RecentBlockhash, sig)
	if err != nil {
		return nil, err
	}
	defer b.unreserve(sig)

	writable, readonly := tx.lockSets()
	if err := b.locks.acquire(writable, readonly); err != nil {
		metrics.LogError(b.GetLogger(), metrics.MetricTransactionsConflicts, b.metrics.IncrementCounter(ctx, metrics.MetricTransactionsConflicts, 1))
		return nil, err
	}
	defer b.locks.release(writable, readonly)

	keys := tx.AccountKeys()
	ws := b.load(keys)
	fee := b.cfg.LamportsPerSignature * uint64(len(tx.Signatures))
	payer := ws.accounts[tx.FeePayer]
	if payer.Lamports < fee {
		return nil, errors.ErrInsufficientFundsForFee.Withf("fee payer %s holds %d lamports, fee is %d", tx.FeePayer, payer.Lamports, fee)
	}
	payer.Lamports -= fee
	payerAfterFee := payer.Clone()

	exec := &execution{
		ctx:   ctx,
		bank:  b,
		ws:    ws,
		clock: clock,
		rent:  b.cfg.Rent,
		limit: b.cfg.ComputeUnitLimit,
	}
	meta := &types.TransactionStatusMeta{
		Signature:   sig,
		Fee:         fee,
		AccountKeys: keys,
		PreBalances: make([]uint64, len(keys)),
	}
	for i, k := range keys {
		meta.PreBalances[i] = ws.pre[k]
	}

	execErr := b.execute(exec, tx, meta, writable)

	var committed []KeyedAccount
	if execErr != nil {
		meta.Err = execErr
		committed = b.commit(sig, tx.RecentBlockhash, meta, map[solana.PublicKey]*types.Account{tx.FeePayer: payerAfterFee}, []solana.PublicKey{tx.FeePayer})
	} else {
		committed = b.commit(sig, tx.RecentBlockhash, meta, ws.accounts, writable)
	}

	meta.LogMessages = exec.logs
	meta.ReturnData = exec.returnData
	meta.ComputeUnitsConsumed = exec.used
	meta.PostBalances = make([]uint64, len(keys))
	for i, k := range keys {
		if execErr != nil {
			meta.PostBalances[i] = ws.pre[k]
		} else {
			meta.PostBalances[i] = ws.accounts[k].Lamports
		}
	}
	if execErr != nil {
		// keys[0] is always the fee payer.
		meta.PostBalances[0] = payerAfterFee.Lamports
	}

	b.record(ctx, meta)
	done := &Committed{Transaction: tx, Meta: meta, Accounts: committed, UnixTimestamp: exec.clock.UnixTimestamp}
	if err := b.onCommit.Process(ctx, done, b.metrics); err != nil {
		b.GetLogger().Error("post-commit processing failed", "signature", sig, "error", err)
	}
	return meta, execErr
}

// reserve claims sig for the duration of one Process call, so a copy of the
// same transaction submitted concurrently is rejected instead of running
// once the first releases its account locks.
func (b *Bank) reserve(blockhash solana.Hash, sig solana.Signature) (Clock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isRecentBlockhash(blockhash) {
		return Clock{}, errors.ErrBlockhashNotFound
	}
	if _, seen := b.processed[blockhash][sig]; seen {
		return Clock{}, errors.ErrAlreadyProcessed
	}
	if _, running := b.inflight[sig]; running {
		return Clock{}, errors.ErrAlreadyProcessed
	}
	b.inflight[sig] = struct{}{}
	return b.clock, nil
}

func (b *Bank) unreserve(sig solana.Signature) {
	b.mu.Lock()
	delete(b.inflight, sig)
	b.mu.Unlock()
}

func (b *Bank) execute(exec *execution, tx *Transaction, meta *types.TransactionStatusMeta, writable []solana.PublicKey) error {
	for i, ix := range tx.Instructions {
		before := exec.ws.lamports()
		exec.inner = nil
		if err := exec.invoke(ix, 1); err != nil {
			meta.InnerInstructions = appendInner(meta.InnerInstructions, i, exec.inner)
			return &InstructionError{Index: i, Err: err}
		}
		meta.InnerInstructions = appendInner(meta.InnerInstructions, i, exec.inner)
		if exec.ws.lamports() != before {
			return &InstructionError{Index: i, Err: errors.ErrUnbalancedInstruction}
		}
	}

	for _, k := range writable {
		acct := exec.ws.accounts[k]
		if acct.Lamports == 0 || len(acct.Data) == 0 {
			continue
		}
		if !exec.rent.IsExempt(acct.Lamports, len(acct.Data)) {
			return errors.ErrInsufficientFundsForRent.Withf("account %s holds %d lamports, needs %d", k, acct.Lamports, exec.rent.MinimumBalance(len(acct.Data)))
		}
	}
	return nil
}

func appendInner(list []types.InnerInstructions, index int, inner []types.InnerInstruction) []types.InnerInstructions {
	if len(inner) == 0 {
		return list
	}
	return append(list, types.InnerInstructions{Index: uint8(index), Instructions: inner})
}

// commit writes the given accounts back, purging those left without lamports,
// and advances the slot.
func (b *Bank) commit(sig solana.Signature, blockhash solana.Hash, meta *types.TransactionStatusMeta, accounts map[solana.PublicKey]*types.Account, keys []solana.PublicKey) []KeyedAccount {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]KeyedAccount, 0, len(keys))
	for _, k := range keys {
		acct := accounts[k]
		if acct.Lamports == 0 {
			delete(b.accounts, k)
			out = append(out, KeyedAccount{Key: k})
			continue
		}
		b.accounts[k] = acct.Clone()
		out = append(out, KeyedAccount{Key: k, Account: acct.Clone()})
	}
	if set, ok := b.processed[blockhash]; ok {
		set[sig] = struct{}{}
	}
	meta.Slot = b.clock.Slot
	b.clock.Slot++
	b.clock.Epoch = b.clock.Slot / slotsPerEpoch
	b.pushBlockhash()
	return out
}

func (b *Bank) record(ctx context.Context, meta *types.TransactionStatusMeta) {
	metrics.LogError(b.GetLogger(), metrics.MetricComputeUnits, b.metrics.RecordHistogram(ctx, metrics.MetricComputeUnits, float64(meta.ComputeUnitsConsumed)))
	if meta.Err != nil {
		metrics.LogError(b.GetLogger(), metrics.MetricTransactionsFailed, b.metrics.IncrementCounter(ctx, metrics.MetricTransactionsFailed, 1))
		b.GetLogger().Warn("transaction failed",
			"signature", meta.Signature,
			"slot", meta.Slot,
			"fee", meta.Fee,
			"compute_units", meta.ComputeUnitsConsumed,
			"error", errors.LogString(meta.Err),
		)
		return
	}
	metrics.LogError(b.GetLogger(), metrics.MetricTransactionsCommitted, b.metrics.IncrementCounter(ctx, metrics.MetricTransactionsCommitted, 1))
	b.GetLogger().Debug("transaction committed",
		"signature", meta.Signature,
		"slot", meta.Slot,
		"fee", meta.Fee,
		"compute_units", meta.ComputeUnitsConsumed,
	)
}
