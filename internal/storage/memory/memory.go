// Package memory is a process-local storage backend used by the simulator
// and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

func init() {
	storage.RegisterMemoryFactory(func(ctx context.Context) (storage.Repository, error) {
		return New(), nil
	})
}

// Repository keeps every record in maps guarded by one lock.
type Repository struct {
	mu            sync.RWMutex
	accounts      map[string]*storage.AccountModel
	transactions  []*storage.TransactionModel
	bySignature   map[string]*storage.TransactionModel
	instructions  []*storage.InstructionModel
	events        []*storage.EventModel
	tokenAccounts map[string]*storage.TokenAccountModel
	closed        bool
}

func New() *Repository {
	return &Repository{
		accounts:      make(map[string]*storage.AccountModel),
		bySignature:   make(map[string]*storage.TransactionModel),
		tokenAccounts: make(map[string]*storage.TokenAccountModel),
	}
}

func (r *Repository) Accounts() storage.AccountRepository           { return (*accountRepo)(r) }
func (r *Repository) Transactions() storage.TransactionRepository   { return (*transactionRepo)(r) }
func (r *Repository) Instructions() storage.InstructionRepository   { return (*instructionRepo)(r) }
func (r *Repository) Events() storage.EventRepository               { return (*eventRepo)(r) }
func (r *Repository) TokenAccounts() storage.TokenAccountRepository { return (*tokenAccountRepo)(r) }

func (r *Repository) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return storage.ErrClosed
	}
	return ctx.Err()
}

// page applies offset and limit to n items. A non-positive limit means all.
func page(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

type accountRepo Repository

func (a *accountRepo) Save(ctx context.Context, account *storage.AccountModel) error {
	return a.SaveBatch(ctx, []*storage.AccountModel{account})
}

func (a *accountRepo) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, acc := range accounts {
		cp := *acc
		if prev, ok := a.accounts[acc.Pubkey]; ok {
			cp.CreatedAt = prev.CreatedAt
		}
		cp.UpdatedAt = time.Now()
		a.accounts[acc.Pubkey] = &cp
	}
	return nil
}

func (a *accountRepo) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (a *accountRepo) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	a.mu.RLock()
	var out []*storage.AccountModel
	for _, acc := range a.accounts {
		if acc.Owner == owner {
			cp := *acc
			out = append(out, &cp)
		}
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Pubkey < out[j].Pubkey })
	lo, hi := page(len(out), limit, offset)
	return out[lo:hi], nil
}

func (a *accountRepo) Delete(ctx context.Context, pubkey string) error {
	a.mu.Lock()
	delete(a.accounts, pubkey)
	delete(a.tokenAccounts, pubkey)
	a.mu.Unlock()
	return nil
}

type transactionRepo Repository

func (t *transactionRepo) Save(ctx context.Context, tx *storage.TransactionModel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bySignature[tx.Signature]; ok {
		return storage.ErrDuplicate
	}
	cp := *tx
	t.transactions = append(t.transactions, &cp)
	t.bySignature[tx.Signature] = &cp
	return nil
}

func (t *transactionRepo) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tx, ok := t.bySignature[signature]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (t *transactionRepo) FindBySlot(ctx context.Context, slot uint64) ([]*storage.TransactionModel, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*storage.TransactionModel
	for _, tx := range t.transactions {
		if tx.Slot == slot {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *transactionRepo) FindByAccountKey(ctx context.Context, accountKey string, limit int, offset int) ([]*storage.TransactionModel, error) {
	t.mu.RLock()
	var out []*storage.TransactionModel
	for i := len(t.transactions) - 1; i >= 0; i-- {
		tx := t.transactions[i]
		for _, k := range tx.AccountKeys {
			if k == accountKey {
				cp := *tx
				out = append(out, &cp)
				break
			}
		}
	}
	t.mu.RUnlock()
	lo, hi := page(len(out), limit, offset)
	return out[lo:hi], nil
}

// FindRecent returns the newest transactions first.
func (t *transactionRepo) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*storage.TransactionModel
	for i := len(t.transactions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *t.transactions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (t *transactionRepo) FindFailed(ctx context.Context, code *uint32, limit int, offset int) ([]*storage.TransactionModel, error) {
	t.mu.RLock()
	var out []*storage.TransactionModel
	for i := len(t.transactions) - 1; i >= 0; i-- {
		tx := t.transactions[i]
		if tx.Success || (code != nil && (tx.ErrorCode == nil || *tx.ErrorCode != *code)) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	t.mu.RUnlock()
	lo, hi := page(len(out), limit, offset)
	return out[lo:hi], nil
}

type instructionRepo Repository

func (r *instructionRepo) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ix := range instructions {
		cp := *ix
		r.instructions = append(r.instructions, &cp)
	}
	return nil
}

func (r *instructionRepo) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*storage.InstructionModel
	for _, ix := range r.instructions {
		if ix.Signature == signature {
			cp := *ix
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return instructionLess(out[i], out[j]) })
	return out, nil
}

func (r *instructionRepo) FindByName(ctx context.Context, programID, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	r.mu.RLock()
	var out []*storage.InstructionModel
	for _, ix := range r.instructions {
		if ix.ProgramID == programID && ix.Name == name {
			cp := *ix
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	lo, hi := page(len(out), limit, offset)
	return out[lo:hi], nil
}

// instructionLess orders a top-level instruction before its inner ones.
func instructionLess(a, b *storage.InstructionModel) bool {
	if a.InstructionIndex != b.InstructionIndex {
		return a.InstructionIndex < b.InstructionIndex
	}
	if a.InnerIndex == nil || b.InnerIndex == nil {
		return a.InnerIndex == nil && b.InnerIndex != nil
	}
	return *a.InnerIndex < *b.InnerIndex
}

type eventRepo Repository

func (r *eventRepo) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range events {
		cp := *ev
		r.events = append(r.events, &cp)
	}
	return nil
}

func (r *eventRepo) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*storage.EventModel
	for _, ev := range r.events {
		if ev.Signature == signature {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *eventRepo) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	r.mu.RLock()
	var out []*storage.EventModel
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventName == eventName {
			cp := *r.events[i]
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	lo, hi := page(len(out), limit, offset)
	return out[lo:hi], nil
}

type tokenAccountRepo Repository

func (r *tokenAccountRepo) SaveBatch(ctx context.Context, tokenAccounts []*storage.TokenAccountModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ta := range tokenAccounts {
		cp := *ta
		if prev, ok := r.tokenAccounts[ta.Address]; ok {
			cp.CreatedAt = prev.CreatedAt
		}
		r.tokenAccounts[ta.Address] = &cp
	}
	return nil
}

func (r *tokenAccountRepo) FindByAddress(ctx context.Context, address string) (*storage.TokenAccountModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ta, ok := r.tokenAccounts[address]
	if !ok {
		return nil, nil
	}
	cp := *ta
	return &cp, nil
}

func (r *tokenAccountRepo) find(match func(*storage.TokenAccountModel) bool, limit, offset int) []*storage.TokenAccountModel {
	r.mu.RLock()
	var out []*storage.TokenAccountModel
	for _, ta := range r.tokenAccounts {
		if match(ta) {
			cp := *ta
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	lo, hi := page(len(out), limit, offset)
	return out[lo:hi]
}

func (r *tokenAccountRepo) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return r.find(func(ta *storage.TokenAccountModel) bool { return ta.Owner == owner }, limit, offset), nil
}

func (r *tokenAccountRepo) FindByMint(ctx context.Context, mint string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return r.find(func(ta *storage.TokenAccountModel) bool { return ta.Mint == mint }, limit, offset), nil
}
