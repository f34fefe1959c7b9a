package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
)

// StepResult is the outcome of one step. Passed compares the outcome with
// the step's ExpectError.
type StepResult struct {
	Index       int
	Action      string
	Signature   solana.Signature
	Events      []string
	Err         error
	ExpectError string
	Passed      bool
}

type Report struct {
	Name  string
	Steps []StepResult
	// Balances maps user name to mint name to the closing token balance.
	Balances map[string]map[string]uint64
}

// Failed counts the steps that did not behave as expected.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed {
			n++
		}
	}
	return n
}

type holding struct {
	owner solana.PublicKey
	mint  solana.PublicKey
}

type requested struct {
	id        uint64
	requester solana.PublicKey
}

// Runner replays scenarios. The program must already be deployed on the
// client's ledger with authority as its upgrade authority.
type Runner struct {
	common.LoggerMixin
	client    *client.Client
	authority solana.PrivateKey

	mints     map[string]solana.PublicKey
	users     map[string]solana.PrivateKey
	pools     map[string]*pda.PoolAddresses
	owners    map[string]solana.PrivateKey
	poolOrder []string
	accounts  map[holding]solana.PublicKey
	actions   map[string]requested
}

func NewRunner(c *client.Client, authority solana.PrivateKey) *Runner {
	return &Runner{
		LoggerMixin: common.NewLoggerMixin(),
		client:      c,
		authority:   authority,
		mints:       make(map[string]solana.PublicKey),
		users:       map[string]solana.PrivateKey{AuthorityUser: authority},
		pools:       make(map[string]*pda.PoolAddresses),
		owners:      make(map[string]solana.PrivateKey),
		accounts:    make(map[holding]solana.PublicKey),
		actions:     make(map[string]requested),
	}
}

// Run sets up the scenario's mints, users and pools, then plays every step.
// Step failures are recorded in the report; only setup failures are returned.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := r.setup(ctx, s); err != nil {
		return nil, fmt.Errorf("scenario %q setup: %w", s.Name, err)
	}

	report := &Report{Name: s.Name}
	for i, step := range s.Steps {
		res, err := r.step(ctx, step)
		sr := StepResult{Index: i, Action: step.Action, Err: err, ExpectError: step.ExpectError}
		if res != nil {
			sr.Signature = res.Signature
			for _, e := range res.Events {
				sr.Events = append(sr.Events, e.Name)
			}
		}
		if step.ExpectError == "" {
			sr.Passed = err == nil
		} else {
			sr.Passed = err != nil && strings.Contains(err.Error(), step.ExpectError)
		}

		log := r.GetLogger().With("step", i, "action", step.Action)
		if sr.Passed {
			log.Info("step done", "error", err)
		} else {
			log.Warn("step did not behave as expected", "error", err, "expect_error", step.ExpectError)
		}
		report.Steps = append(report.Steps, sr)
	}

	report.Balances = make(map[string]map[string]uint64)
	for _, u := range s.Users {
		balances := make(map[string]uint64)
		for _, m := range s.Mints {
			balances[m.Name] = r.Balance(u.Name, m.Name)
		}
		report.Balances[u.Name] = balances
	}
	return report, nil
}

func (r *Runner) setup(ctx context.Context, s *Scenario) error {
	bank := r.client.Bank()
	if _, err := r.client.SystemState(); err != nil {
		if _, err := r.client.InitializeProgram(ctx, r.authority); err != nil {
			return fmt.Errorf("initialize program: %w", err)
		}
	}

	for _, u := range s.Users {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return err
		}
		bank.Airdrop(key.PublicKey(), u.lamports())
		r.users[u.Name] = key
	}

	for _, m := range s.Mints {
		var supply uint64
		for _, u := range s.Users {
			supply += u.Balances[m.Name]
		}
		key := solana.NewWallet().PublicKey()
		bank.SetAccount(key, token.NewMintAccount(bank.Rent(), r.authority.PublicKey(), m.Decimals, supply))
		r.mints[m.Name] = key
	}

	for _, u := range s.Users {
		owner := r.users[u.Name].PublicKey()
		for mint, amount := range u.Balances {
			r.fund(owner, r.mints[mint], amount)
		}
	}

	for _, p := range s.Pools {
		flags, err := state.ParsePoolFlags(p.Flags)
		if err != nil {
			return err
		}
		owner := r.users[p.Owner]
		addrs, _, err := r.client.CreatePool(ctx, owner, r.mints[p.MintA], r.mints[p.MintB], p.RatioA, p.RatioB, flags)
		if err != nil {
			return fmt.Errorf("create pool %q: %w", p.Name, err)
		}
		r.pools[p.Name] = addrs
		r.owners[p.Name] = owner
		r.poolOrder = append(r.poolOrder, p.Name)
		r.GetLogger().Info("pool created", "pool", p.Name, "address", addrs.PoolState.Key)
	}
	return nil
}

func (r *Runner) fund(owner, mint solana.PublicKey, amount uint64) solana.PublicKey {
	bank := r.client.Bank()
	key := solana.NewWallet().PublicKey()
	bank.SetAccount(key, token.NewTokenAccount(bank.Rent(), mint, owner, amount))
	r.accounts[holding{owner, mint}] = key
	return key
}

// account returns owner's token account for mint, opening an empty one on
// first use.
func (r *Runner) account(owner, mint solana.PublicKey) solana.PublicKey {
	if key, ok := r.accounts[holding{owner, mint}]; ok {
		return key
	}
	return r.fund(owner, mint, 0)
}

// Balance reads a user's token balance for a declared mint.
func (r *Runner) Balance(user, mint string) uint64 {
	u, ok := r.users[user]
	if !ok {
		return 0
	}
	key, ok := r.accounts[holding{u.PublicKey(), r.mints[mint]}]
	if !ok {
		return 0
	}
	amount, err := token.Balance(r.client.Bank(), key)
	if err != nil {
		return 0
	}
	return amount
}

// Pool returns the addresses of a pool created by the scenario.
func (r *Runner) Pool(name string) (*pda.PoolAddresses, bool) {
	p, ok := r.pools[name]
	return p, ok
}

func (r *Runner) step(ctx context.Context, step Step) (*client.Result, error) {
	c := r.client
	user := r.users[step.User]
	mint := r.mints[step.Mint]
	pool := r.pools[step.Pool]
	var poolKey solana.PublicKey
	if pool != nil {
		poolKey = pool.PoolState.Key
	}

	switch step.Action {
	case ActionDeposit, ActionWithdraw:
		acc := instruction.LiquidityAccounts{
			TokenAccount: r.account(user.PublicKey(), mint),
			LpAccount:    r.account(user.PublicKey(), pool.LpMint(mint.Equals(pool.TokenAMint)).Key),
		}
		if step.Action == ActionDeposit {
			return c.Deposit(ctx, user, pool, acc, mint, step.Amount)
		}
		return c.Withdraw(ctx, user, pool, acc, mint, step.Amount)

	case ActionSwap:
		output := pool.TokenAMint
		if mint.Equals(pool.TokenAMint) {
			output = pool.TokenBMint
		}
		acc := instruction.SwapAccounts{
			InputAccount:  r.account(user.PublicKey(), mint),
			OutputAccount: r.account(user.PublicKey(), output),
		}
		return c.Swap(ctx, user, pool, acc, mint, step.Amount, step.Expected)

	case ActionWarp:
		c.Bank().Warp(step.warp())
		return nil, nil

	case ActionPauseSystem:
		return c.PauseSystem(ctx, r.authority, step.Reason)
	case ActionUnpauseSystem:
		return c.UnpauseSystem(ctx, r.authority)
	case ActionPausePool:
		return c.PausePool(ctx, r.authority, poolKey, step.Flags)
	case ActionUnpausePool:
		return c.UnpausePool(ctx, r.authority, poolKey, step.Flags)
	case ActionUpdateFees:
		return c.UpdatePoolFees(ctx, r.authority, poolKey, step.Flags, step.LiquidityFee, step.SwapFee)

	case ActionConsolidate:
		names := r.poolOrder
		if step.Pool != "" {
			names = []string{step.Pool}
		}
		keys := make([]solana.PublicKey, 0, len(names))
		for _, name := range names {
			keys = append(keys, r.pools[name].PoolState.Key)
		}
		return c.ConsolidatePoolFees(ctx, r.authority, keys...)

	case ActionWithdrawTreasury:
		return c.WithdrawTreasuryFees(ctx, r.authority, user.PublicKey(), step.Amount)

	case ActionAddDelegate:
		return c.AddDelegate(ctx, r.owners[step.Pool], poolKey, r.users[step.Delegate].PublicKey())
	case ActionRemoveDelegate:
		return c.RemoveDelegate(ctx, r.owners[step.Pool], poolKey, r.users[step.Delegate].PublicKey())

	case ActionRequestFeeChange, ActionRequestWithdraw:
		var params state.ActionParams = state.FeeChangeParams{NewFeeBasisPoints: step.SwapFee}
		if step.Action == ActionRequestWithdraw {
			params = state.WithdrawalParams{TokenMint: mint, Amount: step.Amount}
		}
		id, res, err := c.RequestDelegateAction(ctx, user, poolKey, params)
		if err == nil {
			r.actions[step.Pool] = requested{id: id, requester: user.PublicKey()}
		}
		return res, err

	case ActionExecuteAction, ActionRevokeAction:
		action, ok := r.actions[step.Pool]
		if !ok {
			return nil, fmt.Errorf("no delegate action requested on pool %q", step.Pool)
		}
		if step.Action == ActionRevokeAction {
			return c.RevokeDelegateAction(ctx, user, poolKey, action.id)
		}
		var withdrawal *instruction.WithdrawalAccounts
		if step.Mint != "" {
			withdrawal = &instruction.WithdrawalAccounts{
				Vault:       pool.Vault(mint.Equals(pool.TokenAMint)).Key,
				Destination: r.account(action.requester, mint),
			}
		}
		return c.ExecuteDelegateAction(ctx, user, poolKey, action.id, withdrawal)
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}
