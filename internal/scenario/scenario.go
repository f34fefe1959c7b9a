// Package scenario describes scripted exchange sessions in YAML and replays
// them against a ledger through the client SDK.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

// AuthorityUser names the program upgrade authority inside a scenario.
const AuthorityUser = "authority"

const defaultLamports = 10_000_000_000

type Scenario struct {
	Name  string `yaml:"name"`
	Mints []Mint `yaml:"mints"`
	Users []User `yaml:"users"`
	Pools []Pool `yaml:"pools"`
	Steps []Step `yaml:"steps"`
}

type Mint struct {
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// User is a funded keypair. Balances maps mint names to opening token
// balances.
type User struct {
	Name     string            `yaml:"name"`
	Lamports uint64            `yaml:"lamports"`
	Balances map[string]uint64 `yaml:"balances"`
}

func (u User) lamports() uint64 {
	if u.Lamports == 0 {
		return defaultLamports
	}
	return u.Lamports
}

type Pool struct {
	Name   string   `yaml:"name"`
	Owner  string   `yaml:"owner"`
	MintA  string   `yaml:"mint_a"`
	MintB  string   `yaml:"mint_b"`
	RatioA uint64   `yaml:"ratio_a"`
	RatioB uint64   `yaml:"ratio_b"`
	Flags  []string `yaml:"flags"`
}

// Step is one action. Which fields matter depends on Action.
type Step struct {
	Action   string `yaml:"action"`
	User     string `yaml:"user"`
	Pool     string `yaml:"pool"`
	Mint     string `yaml:"mint"`
	Delegate string `yaml:"delegate"`
	Amount   uint64 `yaml:"amount"`
	// Expected is the exact swap output to insist on. Zero accepts any.
	Expected     uint64 `yaml:"expected"`
	Flags        uint8  `yaml:"flags"`
	Reason       uint8  `yaml:"reason"`
	LiquidityFee uint64 `yaml:"liquidity_fee"`
	SwapFee      uint64 `yaml:"swap_fee"`
	Seconds      int64  `yaml:"seconds"`
	// ExpectError is a substring the step's error text must contain, such
	// as "Custom(1027)". Empty means the step must succeed.
	ExpectError string `yaml:"expect_error"`
}


func (s Step) warp() time.Duration {
	return time.Duration(s.Seconds) * time.Second
}

// Actions accepted in a step.
const (
	ActionDeposit          = "deposit"
	ActionWithdraw         = "withdraw"
	ActionSwap             = "swap"
	ActionWarp             = "warp"
	ActionPauseSystem      = "pause_system"
	ActionUnpauseSystem    = "unpause_system"
	ActionPausePool        = "pause_pool"
	ActionUnpausePool      = "unpause_pool"
	ActionUpdateFees       = "update_fees"
	ActionConsolidate      = "consolidate"
	ActionWithdrawTreasury = "withdraw_treasury"
	ActionAddDelegate      = "add_delegate"
	ActionRemoveDelegate   = "remove_delegate"
	ActionRequestFeeChange = "request_fee_change"
	ActionRequestWithdraw  = "request_withdrawal"
	ActionExecuteAction    = "execute_action"
	ActionRevokeAction     = "revoke_action"
)

// needs lists the references each action must carry.
var needs = map[string]struct{ user, pool, mint, delegate bool }{
	ActionDeposit:          {user: true, pool: true, mint: true},
	ActionWithdraw:         {user: true, pool: true, mint: true},
	ActionSwap:             {user: true, pool: true, mint: true},
	ActionWarp:             {},
	ActionPauseSystem:      {},
	ActionUnpauseSystem:    {},
	ActionPausePool:        {pool: true},
	ActionUnpausePool:      {pool: true},
	ActionUpdateFees:       {pool: true},
	ActionConsolidate:      {},
	ActionWithdrawTreasury: {user: true},
	ActionAddDelegate:      {pool: true, delegate: true},
	ActionRemoveDelegate:   {pool: true, delegate: true},
	ActionRequestFeeChange: {user: true, pool: true},
	ActionRequestWithdraw:  {user: true, pool: true, mint: true},
	ActionExecuteAction:    {user: true, pool: true},
	ActionRevokeAction:     {user: true, pool: true},
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks that every name a pool or step refers to is declared.
func (s *Scenario) Validate() error {
	mints := make(map[string]bool)
	for _, m := range s.Mints {
		if m.Name == "" {
			return fmt.Errorf("mint without a name")
		}
		if mints[m.Name] {
			return fmt.Errorf("duplicate mint %q", m.Name)
		}
		mints[m.Name] = true
	}

	users := map[string]bool{AuthorityUser: true}
	for _, u := range s.Users {
		if u.Name == "" {
			return fmt.Errorf("user without a name")
		}
		if users[u.Name] {
			return fmt.Errorf("duplicate user %q", u.Name)
		}
		users[u.Name] = true
		for mint := range u.Balances {
			if !mints[mint] {
				return fmt.Errorf("user %q holds unknown mint %q", u.Name, mint)
			}
		}
	}

	pools := make(map[string]bool)
	for _, p := range s.Pools {
		switch {
		case p.Name == "":
			return fmt.Errorf("pool without a name")
		case pools[p.Name]:
			return fmt.Errorf("duplicate pool %q", p.Name)
		case !users[p.Owner]:
			return fmt.Errorf("pool %q: unknown owner %q", p.Name, p.Owner)
		case !mints[p.MintA] || !mints[p.MintB]:
			return fmt.Errorf("pool %q: unknown mint", p.Name)
		case p.MintA == p.MintB:
			return fmt.Errorf("pool %q: mints must differ", p.Name)
		}
		if _, err := state.ParsePoolFlags(p.Flags); err != nil {
			return fmt.Errorf("pool %q: %w", p.Name, err)
		}
		pools[p.Name] = true
	}

	for i, step := range s.Steps {
		need, ok := needs[step.Action]
		if !ok {
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
		switch {
		case need.user && !users[step.User]:
			return fmt.Errorf("step %d (%s): unknown user %q", i, step.Action, step.User)
		case need.pool && !pools[step.Pool]:
			return fmt.Errorf("step %d (%s): unknown pool %q", i, step.Action, step.Pool)
		case need.mint && !mints[step.Mint]:
			return fmt.Errorf("step %d (%s): unknown mint %q", i, step.Action, step.Mint)
		case need.delegate && !users[step.Delegate]:
			return fmt.Errorf("step %d (%s): unknown delegate %q", i, step.Action, step.Delegate)
		case step.Action == ActionConsolidate && step.Pool != "" && !pools[step.Pool]:
			return fmt.Errorf("step %d (%s): unknown pool %q", i, step.Action, step.Pool)
		}
	}
	return nil
}
