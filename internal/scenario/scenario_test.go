package scenario

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	bank := ledger.NewBank(ledger.DefaultConfig())
	require.NoError(t, token.Install(bank))
	prog, err := program.New(program.DefaultProgramID)
	require.NoError(t, err)

	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	bank.Airdrop(authority.PublicKey(), 10_000_000_000)
	require.NoError(t, prog.Deploy(bank, authority.PublicKey()))

	c, err := client.New(bank, prog.ID())
	require.NoError(t, err)
	return NewRunner(c, authority)
}

func TestRunBasicScenario(t *testing.T) {
	s, err := Load("testdata/basic.yaml")
	require.NoError(t, err)

	r := newRunner(t)
	report, err := r.Run(context.Background(), s)
	require.NoError(t, err)

	for _, step := range report.Steps {
		assert.True(t, step.Passed, "step %d (%s): %v", step.Index, step.Action, step.Err)
	}
	assert.Zero(t, report.Failed())
	assert.Contains(t, report.Steps[2].Events, "SwapExecuted")

	assert.Equal(t, uint64(1_000), report.Balances["trader"]["alpha"])
	assert.Equal(t, uint64(500), report.Balances["trader"]["beta"])
	assert.Equal(t, uint64(6_000), report.Balances["lp"]["alpha"])
	assert.Equal(t, uint64(6_000), report.Balances["lp"]["beta"])

	addrs, ok := r.Pool("main")
	require.True(t, ok)
	pool, err := r.client.Pool(addrs.PoolState.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), pool.SwapFeeBasisPoints)
}

func TestRunThreeToOneOnSixDecimalMints(t *testing.T) {
	s, err := Load("testdata/decimals.yaml")
	require.NoError(t, err)

	r := newRunner(t)
	report, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	for _, step := range report.Steps {
		assert.True(t, step.Passed, "step %d (%s): %v", step.Index, step.Action, step.Err)
	}

	assert.Equal(t, uint64(1_000_000), report.Balances["trader"]["beta"])
	assert.Zero(t, report.Balances["trader"]["alpha"])
	assert.Equal(t, uint64(3_000_000), report.Balances["lp"]["alpha"])

	addrs, ok := r.Pool("main")
	require.True(t, ok)
	pool, err := r.client.Pool(addrs.PoolState.Key)
	require.NoError(t, err)
	assert.True(t, pool.Flags.Has(state.FlagSimpleRatio))
}

func TestUnexpectedOutcomesAreReported(t *testing.T) {
	s, err := Parse([]byte(`
name: mismatch
mints: [{name: a}, {name: b}]
users: [{name: u, balances: {a: 100}}]
pools: [{name: p, owner: u, mint_a: a, mint_b: b, ratio_a: 1, ratio_b: 1}]
steps:
  - {action: swap, user: u, pool: p, mint: a, amount: 10}
  - {action: deposit, user: u, pool: p, mint: a, amount: 0, expect_error: InvalidArgument}
  - {action: deposit, user: u, pool: p, mint: a, amount: 50, expect_error: InvalidArgument}
`))
	require.NoError(t, err)

	report, err := newRunner(t).Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, report.Steps, 3)

	assert.False(t, report.Steps[0].Passed, "swap against an empty pool must fail")
	assert.Error(t, report.Steps[0].Err)
	assert.True(t, report.Steps[1].Passed)
	assert.False(t, report.Steps[2].Passed)
	assert.NoError(t, report.Steps[2].Err)
	assert.Equal(t, 2, report.Failed())
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown action": `
steps: [{action: dance}]`,
		"unknown mint": `
mints: [{name: a}]
users: [{name: u, balances: {b: 1}}]`,
		"unknown pool owner": `
mints: [{name: a}, {name: b}]
pools: [{name: p, owner: nobody, mint_a: a, mint_b: b, ratio_a: 1, ratio_b: 1}]`,
		"same mint twice": `
mints: [{name: a}]
pools: [{name: p, owner: authority, mint_a: a, mint_b: a, ratio_a: 1, ratio_b: 1}]`,
		"bad flag": `
mints: [{name: a}, {name: b}]
pools: [{name: p, owner: authority, mint_a: a, mint_b: b, ratio_a: 1, ratio_b: 1, flags: [turbo]}]`,
		"step references unknown user": `
mints: [{name: a}, {name: b}]
pools: [{name: p, owner: authority, mint_a: a, mint_b: b, ratio_a: 1, ratio_b: 1}]
steps: [{action: deposit, user: ghost, pool: p, mint: a, amount: 1}]`,
		"duplicate user": `
users: [{name: u}, {name: u}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte(`
mints: [{name: a}, {name: b}]
pools: [{name: p, owner: authority, mint_a: a, mint_b: b, ratio_a: 1, ratio_b: 1}]
steps:
  - {action: warp, seconds: 60}
  - {action: consolidate}
  - {action: pause_pool, pool: p, flags: 3}`))
	assert.NoError(t, err)
}
