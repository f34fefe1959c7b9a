package program

import (
	"lukechampine.com/uint128"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
)

// SwapQuote is the outcome of a swap at the pool's fixed ratio.
type SwapQuote struct {
	AmountIn  uint64
	Gross     uint64 // output before the token fee
	Fee       uint64 // token fee kept in the pool
	AmountOut uint64 // what the trader receives
}

// Quote prices amountIn of the input side at the pool ratio. A:B is
// RatioANumerator:RatioBDenominator, so A→B yields in*B/A and B→A in*A/B.
func Quote(pool *state.PoolState, inputIsA bool, amountIn uint64) (SwapQuote, error) {
	num, den := pool.RatioBDenominator, pool.RatioANumerator
	if !inputIsA {
		num, den = pool.RatioANumerator, pool.RatioBDenominator
	}
	if den == 0 {
		return SwapQuote{}, errors.ErrInvalidRatio
	}
	gross, rem := uint128.From64(amountIn).Mul64(num).QuoRem64(den)
	if rem != 0 && pool.Flags.Has(state.FlagExactExchangeRequired) {
		return SwapQuote{}, errors.ErrInexactExchange.Withf("%d does not convert exactly at %d:%d", amountIn, pool.RatioANumerator, pool.RatioBDenominator)
	}
	if gross.Hi != 0 {
		return SwapQuote{}, errors.ErrProgramArithmeticOverflow.Withf("output of %d overflows", amountIn)
	}
	fee := uint128.From64(gross.Lo).Mul64(pool.SwapFeeBasisPoints).Div64(state.FeeBasisPointsDenominator).Lo
	q := SwapQuote{AmountIn: amountIn, Gross: gross.Lo, Fee: fee, AmountOut: gross.Lo - fee}
	if q.AmountOut == 0 {
		return SwapQuote{}, errors.ErrInvalidSwapAmount.Withf("%d produces no output", amountIn)
	}
	return q, nil
}

// swap accounts: see instruction.Builder.Swap.
func (p *Program) swap(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.Swap)
	if err := need(accounts, 9); err != nil {
		return err
	}
	user, poolInfo := accounts[0], accounts[3]
	userIn, userOut := accounts[7], accounts[8]
	if err := requireSigner(user); err != nil {
		return err
	}
	if err := p.requireSystemActive(accounts[2]); err != nil {
		return err
	}
	if ix.AmountIn == 0 {
		return errors.ErrInvalidSwapAmount.Withf("amount in must be non-zero")
	}
	pool, addrs, err := p.loadPool(poolInfo)
	if err != nil {
		return err
	}
	if pool.SwapsPaused() {
		return errors.ErrPoolSwapsPaused.Withf("pool %s", poolInfo.Key)
	}
	if pool.Flags.Has(state.FlagSwapForOwnersOnly) && !user.Key.Equals(pool.SwapOwner) {
		return errors.ErrSwapAccessRestricted.Withf("%s may not swap on %s", user.Key, poolInfo.Key)
	}
	if err := pool.Limits.CheckSwap(ix.AmountIn); err != nil {
		return err
	}
	inputIsA, ok := pool.IsTokenA(ix.InputTokenMint)
	if !ok {
		return errors.ErrInvalidTokenPair.Withf("mint %s is not part of pool %s", ix.InputTokenMint, poolInfo.Key)
	}
	if err := pda.Verify("token A vault", addrs.TokenAVault.Key, accounts[5].Key); err != nil {
		return err
	}
	if err := pda.Verify("token B vault", addrs.TokenBVault.Key, accounts[6].Key); err != nil {
		return err
	}
	vaultIn, vaultOut := accounts[5], accounts[6]
	outMint := pool.TokenBMint
	if !inputIsA {
		vaultIn, vaultOut = accounts[6], accounts[5]
		outMint = pool.TokenAMint
	}
	if _, err := tokenAccount(userIn, ix.InputTokenMint, nil); err != nil {
		return err
	}
	if _, err := tokenAccount(userOut, outMint, nil); err != nil {
		return err
	}

	q, err := Quote(pool, inputIsA, ix.AmountIn)
	if err != nil {
		return err
	}
	if ix.ExpectedAmountOut != 0 && ix.ExpectedAmountOut != q.AmountOut {
		return errors.ErrAmountMismatch.Withf("expected %d, pool pays %d", ix.ExpectedAmountOut, q.AmountOut)
	}
	if pool.Liquidity(!inputIsA) < q.Gross {
		return errors.ErrProgramInsufficientFunds.Withf("output liquidity %d below %d", pool.Liquidity(!inputIsA), q.Gross)
	}

	fee := pool.SwapContractFee
	if err := collectFee(ic, user, poolInfo, fee); err != nil {
		return err
	}
	if err := pool.AddSwapContractFee(fee); err != nil {
		return err
	}

	if err := ic.Invoke(token.Transfer(userIn.Key, vaultIn.Key, user.Key, q.AmountIn)); err != nil {
		return err
	}
	out := token.Transfer(vaultOut.Key, userOut.Key, poolInfo.Key, q.AmountOut)
	if err := ic.InvokeSigned(out, addrs.PoolSignerSeeds()); err != nil {
		return err
	}

	if err := pool.AddLiquidity(inputIsA, q.AmountIn); err != nil {
		return err
	}
	if err := pool.RemoveLiquidity(!inputIsA, q.Gross); err != nil {
		return err
	}
	if err := pool.AddCollectedTokenFee(!inputIsA, q.Fee); err != nil {
		return err
	}
	if err := save(poolInfo, pool); err != nil {
		return err
	}

	metrics.LogError(p.GetLogger(), metrics.MetricSwapAmountIn, p.metrics.RecordHistogram(ic.Context(), metrics.MetricSwapAmountIn, float64(q.AmountIn)))
	emit(ic, SwapExecuted{
		Pool:        poolInfo.Key,
		User:        user.Key,
		InputMint:   ix.InputTokenMint,
		AmountIn:    q.AmountIn,
		AmountOut:   q.AmountOut,
		TokenFee:    q.Fee,
		ContractFee: fee,
	})
	return nil
}
