package program

import (
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
)

// liquidityAccounts is the shared account list of Deposit and Withdraw.
type liquidityAccounts struct {
	user, pool, userToken, userLP *ledger.AccountInfo
	vault, lpMint                 *ledger.AccountInfo
}

// resolveLiquidity runs the checks shared by both directions and picks the
// vault and LP mint of the side matching mint.
func (p *Program) resolveLiquidity(accounts []*ledger.AccountInfo, mintKey solana.PublicKey, amount uint64) (*liquidityAccounts, *state.PoolState, *pda.PoolAddresses, bool, error) {
	if err := need(accounts, 11); err != nil {
		return nil, nil, nil, false, err
	}
	la := &liquidityAccounts{user: accounts[0], pool: accounts[3], userToken: accounts[7], userLP: accounts[8]}
	if err := requireSigner(la.user); err != nil {
		return nil, nil, nil, false, err
	}
	if err := p.requireSystemActive(accounts[2]); err != nil {
		return nil, nil, nil, false, err
	}
	if amount == 0 {
		return nil, nil, nil, false, errors.ErrInvalidArgument.Withf("amount must be non-zero")
	}
	pool, addrs, err := p.loadPool(la.pool)
	if err != nil {
		return nil, nil, nil, false, err
	}
	if pool.LiquidityPaused() {
		return nil, nil, nil, false, errors.ErrLiquidityPaused.Withf("pool %s", la.pool.Key)
	}
	tokenA, ok := pool.IsTokenA(mintKey)
	if !ok {
		return nil, nil, nil, false, errors.ErrInvalidTokenPair.Withf("mint %s is not part of pool %s", mintKey, la.pool.Key)
	}
	if err := pda.Verify("token A vault", addrs.TokenAVault.Key, accounts[5].Key); err != nil {
		return nil, nil, nil, false, err
	}
	if err := pda.Verify("token B vault", addrs.TokenBVault.Key, accounts[6].Key); err != nil {
		return nil, nil, nil, false, err
	}
	if err := pda.Verify("LP token A mint", addrs.LpTokenAMint.Key, accounts[9].Key); err != nil {
		return nil, nil, nil, false, err
	}
	if err := pda.Verify("LP token B mint", addrs.LpTokenBMint.Key, accounts[10].Key); err != nil {
		return nil, nil, nil, false, err
	}
	if tokenA {
		la.vault, la.lpMint = accounts[5], accounts[9]
	} else {
		la.vault, la.lpMint = accounts[6], accounts[10]
	}
	if _, err := tokenAccount(la.userToken, mintKey, nil); err != nil {
		return nil, nil, nil, false, err
	}
	if _, err := tokenAccount(la.userLP, la.lpMint.Key, nil); err != nil {
		return nil, nil, nil, false, err
	}
	return la, pool, addrs, tokenA, nil
}

func (p *Program) deposit(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.Deposit)
	la, pool, addrs, tokenA, err := p.resolveLiquidity(accounts, ix.DepositTokenMint, ix.Amount)
	if err != nil {
		return err
	}
	if err := pool.Limits.CheckDeposit(ix.Amount); err != nil {
		return err
	}

	fee := pool.ContractLiquidityFee
	if err := collectFee(ic, la.user, la.pool, fee); err != nil {
		return err
	}
	if err := pool.AddLiquidityFee(fee); err != nil {
		return err
	}

	before, err := tokenBalance(la.userLP)
	if err != nil {
		return err
	}
	if err := ic.Invoke(token.Transfer(la.userToken.Key, la.vault.Key, la.user.Key, ix.Amount)); err != nil {
		return err
	}
	mint := token.MintTo(la.lpMint.Key, la.userLP.Key, la.pool.Key, ix.Amount)
	if err := ic.InvokeSigned(mint, addrs.PoolSignerSeeds()); err != nil {
		return err
	}
	after, err := tokenBalance(la.userLP)
	if err != nil {
		return err
	}
	if after-before != ix.Amount {
		return errors.ErrLpSupplyMismatch.Withf("LP balance moved by %d, deposit was %d", after-before, ix.Amount)
	}

	if err := pool.AddLiquidity(tokenA, ix.Amount); err != nil {
		return err
	}
	if err := save(la.pool, pool); err != nil {
		return err
	}
	emit(ic, LiquidityDeposited{
		Pool:      la.pool.Key,
		User:      la.user.Key,
		Mint:      ix.DepositTokenMint,
		Amount:    ix.Amount,
		Fee:       fee,
		Liquidity: pool.Liquidity(tokenA),
	})
	return nil
}

// protectionThreshold is the withdrawal size that trips withdrawal protection.
func protectionThreshold(liquidity uint64) uint64 {
	return uint128.From64(liquidity).Mul64(state.WithdrawalProtectionPercent).Div64(100).Lo
}

func (p *Program) withdraw(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) (err error) {
	ix := raw.(*instruction.Withdraw)
	la, pool, addrs, tokenA, err := p.resolveLiquidity(accounts, ix.WithdrawTokenMint, ix.LpAmountToBurn)
	if err != nil {
		return err
	}
	amount := ix.LpAmountToBurn
	if err := pool.Limits.CheckWithdrawal(amount); err != nil {
		return err
	}
	if amount > pool.Liquidity(tokenA) {
		return errors.ErrProgramInsufficientFunds.Withf("withdrawal %d exceeds liquidity %d", amount, pool.Liquidity(tokenA))
	}

	fee := pool.ContractLiquidityFee
	if err := collectFee(ic, la.user, la.pool, fee); err != nil {
		return err
	}
	if err := pool.AddLiquidityFee(fee); err != nil {
		return err
	}

	protect := amount >= protectionThreshold(pool.Liquidity(tokenA))
	if protect {
		swapsWerePaused := pool.SwapsPaused()
		pool.Flags.Set(state.FlagWithdrawalProtection|state.FlagSwapsPaused, true)
		if err := save(la.pool, pool); err != nil {
			return err
		}
		ic.Logf("Withdrawal protection active for %d of %d", amount, pool.Liquidity(tokenA))
		defer func() {
			pool.Flags.Set(state.FlagWithdrawalProtection, false)
			pool.Flags.Set(state.FlagSwapsPaused, swapsWerePaused)
			if saveErr := save(la.pool, pool); err == nil {
				err = saveErr
			}
		}()
	}

	before, err := tokenBalance(la.userLP)
	if err != nil {
		return err
	}
	if err := ic.Invoke(token.Burn(la.userLP.Key, la.lpMint.Key, la.user.Key, amount)); err != nil {
		return err
	}
	after, err := tokenBalance(la.userLP)
	if err != nil {
		return err
	}
	if before-after != amount {
		return errors.ErrLpSupplyMismatch.Withf("LP balance moved by %d, burn was %d", before-after, amount)
	}

	out := token.Transfer(la.vault.Key, la.userToken.Key, la.pool.Key, amount)
	if err := ic.InvokeSigned(out, addrs.PoolSignerSeeds()); err != nil {
		return err
	}
	if err := pool.RemoveLiquidity(tokenA, amount); err != nil {
		return err
	}
	if err := save(la.pool, pool); err != nil {
		return err
	}
	emit(ic, LiquidityWithdrawn{
		Pool:       la.pool.Key,
		User:       la.user.Key,
		Mint:       ix.WithdrawTokenMint,
		Amount:     amount,
		Fee:        fee,
		Liquidity:  pool.Liquidity(tokenA),
		Protection: protect,
	})
	return nil
}
