package program

import (
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/view"
)

func (p *Program) initializeProgram(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ instruction.Instruction) error {
	if err := need(accounts, 5); err != nil {
		return err
	}
	authority, systemInfo, treasuryInfo, programData := accounts[0], accounts[2], accounts[3], accounts[4]
	if err := p.requireAuthority(authority, programData); err != nil {
		return err
	}
	if err := pda.Verify("system state", p.systemState.Key, systemInfo.Key); err != nil {
		return err
	}
	if err := pda.Verify("main treasury", p.treasury.Key, treasuryInfo.Key); err != nil {
		return err
	}
	if systemInfo.DataLen() > 0 || treasuryInfo.DataLen() > 0 {
		return errors.ErrAccountAlreadyInitialized.Withf("program already initialized")
	}

	if err := createPDA(ic, authority.Key, p.systemState, [][]byte{pda.Seed.SystemState}, state.SystemStateLen, p.id); err != nil {
		return err
	}
	if err := createPDA(ic, authority.Key, p.treasury, [][]byte{pda.Seed.MainTreasury}, state.TreasuryLen, p.id); err != nil {
		return err
	}

	if err := save(systemInfo, &state.SystemState{}); err != nil {
		return err
	}
	treasury := &state.MainTreasuryState{
		RentExemptMinimum:   ic.Rent().MinimumBalance(state.TreasuryLen),
		LastUpdateTimestamp: ic.Clock().UnixTimestamp,
	}
	treasury.SyncBalance(treasuryInfo.Lamports())
	if err := save(treasuryInfo, treasury); err != nil {
		return err
	}
	ic.Logf("Program initialized: system state %s, treasury %s", systemInfo.Key, treasuryInfo.Key)
	return nil
}

func (p *Program) initializePool(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.InitializePool)
	if err := need(accounts, 12); err != nil {
		return err
	}
	user, systemInfo, poolInfo, treasuryInfo := accounts[0], accounts[2], accounts[3], accounts[5]
	mint1, mint2 := accounts[6], accounts[7]

	if err := requireSigner(user); err != nil {
		return err
	}
	if err := p.requireSystemActive(systemInfo); err != nil {
		return err
	}
	if ix.RatioANumerator == 0 || ix.RatioBDenominator == 0 {
		return errors.ErrInvalidArgument.Withf("ratio %d:%d must be positive", ix.RatioANumerator, ix.RatioBDenominator)
	}

	treasury, err := p.loadTreasury(treasuryInfo)
	if err != nil {
		return err
	}
	now := ic.Clock().UnixTimestamp
	if err := collectFee(ic, user, treasuryInfo, state.RegistrationFee); err != nil {
		return err
	}
	treasury.AddPoolCreationFee(state.RegistrationFee, now)
	treasury.SyncBalance(treasuryInfo.Lamports())
	if err := save(treasuryInfo, treasury); err != nil {
		return err
	}

	addrs, err := pda.DerivePool(p.id, mint1.Key, mint2.Key, ix.RatioANumerator, ix.RatioBDenominator)
	if err != nil {
		return err
	}
	for _, c := range []struct {
		what string
		addr pda.Address
		info *ledger.AccountInfo
	}{
		{"pool state", addrs.PoolState, poolInfo},
		{"token A vault", addrs.TokenAVault, accounts[8]},
		{"token B vault", addrs.TokenBVault, accounts[9]},
		{"LP token A mint", addrs.LpTokenAMint, accounts[10]},
		{"LP token B mint", addrs.LpTokenBMint, accounts[11]},
	} {
		if err := pda.Verify(c.what, c.addr.Key, c.info.Key); err != nil {
			return err
		}
	}
	if poolInfo.DataLen() > 0 {
		return errors.ErrAccountAlreadyInitialized.Withf("pool %s already exists", poolInfo.Key)
	}

	mintA, mintB := mint1, mint2
	if addrs.Swapped {
		mintA, mintB = mint2, mint1
	}
	decimalsA, err := mintDecimals(mintA)
	if err != nil {
		return err
	}
	decimalsB, err := mintDecimals(mintB)
	if err != nil {
		return err
	}
	ratioType, err := state.ClassifyRatio(addrs.RatioA, addrs.RatioB, decimalsA, decimalsB)
	if err != nil {
		return err
	}
	if ratioType == state.EngineeringRatio {
		return errors.ErrUnsupportedRatioType.Withf("ratio %d:%d with decimals %d/%d", addrs.RatioA, addrs.RatioB, decimalsA, decimalsB)
	}

	poolKey := addrs.PoolState.Key
	poolSeeds := pda.PoolStateSeeds(addrs.TokenAMint, addrs.TokenBMint, addrs.RatioA, addrs.RatioB)
	if err := createPDA(ic, user.Key, addrs.PoolState, poolSeeds, state.PoolStateLen, p.id); err != nil {
		return err
	}

	sides := []struct {
		mint     *ledger.AccountInfo
		decimals uint8
		vault    pda.Address
		vaultTag []byte
		lpMint   pda.Address
		lpTag    []byte
	}{
		{mintA, decimalsA, addrs.TokenAVault, pda.Seed.TokenAVault, addrs.LpTokenAMint, pda.Seed.LpTokenAMint},
		{mintB, decimalsB, addrs.TokenBVault, pda.Seed.TokenBVault, addrs.LpTokenBMint, pda.Seed.LpTokenBMint},
	}
	for _, s := range sides {
		if err := createPDA(ic, user.Key, s.vault, [][]byte{s.vaultTag, poolKey[:]}, token.AccountLen, token.ProgramID); err != nil {
			return err
		}
		if err := ic.Invoke(token.InitializeAccount3(s.vault.Key, s.mint.Key, poolKey)); err != nil {
			return err
		}
		if err := createPDA(ic, user.Key, s.lpMint, [][]byte{s.lpTag, poolKey[:]}, token.MintLen, token.ProgramID); err != nil {
			return err
		}
		if err := ic.Invoke(token.InitializeMint2(s.lpMint.Key, s.decimals, poolKey, nil)); err != nil {
			return err
		}
	}

	pool := state.NewPoolState(user.Key)
	pool.TokenAMint = addrs.TokenAMint
	pool.TokenBMint = addrs.TokenBMint
	pool.TokenAVault = addrs.TokenAVault.Key
	pool.TokenBVault = addrs.TokenBVault.Key
	pool.LpTokenAMint = addrs.LpTokenAMint.Key
	pool.LpTokenBMint = addrs.LpTokenBMint.Key
	pool.RatioANumerator = addrs.RatioA
	pool.RatioBDenominator = addrs.RatioB
	pool.Bumps = addrs.Bumps()
	pool.Flags = ix.Flags & state.CreationFlags
	pool.Flags.Set(state.FlagSimpleRatio, ratioType == state.SimpleRatio)
	if err := save(poolInfo, pool); err != nil {
		return err
	}

	metrics.LogError(p.GetLogger(), metrics.MetricPoolsCreated, p.metrics.IncrementCounter(ic.Context(), metrics.MetricPoolsCreated, 1))
	ic.Logf("Pool created: %s ratio %d:%d (%s)", poolKey, addrs.RatioA, addrs.RatioB, ratioType)
	emit(ic, PoolCreated{
		Pool:       poolKey,
		Owner:      user.Key,
		TokenAMint: addrs.TokenAMint,
		TokenBMint: addrs.TokenBMint,
		RatioA:     addrs.RatioA,
		RatioB:     addrs.RatioB,
		Flags:      uint8(pool.Flags),
		Timestamp:  now,
	})
	return nil
}

func mintDecimals(info *ledger.AccountInfo) (uint8, error) {
	if !info.IsOwnedBy(token.ProgramID) {
		return 0, errors.ErrInvalidAccountOwner.Withf("mint %s is owned by %s", info.Key, info.Owner())
	}
	m, err := view.NewMintView(info.Data())
	if err != nil {
		return 0, errors.ErrInvalidAccountData.WithCause(err)
	}
	return m.Decimals(), nil
}
