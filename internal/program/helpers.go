package program

import (
	"io"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/buffer"
	"github.com/lugondev/fixed-ratio-trading/pkg/view"
)

func need(accounts []*ledger.AccountInfo, n int) error {
	if len(accounts) < n {
		return errors.ErrNotEnoughAccountKeys.Withf("expected %d accounts, got %d", n, len(accounts))
	}
	return nil
}

func requireSigner(info *ledger.AccountInfo) error {
	if !info.IsSigner {
		return errors.ErrMissingRequiredSignature.Withf("%s must sign", info.Key)
	}
	return nil
}

func (p *Program) loadSystemState(info *ledger.AccountInfo) (*state.SystemState, error) {
	if err := pda.Verify("system state", p.systemState.Key, info.Key); err != nil {
		return nil, err
	}
	if info.DataLen() == 0 || !info.IsOwnedBy(p.id) {
		return nil, errors.ErrUninitializedAccount.Withf("system state %s is not initialized", info.Key)
	}
	s := new(state.SystemState)
	if err := state.Decode(info.Data(), s); err != nil {
		return nil, err
	}
	return s, nil
}

// requireSystemActive loads the system state and fails while it is paused.
func (p *Program) requireSystemActive(info *ledger.AccountInfo) error {
	s, err := p.loadSystemState(info)
	if err != nil {
		return err
	}
	if s.IsPaused {
		return errors.ErrSystemPaused.Withf("system paused with reason %d", s.PauseReasonCode)
	}
	return nil
}

// requireAuthority checks that authority signed and is the upgrade authority
// recorded in the program's loader program-data account.
func (p *Program) requireAuthority(authority, programData *ledger.AccountInfo) error {
	if err := requireSigner(authority); err != nil {
		return err
	}
	if err := pda.Verify("program data", p.programData, programData.Key); err != nil {
		return err
	}
	if !programData.IsOwnedBy(ledger.LoaderProgramID) {
		return errors.ErrInvalidAccountOwner.Withf("program data %s is owned by %s", programData.Key, programData.Owner())
	}
	pd, err := ledger.ParseProgramData(programData.Data())
	if err != nil {
		return err
	}
	if pd.UpgradeAuthority == nil || !pd.UpgradeAuthority.Equals(authority.Key) {
		return errors.ErrUnauthorizedAccess.Withf("%s is not the program authority", authority.Key)
	}
	return nil
}

// loadPool decodes a pool and checks that info sits at the address its own
// seeds derive to.
func (p *Program) loadPool(info *ledger.AccountInfo) (*state.PoolState, *pda.PoolAddresses, error) {
	if info.DataLen() == 0 || !info.IsOwnedBy(p.id) {
		return nil, nil, errors.ErrUninitializedPool.Withf("pool %s", info.Key)
	}
	pool := new(state.PoolState)
	if err := state.Decode(info.Data(), pool); err != nil {
		return nil, nil, err
	}
	if err := pool.Validate(); err != nil {
		return nil, nil, err
	}
	addrs, err := pda.PoolFromState(p.id, pool)
	if err != nil {
		return nil, nil, err
	}
	if err := pda.Verify("pool state", addrs.PoolState.Key, info.Key); err != nil {
		return nil, nil, err
	}
	return pool, addrs, nil
}

func (p *Program) loadTreasury(info *ledger.AccountInfo) (*state.MainTreasuryState, error) {
	if err := pda.Verify("main treasury", p.treasury.Key, info.Key); err != nil {
		return nil, err
	}
	if info.DataLen() == 0 || !info.IsOwnedBy(p.id) {
		return nil, errors.ErrUninitializedAccount.Withf("treasury %s is not initialized", info.Key)
	}
	t := new(state.MainTreasuryState)
	if err := state.Decode(info.Data(), t); err != nil {
		return nil, err
	}
	return t, nil
}

// save serializes a into scratch space and copies it into the account in a
// single write.
func save(info *ledger.AccountInfo, a state.Account) error {
	return info.WriteData(func(dst []byte) error {
		_, err := buffer.Stage(dst, func(w io.Writer) error {
			return state.Encode(w, a)
		})
		return err
	})
}

// tokenAccount checks that info is an initialized token account of mint, and
// of owner when owner is non-nil.
func tokenAccount(info *ledger.AccountInfo, mint solana.PublicKey, owner *solana.PublicKey) (*view.TokenAccountView, error) {
	if !info.IsOwnedBy(token.ProgramID) {
		return nil, errors.ErrInvalidTokenAccount.Withf("%s is not a token account", info.Key)
	}
	v, err := view.NewTokenAccountView(info.Data())
	if err != nil {
		return nil, errors.ErrInvalidTokenAccount.WithCause(err)
	}
	if !v.Mint().Equals(mint) {
		return nil, errors.ErrInvalidTokenAccount.Withf("%s holds mint %s, want %s", info.Key, v.Mint(), mint)
	}
	if owner != nil && !v.Owner().Equals(*owner) {
		return nil, errors.ErrInvalidTokenAccount.Withf("%s is owned by %s, want %s", info.Key, v.Owner(), *owner)
	}
	return v, nil
}

func tokenBalance(info *ledger.AccountInfo) (uint64, error) {
	v, err := view.NewTokenAccountView(info.Data())
	if err != nil {
		return 0, errors.ErrInvalidTokenAccount.WithCause(err)
	}
	return v.Amount(), nil
}

// createPDA allocates a rent-exempt account at addr, funded by payer and
// signed for with the address seeds.
func createPDA(ic *ledger.InvokeContext, payer solana.PublicKey, addr pda.Address, seeds [][]byte, space int, owner solana.PublicKey) error {
	lamports := ic.Rent().MinimumBalance(space)
	ix := ledger.CreateAccount(payer, addr.Key, lamports, uint64(space), owner)
	return ic.InvokeSigned(ix, addr.SignerSeeds(seeds))
}

// collectFee moves a flat lamport fee from payer to dst through the system program.
func collectFee(ic *ledger.InvokeContext, payer, dst *ledger.AccountInfo, fee uint64) error {
	if fee == 0 {
		return nil
	}
	if payer.Lamports() < fee {
		return errors.ErrInsufficientFunds.Withf("%s holds %d lamports, fee is %d", payer.Key, payer.Lamports(), fee)
	}
	return ic.Invoke(ledger.Transfer(payer.Key, dst.Key, fee))
}
