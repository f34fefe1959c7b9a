// Package instruction defines the fixed-ratio trading program's instruction
// set: a single enum whose variants are encoded as a one-byte tag followed by
// the variant's little-endian fields, plus builders that attach the exact,
// positionally-ordered account list each variant expects.
package instruction

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// Tag is the instruction discriminant.
type Tag uint8

const (
	TagInitializeProgram Tag = iota
	TagInitializePool
	TagDeposit
	TagWithdraw
	TagSwap
	TagPauseSystem
	TagUnpauseSystem
	TagWithdrawTreasuryFees
	TagGetTreasuryInfo
	TagConsolidatePoolFees
	TagGetConsolidationStatus
	TagPausePool
	TagUnpausePool
	TagUpdatePoolFees
	TagSetSwapOwnerOnly
	TagAddDelegate
	TagRemoveDelegate
	TagSetDelegateWaitTime
	TagRequestDelegateAction
	TagExecuteDelegateAction
	TagRevokeDelegateAction
	TagGetPoolInfo
	TagGetVersion
	TagSetPoolLimits
)

var tagNames = [...]string{
	"initialize_program",
	"initialize_pool",
	"deposit",
	"withdraw",
	"swap",
	"pause_system",
	"unpause_system",
	"withdraw_treasury_fees",
	"get_treasury_info",
	"consolidate_pool_fees",
	"get_consolidation_status",
	"pause_pool",
	"unpause_pool",
	"update_pool_fees",
	"set_swap_owner_only",
	"add_delegate",
	"remove_delegate",
	"set_delegate_wait_time",
	"request_delegate_action",
	"execute_delegate_action",
	"revoke_delegate_action",
	"get_pool_info",
	"get_version",
	"set_pool_limits",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Instruction is one variant of the instruction enum.
type Instruction interface {
	Tag() Tag
	MarshalWithEncoder(enc *bin.Encoder) error
	UnmarshalWithDecoder(dec *bin.Decoder) error
}

// Encode serializes ix as tag followed by its fields.
func Encode(ix Instruction) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteUint8(uint8(ix.Tag())); err != nil {
		return nil, err
	}
	if err := ix.MarshalWithEncoder(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustEncode is Encode for values that cannot fail to encode.
func MustEncode(ix Instruction) []byte {
	data, err := Encode(ix)
	if err != nil {
		panic(err)
	}
	return data
}

func newVariant(t Tag) Instruction {
	switch t {
	case TagInitializeProgram:
		return &InitializeProgram{}
	case TagInitializePool:
		return &InitializePool{}
	case TagDeposit:
		return &Deposit{}
	case TagWithdraw:
		return &Withdraw{}
	case TagSwap:
		return &Swap{}
	case TagPauseSystem:
		return &PauseSystem{}
	case TagUnpauseSystem:
		return &UnpauseSystem{}
	case TagWithdrawTreasuryFees:
		return &WithdrawTreasuryFees{}
	case TagGetTreasuryInfo:
		return &GetTreasuryInfo{}
	case TagConsolidatePoolFees:
		return &ConsolidatePoolFees{}
	case TagGetConsolidationStatus:
		return &GetConsolidationStatus{}
	case TagPausePool:
		return &PausePool{}
	case TagUnpausePool:
		return &UnpausePool{}
	case TagUpdatePoolFees:
		return &UpdatePoolFees{}
	case TagSetSwapOwnerOnly:
		return &SetSwapOwnerOnly{}
	case TagAddDelegate:
		return &AddDelegate{}
	case TagRemoveDelegate:
		return &RemoveDelegate{}
	case TagSetDelegateWaitTime:
		return &SetDelegateWaitTime{}
	case TagRequestDelegateAction:
		return &RequestDelegateAction{}
	case TagExecuteDelegateAction:
		return &ExecuteDelegateAction{}
	case TagRevokeDelegateAction:
		return &RevokeDelegateAction{}
	case TagGetPoolInfo:
		return &GetPoolInfo{}
	case TagGetVersion:
		return &GetVersion{}
	case TagSetPoolLimits:
		return &SetPoolLimits{}
	}
	return nil
}

// Decode parses instruction data. Unknown tags, short data and trailing bytes
// are all InvalidInstructionData.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, errors.ErrInvalidInstructionData.Withf("empty instruction data")
	}
	ix := newVariant(Tag(data[0]))
	if ix == nil {
		return nil, errors.ErrInvalidInstructionData.Withf("unknown instruction tag %d", data[0])
	}
	dec := bin.NewBorshDecoder(data[1:])
	if err := ix.UnmarshalWithDecoder(dec); err != nil {
		return nil, errors.ErrInvalidInstructionData.WithCause(err)
	}
	if dec.Remaining() > 0 {
		return nil, errors.ErrInvalidInstructionData.Withf("%d trailing bytes after %s", dec.Remaining(), ix.Tag())
	}
	return ix, nil
}

// Namer returns a function naming instructions addressed to programID by
// their tag. Instructions for other programs, or undecodable ones, get "".
func Namer(programID solana.PublicKey) func(ix types.Instruction) string {
	return func(ix types.Instruction) string {
		if !ix.ProgramID.Equals(programID) || len(ix.Data) == 0 {
			return ""
		}
		if newVariant(Tag(ix.Data[0])) == nil {
			return ""
		}
		return Tag(ix.Data[0]).String()
	}
}

// field codec helpers; the first error sticks.

type enc struct {
	*bin.Encoder
	err error
}

func (e *enc) u8(v uint8) {
	if e.err == nil {
		e.err = e.WriteUint8(v)
	}
}

func (e *enc) boolean(v bool) {
	if e.err == nil {
		e.err = e.WriteBool(v)
	}
}

func (e *enc) u64(v uint64) {
	if e.err == nil {
		e.err = e.WriteUint64(v, binary.LittleEndian)
	}
}

func (e *enc) key(k solana.PublicKey) {
	if e.err == nil {
		e.err = e.WriteBytes(k[:], false)
	}
}

type dec struct {
	*bin.Decoder
	err error
}

func (d *dec) u8() (v uint8) {
	if d.err == nil {
		v, d.err = d.ReadUint8()
	}
	return v
}

func (d *dec) boolean() (v bool) {
	if d.err == nil {
		v, d.err = d.ReadBool()
	}
	return v
}

func (d *dec) u64() (v uint64) {
	if d.err == nil {
		v, d.err = d.ReadUint64(binary.LittleEndian)
	}
	return v
}

func (d *dec) key() (k solana.PublicKey) {
	if d.err != nil {
		return k
	}
	var b []byte
	if b, d.err = d.ReadNBytes(solana.PublicKeyLength); d.err == nil {
		k = solana.PublicKeyFromBytes(b)
	}
	return k
}

type noFields struct{}

func (noFields) MarshalWithEncoder(*bin.Encoder) error   { return nil }
func (noFields) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

// InitializeProgram creates the system-state and treasury singletons.
type InitializeProgram struct{ noFields }

func (*InitializeProgram) Tag() Tag { return TagInitializeProgram }

// InitializePool creates a pool. RatioANumerator belongs to the first mint
// account supplied and RatioBDenominator to the second.
type InitializePool struct {
	RatioANumerator   uint64
	RatioBDenominator uint64
	Flags             state.PoolFlags
}

func (*InitializePool) Tag() Tag { return TagInitializePool }

func (ix *InitializePool) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.u64(ix.RatioANumerator)
	w.u64(ix.RatioBDenominator)
	w.u8(uint8(ix.Flags))
	return w.err
}

func (ix *InitializePool) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.RatioANumerator = r.u64()
	ix.RatioBDenominator = r.u64()
	ix.Flags = state.PoolFlags(r.u8())
	return r.err
}

// Deposit adds Amount of DepositTokenMint to the pool.
type Deposit struct {
	DepositTokenMint solana.PublicKey
	Amount           uint64
}

func (*Deposit) Tag() Tag { return TagDeposit }

func (ix *Deposit) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.key(ix.DepositTokenMint)
	w.u64(ix.Amount)
	return w.err
}

func (ix *Deposit) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.DepositTokenMint = r.key()
	ix.Amount = r.u64()
	return r.err
}

// Withdraw burns LpAmountToBurn LP tokens for the same amount of WithdrawTokenMint.
type Withdraw struct {
	WithdrawTokenMint solana.PublicKey
	LpAmountToBurn    uint64
}

func (*Withdraw) Tag() Tag { return TagWithdraw }

func (ix *Withdraw) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.key(ix.WithdrawTokenMint)
	w.u64(ix.LpAmountToBurn)
	return w.err
}

func (ix *Withdraw) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.WithdrawTokenMint = r.key()
	ix.LpAmountToBurn = r.u64()
	return r.err
}

// Swap exchanges AmountIn of InputTokenMint at the pool ratio. A non-zero
// ExpectedAmountOut must equal the computed output.
type Swap struct {
	InputTokenMint    solana.PublicKey
	AmountIn          uint64
	ExpectedAmountOut uint64
}

func (*Swap) Tag() Tag { return TagSwap }

func (ix *Swap) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.key(ix.InputTokenMint)
	w.u64(ix.AmountIn)
	w.u64(ix.ExpectedAmountOut)
	return w.err
}

func (ix *Swap) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.InputTokenMint = r.key()
	ix.AmountIn = r.u64()
	ix.ExpectedAmountOut = r.u64()
	return r.err
}

type PauseSystem struct {
	ReasonCode uint8
}

func (*PauseSystem) Tag() Tag { return TagPauseSystem }

func (ix *PauseSystem) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint8(ix.ReasonCode)
}

func (ix *PauseSystem) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.ReasonCode, err = d.ReadUint8()
	return err
}

type UnpauseSystem struct{ noFields }

func (*UnpauseSystem) Tag() Tag { return TagUnpauseSystem }

// WithdrawTreasuryFees withdraws Amount lamports; 0 withdraws everything available.
type WithdrawTreasuryFees struct {
	Amount uint64
}

func (*WithdrawTreasuryFees) Tag() Tag { return TagWithdrawTreasuryFees }

func (ix *WithdrawTreasuryFees) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint64(ix.Amount, binary.LittleEndian)
}

func (ix *WithdrawTreasuryFees) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.Amount, err = d.ReadUint64(binary.LittleEndian)
	return err
}

type GetTreasuryInfo struct{ noFields }

func (*GetTreasuryInfo) Tag() Tag { return TagGetTreasuryInfo }

type ConsolidatePoolFees struct {
	PoolCount uint8
}

func (*ConsolidatePoolFees) Tag() Tag { return TagConsolidatePoolFees }

func (ix *ConsolidatePoolFees) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint8(ix.PoolCount)
}

func (ix *ConsolidatePoolFees) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.PoolCount, err = d.ReadUint8()
	return err
}

type GetConsolidationStatus struct {
	PoolCount uint8
}

func (*GetConsolidationStatus) Tag() Tag { return TagGetConsolidationStatus }

func (ix *GetConsolidationStatus) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint8(ix.PoolCount)
}

func (ix *GetConsolidationStatus) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.PoolCount, err = d.ReadUint8()
	return err
}

type PausePool struct {
	PauseFlags uint8
}

func (*PausePool) Tag() Tag { return TagPausePool }

func (ix *PausePool) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint8(ix.PauseFlags)
}

func (ix *PausePool) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.PauseFlags, err = d.ReadUint8()
	return err
}

type UnpausePool struct {
	UnpauseFlags uint8
}

func (*UnpausePool) Tag() Tag { return TagUnpausePool }

func (ix *UnpausePool) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint8(ix.UnpauseFlags)
}

func (ix *UnpausePool) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.UnpauseFlags, err = d.ReadUint8()
	return err
}

// UpdatePoolFees changes the liquidity fee, the swap fee or both, per UpdateFlags.
type UpdatePoolFees struct {
	UpdateFlags     uint8
	NewLiquidityFee uint64
	NewSwapFee      uint64
}

func (*UpdatePoolFees) Tag() Tag { return TagUpdatePoolFees }

func (ix *UpdatePoolFees) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.u8(ix.UpdateFlags)
	w.u64(ix.NewLiquidityFee)
	w.u64(ix.NewSwapFee)
	return w.err
}

func (ix *UpdatePoolFees) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.UpdateFlags = r.u8()
	ix.NewLiquidityFee = r.u64()
	ix.NewSwapFee = r.u64()
	return r.err
}

// SetSwapOwnerOnly restricts swaps to DesignatedOwner, or lifts the restriction.
type SetSwapOwnerOnly struct {
	Enable          bool
	DesignatedOwner solana.PublicKey
}

func (*SetSwapOwnerOnly) Tag() Tag { return TagSetSwapOwnerOnly }

func (ix *SetSwapOwnerOnly) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.boolean(ix.Enable)
	w.key(ix.DesignatedOwner)
	return w.err
}

func (ix *SetSwapOwnerOnly) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.Enable = r.boolean()
	ix.DesignatedOwner = r.key()
	return r.err
}

type AddDelegate struct {
	Delegate solana.PublicKey
}

func (*AddDelegate) Tag() Tag { return TagAddDelegate }

func (ix *AddDelegate) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteBytes(ix.Delegate[:], false)
}

func (ix *AddDelegate) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.Delegate = r.key()
	return r.err
}

type RemoveDelegate struct {
	Delegate solana.PublicKey
}

func (*RemoveDelegate) Tag() Tag { return TagRemoveDelegate }

func (ix *RemoveDelegate) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteBytes(ix.Delegate[:], false)
}

func (ix *RemoveDelegate) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.Delegate = r.key()
	return r.err
}

// SetDelegateWaitTime sets the wait before Delegate's ActionType requests execute.
type SetDelegateWaitTime struct {
	Delegate   solana.PublicKey
	ActionType state.ActionType
	WaitTime   uint64
}

func (*SetDelegateWaitTime) Tag() Tag { return TagSetDelegateWaitTime }

func (ix *SetDelegateWaitTime) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.key(ix.Delegate)
	w.u8(uint8(ix.ActionType))
	w.u64(ix.WaitTime)
	return w.err
}

func (ix *SetDelegateWaitTime) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	ix.Delegate = r.key()
	ix.ActionType = state.ActionType(r.u8())
	ix.WaitTime = r.u64()
	return r.err
}

// RequestDelegateAction queues a time-locked action.
type RequestDelegateAction struct {
	Params state.ActionParams
}

func (*RequestDelegateAction) Tag() Tag { return TagRequestDelegateAction }

func (ix *RequestDelegateAction) MarshalWithEncoder(e *bin.Encoder) error {
	if ix.Params == nil {
		return errors.ErrInvalidActionType
	}
	return state.MarshalActionParams(e, ix.Params)
}

func (ix *RequestDelegateAction) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.Params, err = state.UnmarshalActionParams(d)
	return err
}

type ExecuteDelegateAction struct {
	ActionID uint64
}

func (*ExecuteDelegateAction) Tag() Tag { return TagExecuteDelegateAction }

func (ix *ExecuteDelegateAction) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint64(ix.ActionID, binary.LittleEndian)
}

func (ix *ExecuteDelegateAction) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.ActionID, err = d.ReadUint64(binary.LittleEndian)
	return err
}

type RevokeDelegateAction struct {
	ActionID uint64
}

func (*RevokeDelegateAction) Tag() Tag { return TagRevokeDelegateAction }

func (ix *RevokeDelegateAction) MarshalWithEncoder(e *bin.Encoder) error {
	return e.WriteUint64(ix.ActionID, binary.LittleEndian)
}

func (ix *RevokeDelegateAction) UnmarshalWithDecoder(d *bin.Decoder) (err error) {
	ix.ActionID, err = d.ReadUint64(binary.LittleEndian)
	return err
}

type GetPoolInfo struct{ noFields }

func (*GetPoolInfo) Tag() Tag { return TagGetPoolInfo }

type GetVersion struct{ noFields }

func (*GetVersion) Tag() Tag { return TagGetVersion }

// SetPoolLimits replaces the pool's volume limits; zero means unlimited.
type SetPoolLimits struct {
	Limits state.VolumeLimits
}

func (*SetPoolLimits) Tag() Tag { return TagSetPoolLimits }

func (ix *SetPoolLimits) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	l := ix.Limits
	for _, v := range []uint64{l.MaxSwapAmount, l.MinSwapAmount, l.MaxDepositAmount, l.MinDepositAmount, l.MaxWithdrawalAmount, l.MinWithdrawalAmount} {
		w.u64(v)
	}
	return w.err
}

func (ix *SetPoolLimits) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	l := &ix.Limits
	for _, v := range []*uint64{&l.MaxSwapAmount, &l.MinSwapAmount, &l.MaxDepositAmount, &l.MinDepositAmount, &l.MaxWithdrawalAmount, &l.MinWithdrawalAmount} {
		*v = r.u64()
	}
	return r.err
}
