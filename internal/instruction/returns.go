package instruction

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

// Return data of the read-only instructions. Treasury info is the packed
// MainTreasuryState itself.

// PoolInfo summarizes a pool for GetPoolInfo.
type PoolInfo struct {
	Owner                     solana.PublicKey
	TokenAMint                solana.PublicKey
	TokenBMint                solana.PublicKey
	RatioANumerator           uint64
	RatioBDenominator         uint64
	TotalTokenALiquidity      uint64
	TotalTokenBLiquidity      uint64
	Flags                     state.PoolFlags
	ContractLiquidityFee      uint64
	SwapContractFee           uint64
	SwapFeeBasisPoints        uint64
	CollectedLiquidityFees    uint64
	CollectedSwapContractFees uint64
	TotalFeesConsolidated     uint64
	DelegateCount             uint8
	PendingActionCount        uint8
}

// NewPoolInfo extracts the summary of p.
func NewPoolInfo(p *state.PoolState) PoolInfo {
	return PoolInfo{
		Owner:                     p.Owner,
		TokenAMint:                p.TokenAMint,
		TokenBMint:                p.TokenBMint,
		RatioANumerator:           p.RatioANumerator,
		RatioBDenominator:         p.RatioBDenominator,
		TotalTokenALiquidity:      p.TotalTokenALiquidity,
		TotalTokenBLiquidity:      p.TotalTokenBLiquidity,
		Flags:                     p.Flags,
		ContractLiquidityFee:      p.ContractLiquidityFee,
		SwapContractFee:           p.SwapContractFee,
		SwapFeeBasisPoints:        p.SwapFeeBasisPoints,
		CollectedLiquidityFees:    p.CollectedLiquidityFees,
		CollectedSwapContractFees: p.CollectedSwapContractFees,
		TotalFeesConsolidated:     p.TotalFeesConsolidated,
		DelegateCount:             uint8(len(p.Delegates.Delegates())),
		PendingActionCount:        uint8(len(p.Delegates.Pending())),
	}
}

func (pi *PoolInfo) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.key(pi.Owner)
	w.key(pi.TokenAMint)
	w.key(pi.TokenBMint)
	w.u64(pi.RatioANumerator)
	w.u64(pi.RatioBDenominator)
	w.u64(pi.TotalTokenALiquidity)
	w.u64(pi.TotalTokenBLiquidity)
	w.u8(uint8(pi.Flags))
	w.u64(pi.ContractLiquidityFee)
	w.u64(pi.SwapContractFee)
	w.u64(pi.SwapFeeBasisPoints)
	w.u64(pi.CollectedLiquidityFees)
	w.u64(pi.CollectedSwapContractFees)
	w.u64(pi.TotalFeesConsolidated)
	w.u8(pi.DelegateCount)
	w.u8(pi.PendingActionCount)
	return w.err
}

func (pi *PoolInfo) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	pi.Owner = r.key()
	pi.TokenAMint = r.key()
	pi.TokenBMint = r.key()
	pi.RatioANumerator = r.u64()
	pi.RatioBDenominator = r.u64()
	pi.TotalTokenALiquidity = r.u64()
	pi.TotalTokenBLiquidity = r.u64()
	pi.Flags = state.PoolFlags(r.u8())
	pi.ContractLiquidityFee = r.u64()
	pi.SwapContractFee = r.u64()
	pi.SwapFeeBasisPoints = r.u64()
	pi.CollectedLiquidityFees = r.u64()
	pi.CollectedSwapContractFees = r.u64()
	pi.TotalFeesConsolidated = r.u64()
	pi.DelegateCount = r.u8()
	pi.PendingActionCount = r.u8()
	return r.err
}

// PoolConsolidation is one pool's entry in ConsolidationStatus, in the
// order the pools were supplied.
type PoolConsolidation struct {
	CollectedLiquidityFees    uint64
	CollectedSwapContractFees uint64
	LiquidityOpsPending       uint64
	SwapOpsPending            uint64
	Eligible                  bool
}

// PendingFees is the SOL a consolidation would try to move.
func (c PoolConsolidation) PendingFees() uint64 {
	return c.CollectedLiquidityFees + c.CollectedSwapContractFees
}

// ConsolidationStatus is the return data of GetConsolidationStatus.
type ConsolidationStatus struct {
	SystemPaused bool
	PauseReason  uint8
	TotalPending uint64
	Pools        []PoolConsolidation
}

func (s *ConsolidationStatus) MarshalWithEncoder(e *bin.Encoder) error {
	w := &enc{Encoder: e}
	w.u8(uint8(len(s.Pools)))
	w.boolean(s.SystemPaused)
	w.u8(s.PauseReason)
	w.u64(s.TotalPending)
	for _, p := range s.Pools {
		w.u64(p.CollectedLiquidityFees)
		w.u64(p.CollectedSwapContractFees)
		w.u64(p.LiquidityOpsPending)
		w.u64(p.SwapOpsPending)
		w.boolean(p.Eligible)
	}
	return w.err
}

func (s *ConsolidationStatus) UnmarshalWithDecoder(d *bin.Decoder) error {
	r := &dec{Decoder: d}
	n := r.u8()
	s.SystemPaused = r.boolean()
	s.PauseReason = r.u8()
	s.TotalPending = r.u64()
	s.Pools = make([]PoolConsolidation, 0, n)
	for i := 0; i < int(n) && r.err == nil; i++ {
		var p PoolConsolidation
		p.CollectedLiquidityFees = r.u64()
		p.CollectedSwapContractFees = r.u64()
		p.LiquidityOpsPending = r.u64()
		p.SwapOpsPending = r.u64()
		p.Eligible = r.boolean()
		s.Pools = append(s.Pools, p)
	}
	return r.err
}

// EligibleCount counts the pools a consolidation would accept.
func (s *ConsolidationStatus) EligibleCount() int {
	n := 0
	for _, p := range s.Pools {
		if p.Eligible {
			n++
		}
	}
	return n
}

// VersionInfo is the return data of GetVersion.
type VersionInfo struct {
	Version string
}

func (v *VersionInfo) MarshalWithEncoder(e *bin.Encoder) error {
	if err := e.WriteUint32(uint32(len(v.Version)), binary.LittleEndian); err != nil {
		return err
	}
	return e.WriteBytes([]byte(v.Version), false)
}

func (v *VersionInfo) UnmarshalWithDecoder(d *bin.Decoder) error {
	n, err := d.ReadUint32(binary.LittleEndian)
	if err != nil {
		return err
	}
	b, err := d.ReadNBytes(int(n))
	if err != nil {
		return err
	}
	v.Version = string(b)
	return nil
}

type encoderDecoder interface {
	MarshalWithEncoder(e *bin.Encoder) error
	UnmarshalWithDecoder(d *bin.Decoder) error
}

// MarshalReturn encodes a return-data value.
func MarshalReturn(v encoderDecoder) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalReturn decodes return data into v.
func UnmarshalReturn(data []byte, v encoderDecoder) error {
	if err := v.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return errors.DecodeFailed("return data", err)
	}
	return nil
}

// DecodeTreasuryInfo decodes GetTreasuryInfo return data.
func DecodeTreasuryInfo(data []byte) (*state.MainTreasuryState, error) {
	t := new(state.MainTreasuryState)
	if err := state.Decode(data, t); err != nil {
		return nil, errors.DecodeFailed("treasury info", err)
	}
	return t, nil
}
