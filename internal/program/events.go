package program

import (
	"bytes"
	"reflect"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
)

// Event is a structured record the program writes as a "Program data:" line.
// The payload is the event discriminator followed by the borsh body.
type Event interface {
	EventName() string
}

type PoolCreated struct {
	Pool       solana.PublicKey
	Owner      solana.PublicKey
	TokenAMint solana.PublicKey
	TokenBMint solana.PublicKey
	RatioA     uint64
	RatioB     uint64
	Flags      uint8
	Timestamp  int64
}

type LiquidityDeposited struct {
	Pool      solana.PublicKey
	User      solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
	Fee       uint64
	Liquidity uint64
}

type LiquidityWithdrawn struct {
	Pool       solana.PublicKey
	User       solana.PublicKey
	Mint       solana.PublicKey
	Amount     uint64
	Fee        uint64
	Liquidity  uint64
	Protection bool
}

type SwapExecuted struct {
	Pool        solana.PublicKey
	User        solana.PublicKey
	InputMint   solana.PublicKey
	AmountIn    uint64
	AmountOut   uint64
	TokenFee    uint64
	ContractFee uint64
}

type PoolFeesConsolidated struct {
	Pool      solana.PublicKey
	Amount    uint64
	Remaining uint64
	Timestamp int64
}

type SystemPaused struct {
	Authority  solana.PublicKey
	ReasonCode uint8
	Timestamp  int64
}

type SystemUnpaused struct {
	Authority solana.PublicKey
	Timestamp int64
}

type TreasuryWithdrawn struct {
	Destination solana.PublicKey
	Amount      uint64
	Remaining   uint64
}

type PoolPauseChanged struct {
	Pool  solana.PublicKey
	Flags uint8
}

type DelegateActionRequested struct {
	Pool               solana.PublicKey
	Delegate           solana.PublicKey
	ActionID           uint64
	ActionType         uint8
	ExecutionTimestamp int64
}

type DelegateActionExecuted struct {
	Pool       solana.PublicKey
	Executor   solana.PublicKey
	ActionID   uint64
	ActionType uint8
}

type DelegateActionRevoked struct {
	Pool     solana.PublicKey
	Revoker  solana.PublicKey
	ActionID uint64
}

func (PoolCreated) EventName() string             { return "PoolCreated" }
func (LiquidityDeposited) EventName() string      { return "LiquidityDeposited" }
func (LiquidityWithdrawn) EventName() string      { return "LiquidityWithdrawn" }
func (SwapExecuted) EventName() string            { return "SwapExecuted" }
func (PoolFeesConsolidated) EventName() string    { return "PoolFeesConsolidated" }
func (SystemPaused) EventName() string            { return "SystemPaused" }
func (SystemUnpaused) EventName() string          { return "SystemUnpaused" }
func (TreasuryWithdrawn) EventName() string       { return "TreasuryWithdrawn" }
func (PoolPauseChanged) EventName() string        { return "PoolPauseChanged" }
func (DelegateActionRequested) EventName() string { return "DelegateActionRequested" }
func (DelegateActionExecuted) EventName() string  { return "DelegateActionExecuted" }
func (DelegateActionRevoked) EventName() string   { return "DelegateActionRevoked" }

var eventTypes = []Event{
	PoolCreated{},
	LiquidityDeposited{},
	LiquidityWithdrawn{},
	SwapExecuted{},
	PoolFeesConsolidated{},
	SystemPaused{},
	SystemUnpaused{},
	TreasuryWithdrawn{},
	PoolPauseChanged{},
	DelegateActionRequested{},
	DelegateActionExecuted{},
	DelegateActionRevoked{},
}

// EncodeEvent returns the discriminator-prefixed payload of e.
func EncodeEvent(e Event) ([]byte, error) {
	var buf bytes.Buffer
	disc := decoder.EventDiscriminator(e.EventName())
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func emit(ic *ledger.InvokeContext, e Event) {
	payload, err := EncodeEvent(e)
	if err != nil {
		ic.Logf("event %s not encoded: %v", e.EventName(), err)
		return
	}
	ic.LogData(payload)
}

// RegisterEvents registers a decoder for every program event. Decoded events
// carry the value type (PoolCreated, SwapExecuted, ...) in Event.Data.
func RegisterEvents(reg *decoder.Registry, programID solana.PublicKey) {
	for _, proto := range eventTypes {
		typ := reflect.TypeOf(proto)
		name := proto.EventName()
		reg.RegisterForProgram(programID, decoder.NewDiscriminatorDecoder(
			name,
			programID,
			decoder.EventDiscriminator(name),
			func(body []byte) (interface{}, error) {
				v := reflect.New(typ)
				if err := bin.NewBorshDecoder(body).Decode(v.Interface()); err != nil {
					return nil, err
				}
				return v.Elem().Interface(), nil
			},
		))
	}
}
