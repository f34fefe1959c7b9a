package state

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
)

// ActionType identifies a time-locked delegate action.
type ActionType uint8

const (
	ActionFeeChange ActionType = iota
	ActionWithdrawal
	ActionPausePoolSwaps
	ActionUnpausePoolSwaps
)

func (t ActionType) String() string {
	switch t {
	case ActionFeeChange:
		return "fee_change"
	case ActionWithdrawal:
		return "withdrawal"
	case ActionPausePoolSwaps:
		return "pause_pool_swaps"
	case ActionUnpausePoolSwaps:
		return "unpause_pool_swaps"
	}
	return fmt.Sprintf("action(%d)", uint8(t))
}

// ActionParams is the tagged parameter union of a delegate action.
type ActionParams interface {
	Type() ActionType
	// Validate checks the parameters at request time.
	Validate() error
}

// FeeChangeParams sets the pool's token swap fee.
type FeeChangeParams struct {
	NewFeeBasisPoints uint64
}

func (FeeChangeParams) Type() ActionType { return ActionFeeChange }

func (p FeeChangeParams) Validate() error {
	if p.NewFeeBasisPoints > MaxSwapFeeBasisPoints {
		return errors.ErrInvalidActionParameters.Withf("fee %d bps above ceiling %d", p.NewFeeBasisPoints, MaxSwapFeeBasisPoints)
	}
	return nil
}

// WithdrawalParams withdraws collected token fees to the requesting delegate.
type WithdrawalParams struct {
	TokenMint solana.PublicKey
	Amount    uint64
}

func (WithdrawalParams) Type() ActionType { return ActionWithdrawal }

func (p WithdrawalParams) Validate() error {
	if p.Amount == 0 {
		return errors.ErrInvalidActionParameters.Withf("withdrawal amount must be non-zero")
	}
	return nil
}

// PausePoolSwapsParams pauses swaps on the pool.
type PausePoolSwapsParams struct{}

func (PausePoolSwapsParams) Type() ActionType { return ActionPausePoolSwaps }
func (PausePoolSwapsParams) Validate() error  { return nil }

// UnpausePoolSwapsParams resumes swaps on the pool.
type UnpausePoolSwapsParams struct{}

func (UnpausePoolSwapsParams) Type() ActionType { return ActionUnpausePoolSwaps }
func (UnpausePoolSwapsParams) Validate() error  { return nil }

// ActionParamsLen is the packed size of any ActionParams value.
const ActionParamsLen = 1 + 8 + 32 + 8

// MarshalActionParams writes params in the fixed tagged layout.
func MarshalActionParams(enc *bin.Encoder, params ActionParams) error {
	w := &writer{enc: enc}
	w.u8(uint8(params.Type()))
	var fee, amount uint64
	var mint solana.PublicKey
	switch p := params.(type) {
	case FeeChangeParams:
		fee = p.NewFeeBasisPoints
	case WithdrawalParams:
		mint, amount = p.TokenMint, p.Amount
	}
	w.u64(fee)
	w.key(mint)
	w.u64(amount)
	return w.err
}

// UnmarshalActionParams reads params written by MarshalActionParams.
func UnmarshalActionParams(dec *bin.Decoder) (ActionParams, error) {
	r := &reader{dec: dec}
	tag := ActionType(r.u8())
	fee := r.u64()
	mint := r.key()
	amount := r.u64()
	if r.err != nil {
		return nil, r.err
	}
	switch tag {
	case ActionFeeChange:
		return FeeChangeParams{NewFeeBasisPoints: fee}, nil
	case ActionWithdrawal:
		return WithdrawalParams{TokenMint: mint, Amount: amount}, nil
	case ActionPausePoolSwaps:
		return PausePoolSwapsParams{}, nil
	case ActionUnpausePoolSwaps:
		return UnpausePoolSwapsParams{}, nil
	}
	return nil, errors.ErrInvalidActionType.Withf("unknown action type %d", tag)
}

// DelegateTimeLimits holds per-action wait times in seconds.
type DelegateTimeLimits struct {
	FeeChange  uint64
	Withdrawal uint64
	PoolPause  uint64
}

// DefaultTimeLimits applies DefaultDelegateWait to every action type.
func DefaultTimeLimits() DelegateTimeLimits {
	return DelegateTimeLimits{
		FeeChange:  DefaultDelegateWait,
		Withdrawal: DefaultDelegateWait,
		PoolPause:  DefaultDelegateWait,
	}
}

// WaitFor returns the wait time configured for an action type.
func (l DelegateTimeLimits) WaitFor(t ActionType) uint64 {
	switch t {
	case ActionFeeChange:
		return l.FeeChange
	case ActionWithdrawal:
		return l.Withdrawal
	}
	return l.PoolPause
}

func (l *DelegateTimeLimits) set(t ActionType, seconds uint64) {
	switch t {
	case ActionFeeChange:
		l.FeeChange = seconds
	case ActionWithdrawal:
		l.Withdrawal = seconds
	default:
		l.PoolPause = seconds
	}
}

// PendingAction is a requested, not yet executed delegate action.
type PendingAction struct {
	ActionID           uint64
	Delegate           solana.PublicKey
	Params             ActionParams
	RequestTimestamp   int64
	ExecutionTimestamp int64
}

// Executable reports whether the wait interval has elapsed at now.
func (a *PendingAction) Executable(now int64) bool {
	return now >= a.ExecutionTimestamp
}

const pendingActionLen = 8 + 32 + ActionParamsLen + 8 + 8

// DelegateManagementLen is the packed size of DelegateManagement.
const DelegateManagementLen = 1 + MaxDelegates*32 + MaxDelegates*3*8 + 8 + 1 + MaxPendingActions*pendingActionLen

// DelegateManagement tracks the pool's delegates and its bounded queue of
// pending actions. The owner is always delegates[0].
type DelegateManagement struct {
	delegates    [MaxDelegates]solana.PublicKey
	timeLimits   [MaxDelegates]DelegateTimeLimits
	count        uint8
	nextActionID uint64
	pending      [MaxPendingActions]PendingAction
	pendingCount uint8
}

// NewDelegateManagement seeds the list with the owner.
func NewDelegateManagement(owner solana.PublicKey) DelegateManagement {
	var d DelegateManagement
	d.delegates[0] = owner
	d.timeLimits[0] = DefaultTimeLimits()
	d.count = 1
	d.nextActionID = 1
	return d
}

// Delegates returns the active delegates, owner first.
func (d *DelegateManagement) Delegates() []solana.PublicKey {
	return append([]solana.PublicKey(nil), d.delegates[:d.count]...)
}

// TimeLimits returns the wait configuration of a delegate.
func (d *DelegateManagement) TimeLimits(delegate solana.PublicKey) (DelegateTimeLimits, bool) {
	i := d.index(delegate)
	if i < 0 {
		return DelegateTimeLimits{}, false
	}
	return d.timeLimits[i], true
}

func (d *DelegateManagement) index(pk solana.PublicKey) int {
	for i := 0; i < int(d.count); i++ {
		if d.delegates[i].Equals(pk) {
			return i
		}
	}
	return -1
}

// IsDelegate reports whether pk may request actions.
func (d *DelegateManagement) IsDelegate(pk solana.PublicKey) bool {
	return d.index(pk) >= 0
}

// Add registers a delegate with default wait times.
func (d *DelegateManagement) Add(pk solana.PublicKey) error {
	if d.IsDelegate(pk) {
		return errors.ErrDelegateAlreadyExists
	}
	if int(d.count) >= MaxDelegates {
		return errors.ErrDelegateLimitExceeded
	}
	d.delegates[d.count] = pk
	d.timeLimits[d.count] = DefaultTimeLimits()
	d.count++
	return nil
}

// Remove drops a delegate and every action it still has pending.
// The owner cannot be removed.
func (d *DelegateManagement) Remove(pk solana.PublicKey) error {
	i := d.index(pk)
	switch {
	case i < 0:
		return errors.ErrDelegateNotFound
	case i == 0:
		return errors.ErrUnauthorized.Withf("the owner cannot be removed as a delegate")
	}
	last := int(d.count) - 1
	copy(d.delegates[i:last], d.delegates[i+1:last+1])
	copy(d.timeLimits[i:last], d.timeLimits[i+1:last+1])
	d.delegates[last] = solana.PublicKey{}
	d.timeLimits[last] = DelegateTimeLimits{}
	d.count--

	for j := int(d.pendingCount) - 1; j >= 0; j-- {
		if d.pending[j].Delegate.Equals(pk) {
			d.removeAt(j)
		}
	}
	return nil
}

// SetWaitTime configures a delegate's wait for one action type.
func (d *DelegateManagement) SetWaitTime(pk solana.PublicKey, t ActionType, seconds uint64) error {
	if t > ActionUnpausePoolSwaps {
		return errors.ErrInvalidActionType
	}
	if seconds < MinDelegateWaitTime || seconds > MaxDelegateWaitTime {
		return errors.ErrInvalidWaitTime.Withf("wait %ds outside [%d, %d]", seconds, MinDelegateWaitTime, MaxDelegateWaitTime)
	}
	i := d.index(pk)
	if i < 0 {
		return errors.ErrDelegateNotFound
	}
	d.timeLimits[i].set(t, seconds)
	return nil
}

// Request validates params and queues a new action for delegate.
func (d *DelegateManagement) Request(delegate solana.PublicKey, params ActionParams, now int64) (PendingAction, error) {
	i := d.index(delegate)
	if i < 0 {
		return PendingAction{}, errors.ErrUnauthorizedDelegate
	}
	if params == nil {
		return PendingAction{}, errors.ErrInvalidActionType
	}
	if err := params.Validate(); err != nil {
		return PendingAction{}, err
	}
	if int(d.pendingCount) >= MaxPendingActions {
		return PendingAction{}, errors.ErrMaxPendingActionsReached
	}
	wait := d.timeLimits[i].WaitFor(params.Type())
	action := PendingAction{
		ActionID:           d.nextActionID,
		Delegate:           delegate,
		Params:             params,
		RequestTimestamp:   now,
		ExecutionTimestamp: now + int64(wait),
	}
	d.pending[d.pendingCount] = action
	d.pendingCount++
	d.nextActionID++
	return action, nil
}

// Pending returns a copy of the pending queue in request order.
func (d *DelegateManagement) Pending() []PendingAction {
	return append([]PendingAction(nil), d.pending[:d.pendingCount]...)
}

// Find looks up a pending action by id.
func (d *DelegateManagement) Find(id uint64) (PendingAction, bool) {
	for i := 0; i < int(d.pendingCount); i++ {
		if d.pending[i].ActionID == id {
			return d.pending[i], true
		}
	}
	return PendingAction{}, false
}

// Take removes and returns a pending action.
func (d *DelegateManagement) Take(id uint64) (PendingAction, error) {
	for i := 0; i < int(d.pendingCount); i++ {
		if d.pending[i].ActionID == id {
			action := d.pending[i]
			d.removeAt(i)
			return action, nil
		}
	}
	return PendingAction{}, errors.ErrActionNotFound
}

func (d *DelegateManagement) removeAt(i int) {
	last := int(d.pendingCount) - 1
	copy(d.pending[i:last], d.pending[i+1:last+1])
	d.pending[last] = PendingAction{}
	d.pendingCount--
}

// MarshalWithEncoder writes the packed layout.
func (d *DelegateManagement) MarshalWithEncoder(enc *bin.Encoder) error {
	w := &writer{enc: enc}
	w.u8(d.count)
	for i := range d.delegates {
		w.key(d.delegates[i])
	}
	for i := range d.timeLimits {
		w.u64(d.timeLimits[i].FeeChange)
		w.u64(d.timeLimits[i].Withdrawal)
		w.u64(d.timeLimits[i].PoolPause)
	}
	w.u64(d.nextActionID)
	w.u8(d.pendingCount)
	for i := range d.pending {
		a := &d.pending[i]
		w.u64(a.ActionID)
		w.key(a.Delegate)
		if w.err != nil {
			return w.err
		}
		params := a.Params
		if params == nil {
			params = FeeChangeParams{}
		}
		if w.err = MarshalActionParams(enc, params); w.err != nil {
			return w.err
		}
		w.i64(a.RequestTimestamp)
		w.i64(a.ExecutionTimestamp)
	}
	return w.err
}

// UnmarshalWithDecoder reads the packed layout.
func (d *DelegateManagement) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := &reader{dec: dec}
	d.count = r.u8()
	for i := range d.delegates {
		d.delegates[i] = r.key()
	}
	for i := range d.timeLimits {
		d.timeLimits[i].FeeChange = r.u64()
		d.timeLimits[i].Withdrawal = r.u64()
		d.timeLimits[i].PoolPause = r.u64()
	}
	d.nextActionID = r.u64()
	d.pendingCount = r.u8()
	if r.err != nil {
		return r.err
	}
	if d.count == 0 || int(d.count) > MaxDelegates || int(d.pendingCount) > MaxPendingActions {
		return errors.ErrInvalidAccountData.Withf("delegate counts out of range")
	}
	for i := range d.pending {
		a := &d.pending[i]
		a.ActionID = r.u64()
		a.Delegate = r.key()
		if r.err != nil {
			return r.err
		}
		params, err := UnmarshalActionParams(dec)
		if err != nil {
			return err
		}
		if i < int(d.pendingCount) {
			a.Params = params
		} else {
			a.Params = nil
		}
		a.RequestTimestamp = r.i64()
		a.ExecutionTimestamp = r.i64()
	}
	return r.err
}
