package ledger

import "time"

// SlotDuration is the nominal time between slots.
const SlotDuration = 400 * time.Millisecond

// Clock is the ledger clock as seen by programs.
type Clock struct {
	Slot          uint64
	Epoch         uint64
	UnixTimestamp int64
}

const slotsPerEpoch = 432_000

// AccountStorageOverhead is the per-account byte overhead charged by rent.
const AccountStorageOverhead = 128

// Rent is the rent schedule.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// DefaultRent returns the mainnet rent schedule.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2}
}

// MinimumBalance is the lamport balance that makes an account of dataLen bytes rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (AccountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionThreshold
}

// IsExempt reports whether lamports cover rent exemption for dataLen bytes.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
