package state

import (
	"math"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
)

// RatioType classifies a pool ratio by how it reads in display units.
type RatioType uint8

const (
	// SimpleRatio: one side is exactly one whole token and the other a whole number.
	SimpleRatio RatioType = iota
	// DecimalRatio: one side is exactly one whole token and the other fractional.
	DecimalRatio
	// EngineeringRatio: neither side is exactly one token. Rejected.
	EngineeringRatio
)

func (t RatioType) String() string {
	switch t {
	case SimpleRatio:
		return "simple"
	case DecimalRatio:
		return "decimal"
	}
	return "engineering"
}

func pow10(decimals uint8) (uint64, error) {
	if decimals > 19 {
		return 0, errors.ErrInvalidArgument.Withf("decimals %d out of range", decimals)
	}
	f := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		f *= 10
	}
	return f, nil
}

// displayToBase scales a value given in whole display tokens up to base
// units. Values already at or above one whole token are left alone.
func displayToBase(v, factor uint64) uint64 {
	if factor <= 1 || v >= factor {
		return v
	}
	if v > math.MaxUint64/factor {
		return math.MaxUint64
	}
	return v * factor
}

// ClassifyRatio classifies ratio values expressed in each token's base units.
// A value below one whole token is read as a count of display tokens, so 3:1
// on two 6-decimal mints classifies like 3_000_000:1_000_000.
func ClassifyRatio(ratioA, ratioB uint64, decimalsA, decimalsB uint8) (RatioType, error) {
	fa, err := pow10(decimalsA)
	if err != nil {
		return EngineeringRatio, err
	}
	fb, err := pow10(decimalsB)
	if err != nil {
		return EngineeringRatio, err
	}
	ratioA, ratioB = displayToBase(ratioA, fa), displayToBase(ratioB, fb)
	aWhole := ratioA%fa == 0
	bWhole := ratioB%fb == 0
	if ratioA != fa && ratioB != fb {
		return EngineeringRatio, nil
	}
	if aWhole && bWhole {
		return SimpleRatio, nil
	}
	return DecimalRatio, nil
}
