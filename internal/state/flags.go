package state

import (
	"fmt"
	"strings"
)

// PoolFlags is the packed pool flag byte.
type PoolFlags uint8

const (
	FlagSimpleRatio PoolFlags = 1 << iota
	FlagLiquidityPaused
	FlagSwapsPaused
	FlagWithdrawalProtection
	FlagSingleLpToken
	FlagSwapForOwnersOnly
	FlagExactExchangeRequired
)

// CreationFlags are the only caller flags honoured at pool creation.
const CreationFlags = FlagSwapForOwnersOnly | FlagExactExchangeRequired

var flagNames = []struct {
	flag PoolFlags
	name string
}{
	{FlagSimpleRatio, "simple_ratio"},
	{FlagLiquidityPaused, "liquidity_paused"},
	{FlagSwapsPaused, "swaps_paused"},
	{FlagWithdrawalProtection, "withdrawal_protection"},
	{FlagSingleLpToken, "single_lp_token"},
	{FlagSwapForOwnersOnly, "swap_for_owners_only"},
	{FlagExactExchangeRequired, "exact_exchange_required"},
}

// Has reports whether every bit of x is set.
func (f PoolFlags) Has(x PoolFlags) bool { return f&x == x }

// Set turns the bits of x on or off.
func (f *PoolFlags) Set(x PoolFlags, on bool) {
	if on {
		*f |= x
	} else {
		*f &^= x
	}
}

func (f PoolFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParsePoolFlags is the inverse of String for a list of flag names.
func ParsePoolFlags(names []string) (PoolFlags, error) {
	var f PoolFlags
	for _, name := range names {
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown pool flag %q", name)
		}
	}
	return f, nil
}
