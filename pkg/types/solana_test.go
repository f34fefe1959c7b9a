package types

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestFormatSOL(t *testing.T) {
	tests := []struct {
		lamports uint64
		want     string
	}{
		{0, "0 SOL"},
		{1, "0.000000001 SOL"},
		{1_500_000_000, "1.5 SOL"},
		{LamportsPerSOL * 100, "100 SOL"},
	}
	for _, tt := range tests {
		if got := FormatSOL(tt.lamports); got != tt.want {
			t.Errorf("FormatSOL(%d) = %q, want %q", tt.lamports, got, tt.want)
		}
	}
}

func TestAccountClone(t *testing.T) {
	a := &Account{Lamports: 10, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID}
	c := a.Clone()
	if !a.Equal(c) {
		t.Fatal("Expected clone to equal original")
	}
	c.Data[0] = 9
	if a.Data[0] != 1 {
		t.Error("Clone shares its data buffer with the original")
	}
	if a.Equal(c) {
		t.Error("Expected accounts with different data to differ")
	}

	var nilAccount *Account
	if nilAccount.Clone() != nil {
		t.Error("Expected nil clone of nil account")
	}
	if !(&Account{}).IsEmpty() {
		t.Error("Expected zero account to be empty")
	}
}
