// Package token is an SPL Token compatible program for the ledger. It covers
// the subset a liquidity pool needs: mint and account initialization,
// transfers, minting and burning, with the same byte layouts and error codes
// as the on-chain program so clients can decode its accounts unchanged.
package token

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
)

// ProgramID is the SPL Token program id.
var ProgramID = solana.TokenProgramID

// Packed sizes.
const (
	MintLen    = 82
	AccountLen = 165
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

const (
	AccountUninitialized AccountState = iota
	AccountInitialized
	AccountFrozen
)

// Mint is the packed SPL mint.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// Account is the packed SPL token account.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

func writeKeyOption(enc *bin.Encoder, k *solana.PublicKey) error {
	if k == nil {
		if err := enc.WriteUint32(0, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteBytes(make([]byte, 32), false)
	}
	if err := enc.WriteUint32(1, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes(k[:], false)
}

func readKeyOption(dec *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	b, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	k := solana.PublicKeyFromBytes(b)
	return &k, nil
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(32)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// MarshalWithEncoder implements bin.EncoderDecoder.
func (m *Mint) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeKeyOption(enc, m.MintAuthority); err != nil {
		return err
	}
	if err := enc.WriteUint64(m.Supply, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint8(m.Decimals); err != nil {
		return err
	}
	if err := enc.WriteBool(m.IsInitialized); err != nil {
		return err
	}
	return writeKeyOption(enc, m.FreezeAuthority)
}

// UnmarshalWithDecoder implements bin.EncoderDecoder.
func (m *Mint) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.MintAuthority, err = readKeyOption(dec); err != nil {
		return err
	}
	if m.Supply, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return err
	}
	if m.IsInitialized, err = dec.ReadBool(); err != nil {
		return err
	}
	m.FreezeAuthority, err = readKeyOption(dec)
	return err
}

// MarshalWithEncoder implements bin.EncoderDecoder.
func (a *Account) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(a.Mint[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
		return err
	}
	if err := writeKeyOption(enc, a.Delegate); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(a.State)); err != nil {
		return err
	}
	var native uint64
	var nativeTag uint32
	if a.IsNative != nil {
		nativeTag, native = 1, *a.IsNative
	}
	if err := enc.WriteUint32(nativeTag, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(native, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.DelegatedAmount, binary.LittleEndian); err != nil {
		return err
	}
	return writeKeyOption(enc, a.CloseAuthority)
}

// UnmarshalWithDecoder implements bin.EncoderDecoder.
func (a *Account) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Mint, err = readKey(dec); err != nil {
		return err
	}
	if a.Owner, err = readKey(dec); err != nil {
		return err
	}
	if a.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if a.Delegate, err = readKeyOption(dec); err != nil {
		return err
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	a.State = AccountState(state)
	nativeTag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return err
	}
	native, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return err
	}
	if nativeTag == 1 {
		a.IsNative = &native
	}
	if a.DelegatedAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	a.CloseAuthority, err = readKeyOption(dec)
	return err
}

// Pack serializes a mint into its 82-byte layout.
func (m *Mint) Pack() []byte {
	var buf bytes.Buffer
	_ = m.MarshalWithEncoder(bin.NewBorshEncoder(&buf))
	return buf.Bytes()
}

// Pack serializes an account into its 165-byte layout.
func (a *Account) Pack() []byte {
	var buf bytes.Buffer
	_ = a.MarshalWithEncoder(bin.NewBorshEncoder(&buf))
	return buf.Bytes()
}

// UnpackMint decodes an initialized mint.
func UnpackMint(data []byte) (*Mint, error) {
	if len(data) != MintLen {
		return nil, errors.ErrInvalidAccountData.Withf("mint data is %d bytes", len(data))
	}
	m := new(Mint)
	if err := m.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, errors.ErrInvalidAccountData.WithCause(err)
	}
	if !m.IsInitialized {
		return nil, ErrUninitializedState
	}
	return m, nil
}

// UnpackAccount decodes an initialized token account.
func UnpackAccount(data []byte) (*Account, error) {
	if len(data) != AccountLen {
		return nil, errors.ErrInvalidAccountData.Withf("token account data is %d bytes", len(data))
	}
	a := new(Account)
	if err := a.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, errors.ErrInvalidAccountData.WithCause(err)
	}
	if a.State == AccountUninitialized {
		return nil, ErrUninitializedState
	}
	return a, nil
}
