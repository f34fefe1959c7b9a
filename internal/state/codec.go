package state

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
)

// Discriminator tags the first bytes of every program account.
type Discriminator [8]byte

func accountDiscriminator(name string) Discriminator {
	sum := sha256.Sum256([]byte("account:" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

var (
	PoolStateDiscriminator   = accountDiscriminator("PoolState")
	TreasuryDiscriminator    = accountDiscriminator("MainTreasuryState")
	SystemStateDiscriminator = accountDiscriminator("SystemState")
)

var (
	errDiscriminatorMismatch = errors.ErrInvalidAccountData.Withf("account discriminator mismatch")
	errAccountDataTooShort   = errors.ErrAccountDataTooSmall.Withf("account data shorter than layout")
)

// Account is a fixed-size packed program account.
type Account interface {
	Len() int
	MarshalWithEncoder(enc *bin.Encoder) error
	UnmarshalWithDecoder(dec *bin.Decoder) error
}

// Encode writes a to w with the borsh encoder.
func Encode(w io.Writer, a Account) error {
	return a.MarshalWithEncoder(bin.NewBorshEncoder(w))
}

// Decode reads a from data, rejecting short buffers.
func Decode(data []byte, a Account) error {
	if len(data) < a.Len() {
		return errAccountDataTooShort
	}
	return a.UnmarshalWithDecoder(bin.NewBorshDecoder(data))
}

// writer accumulates the first error so layouts read top to bottom.
type writer struct {
	enc *bin.Encoder
	err error
}

func (w *writer) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *writer) boolean(v bool) {
	if w.err == nil {
		w.err = w.enc.WriteBool(v)
	}
}

func (w *writer) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, binary.LittleEndian)
	}
}

func (w *writer) i64(v int64) {
	if w.err == nil {
		w.err = w.enc.WriteInt64(v, binary.LittleEndian)
	}
}

func (w *writer) key(k solana.PublicKey) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(k[:], false)
	}
}

func (w *writer) disc(d Discriminator) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(d[:], false)
	}
}

type reader struct {
	dec *bin.Decoder
	err error
}

func (r *reader) u8() (v uint8) {
	if r.err == nil {
		v, r.err = r.dec.ReadUint8()
	}
	return v
}

func (r *reader) boolean() (v bool) {
	if r.err == nil {
		v, r.err = r.dec.ReadBool()
	}
	return v
}

func (r *reader) u64() (v uint64) {
	if r.err == nil {
		v, r.err = r.dec.ReadUint64(binary.LittleEndian)
	}
	return v
}

func (r *reader) i64() (v int64) {
	if r.err == nil {
		v, r.err = r.dec.ReadInt64(binary.LittleEndian)
	}
	return v
}

func (r *reader) key() (k solana.PublicKey) {
	if r.err != nil {
		return k
	}
	var b []byte
	if b, r.err = r.dec.ReadNBytes(32); r.err == nil {
		copy(k[:], b)
	}
	return k
}

func (r *reader) disc(want Discriminator) {
	if r.err != nil {
		return
	}
	var b []byte
	if b, r.err = r.dec.ReadNBytes(len(want)); r.err == nil && Discriminator(b) != want {
		r.err = errDiscriminatorMismatch
	}
}
