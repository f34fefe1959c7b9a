package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// Transaction is an ordered list of instructions executed atomically. The
// first required signer pays the fee and its signature identifies the
// transaction.
type Transaction struct {
	Instructions    []types.Instruction
	RecentBlockhash solana.Hash
	FeePayer        solana.PublicKey
	Signatures      []solana.Signature
}

// NewTransaction creates an unsigned transaction.
func NewTransaction(instructions []types.Instruction, recentBlockhash solana.Hash, feePayer solana.PublicKey) *Transaction {
	return &Transaction{
		Instructions:    instructions,
		RecentBlockhash: recentBlockhash,
		FeePayer:        feePayer,
	}
}

// Signers returns the required signers, fee payer first, then every signer
// account in first-seen order.
func (tx *Transaction) Signers() []solana.PublicKey {
	out := []solana.PublicKey{tx.FeePayer}
	seen := map[solana.PublicKey]bool{tx.FeePayer: true}
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !seen[m.Pubkey] {
				seen[m.Pubkey] = true
				out = append(out, m.Pubkey)
			}
		}
	}
	return out
}

// AccountKeys returns every key the transaction references in first-seen order:
// the fee payer, then per instruction its program id and account metas.
func (tx *Transaction) AccountKeys() []solana.PublicKey {
	out := []solana.PublicKey{tx.FeePayer}
	seen := map[solana.PublicKey]bool{tx.FeePayer: true}
	add := func(k solana.PublicKey) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, ix := range tx.Instructions {
		add(ix.ProgramID)
		for _, m := range ix.Accounts {
			add(m.Pubkey)
		}
	}
	return out
}

// lockSets splits the referenced keys into write-locked and read-locked sets.
// The fee payer is always writable; a key is writable if any meta marks it so.
func (tx *Transaction) lockSets() (writable, readonly []solana.PublicKey) {
	w := map[solana.PublicKey]bool{tx.FeePayer: true}
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsWritable {
				w[m.Pubkey] = true
			}
		}
	}
	for _, k := range tx.AccountKeys() {
		if w[k] {
			writable = append(writable, k)
		} else {
			readonly = append(readonly, k)
		}
	}
	return writable, readonly
}

// Message serializes the signed portion of the transaction.
func (tx *Transaction) Message() ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	if err := enc.WriteBytes(tx.RecentBlockhash[:], false); err != nil {
		return nil, err
	}
	signers := tx.Signers()
	if err := enc.WriteUint8(uint8(len(signers))); err != nil {
		return nil, err
	}
	for _, s := range signers {
		if err := enc.WriteBytes(s[:], false); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint32(uint32(len(tx.Instructions)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, ix := range tx.Instructions {
		if err := enc.WriteBytes(ix.ProgramID[:], false); err != nil {
			return nil, err
		}
		if err := enc.WriteUint32(uint32(len(ix.Accounts)), binary.LittleEndian); err != nil {
			return nil, err
		}
		for _, m := range ix.Accounts {
			if err := enc.WriteBytes(m.Pubkey[:], false); err != nil {
				return nil, err
			}
			var flags uint8
			if m.IsSigner {
				flags |= 1
			}
			if m.IsWritable {
				flags |= 2
			}
			if err := enc.WriteUint8(flags); err != nil {
				return nil, err
			}
		}
		if err := enc.WriteBytes(ix.Data, true); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Sign signs the transaction with keys returned by getter for every required
// signer. getter returns nil when it has no key for the given address.
func (tx *Transaction) Sign(getter func(key solana.PublicKey) *solana.PrivateKey) ([]solana.Signature, error) {
	msg, err := tx.Message()
	if err != nil {
		return nil, err
	}
	signers := tx.Signers()
	sigs := make([]solana.Signature, len(signers))
	for i, s := range signers {
		pk := getter(s)
		if pk == nil {
			return nil, errors.ErrMissingRequiredSignature.Withf("no private key for signer %s", s)
		}
		sig, err := pk.Sign(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to sign with %s: %w", s, err)
		}
		sigs[i] = sig
	}
	tx.Signatures = sigs
	return sigs, nil
}

// SignWith is Sign over a fixed set of keypairs.
func (tx *Transaction) SignWith(keys ...solana.PrivateKey) error {
	byKey := make(map[solana.PublicKey]*solana.PrivateKey, len(keys))
	for i := range keys {
		byKey[keys[i].PublicKey()] = &keys[i]
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		return byKey[key]
	})
	return err
}

// Signature returns the fee payer's signature, or the zero signature when unsigned.
func (tx *Transaction) Signature() solana.Signature {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}

// Verify checks that every required signer produced a valid signature.
func (tx *Transaction) Verify() error {
	signers := tx.Signers()
	if len(tx.Signatures) != len(signers) {
		return errors.ErrSignatureFailure.Withf("expected %d signatures, got %d", len(signers), len(tx.Signatures))
	}
	msg, err := tx.Message()
	if err != nil {
		return errors.ErrSignatureFailure.WithCause(err)
	}
	for i, s := range signers {
		if !ed25519.Verify(s[:], msg, tx.Signatures[i][:]) {
			return errors.ErrSignatureFailure.Withf("invalid signature for %s", s)
		}
	}
	return nil
}
