// Package wallet loads, generates and stores ed25519 keypairs in the
// Solana CLI JSON format and signs ledger transactions with them.
package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
)

// Wallet holds one keypair.
type Wallet struct {
	privateKey solana.PrivateKey
}

// New generates a random wallet.
func New() *Wallet {
	return &Wallet{privateKey: solana.NewWallet().PrivateKey}
}

func FromPrivateKey(pk solana.PrivateKey) *Wallet {
	return &Wallet{privateKey: pk}
}

// FromBase58 parses a base58-encoded 64-byte private key.
func FromBase58(key string) (*Wallet, error) {
	pk, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{privateKey: pk}, nil
}

// Load reads a JSON byte-array keypair file.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	var keypair []byte
	if err := json.Unmarshal(data, &keypair); err != nil {
		return nil, fmt.Errorf("failed to parse keypair %s: %w", path, err)
	}
	if len(keypair) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair size: expected %d, got %d", ed25519.PrivateKeySize, len(keypair))
	}
	return &Wallet{privateKey: solana.PrivateKey(keypair)}, nil
}

// LoadOrCreate loads the keypair at path, generating and saving a new one
// when the file does not exist. created reports which happened.
func LoadOrCreate(path string) (w *Wallet, created bool, err error) {
	w, err = Load(path)
	if err == nil {
		return w, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	w = New()
	if err := w.Save(path); err != nil {
		return nil, false, err
	}
	return w, true, nil
}

func (w *Wallet) PublicKey() solana.PublicKey {
	return w.privateKey.PublicKey()
}

func (w *Wallet) PrivateKey() solana.PrivateKey {
	return w.privateKey
}

// SignTransaction adds the wallet's signature to tx.
func (w *Wallet) SignTransaction(tx *ledger.Transaction) error {
	if err := tx.SignWith(w.privateKey); err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// Save writes the keypair as a JSON byte array readable only by the owner.
func (w *Wallet) Save(path string) error {
	data, err := json.Marshal([]byte(w.privateKey))
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create keypair directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}
	return nil
}

func (w *Wallet) String() string {
	return w.PublicKey().String()
}
