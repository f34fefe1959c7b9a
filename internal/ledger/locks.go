package ledger

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
)

type lockState struct {
	writer  bool
	readers int
}

// accountLocks grants shared read locks and exclusive write locks. A conflict
// fails immediately with AccountInUse rather than waiting.
type accountLocks struct {
	mu    sync.Mutex
	locks map[solana.PublicKey]*lockState
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[solana.PublicKey]*lockState)}
}

func (l *accountLocks) acquire(writable, readonly []solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range writable {
		if s, ok := l.locks[k]; ok && (s.writer || s.readers > 0) {
			return errors.ErrAccountInUse.Withf("account %s is write locked by another transaction", k)
		}
	}
	for _, k := range readonly {
		if s, ok := l.locks[k]; ok && s.writer {
			return errors.ErrAccountInUse.Withf("account %s is write locked by another transaction", k)
		}
	}
	for _, k := range writable {
		l.locks[k] = &lockState{writer: true}
	}
	for _, k := range readonly {
		s, ok := l.locks[k]
		if !ok {
			s = &lockState{}
			l.locks[k] = s
		}
		s.readers++
	}
	return nil
}

func (l *accountLocks) release(writable, readonly []solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range writable {
		delete(l.locks, k)
	}
	for _, k := range readonly {
		if s, ok := l.locks[k]; ok {
			s.readers--
			if s.readers <= 0 && !s.writer {
				delete(l.locks, k)
			}
		}
	}
}
