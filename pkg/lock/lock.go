// Package lock serializes ingestion and metric calculation per account.
// The delete-then-insert step in ingestion is not safe under concurrent
// mutation, so both paths take the account lock for their whole run.
package lock

import "sync"

// AccountLocker hands out one mutex per account id.
type AccountLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAccountLocker() *AccountLocker {
	return &AccountLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the account's lock is held and returns the unlock func.
func (l *AccountLocker) Lock(accountID string) func() {
	l.mu.Lock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
