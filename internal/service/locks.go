package service

import "sync"

// accountLocks hands out one mutex per account id. Holding an account's lock
// serializes the read-check-reserve sequence in ProcessTransfer against
// other transfers from the same account.
//
// Locks are never released back to the map; the set of accounts a single
// process touches is bounded by its working set.
type accountLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		locks: make(map[int64]*sync.Mutex),
	}
}

func (l *accountLocks) forAccount(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}
