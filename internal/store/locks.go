package store

import "sync"

// AssetLocks hands out one mutex per asset id.
type AssetLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Lock acquires the asset's mutex and returns its unlock function.
func (l *AssetLocks) Lock(assetID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := l.locks[assetID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[assetID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
