package lock

import (
	"context"
	"sync"
)

// MemoryLocker holds one mutex per account id inside the process. Entries are
// reference counted and dropped once nobody holds or waits on them.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[int64]*entry)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, ids ...int64) (Release, error) {
	ordered := Canonical(ids)
	held := make([]int64, 0, len(ordered))

	for _, id := range ordered {
		if err := l.lock(ctx, id); err != nil {
			l.unlockAll(held)
			return nil, err
		}
		held = append(held, id)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(held) })
	}, nil
}

func (l *MemoryLocker) lock(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.dropRef(id, e)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *MemoryLocker) unlockAll(held []int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(held) - 1; i >= 0; i-- {
		e := l.entries[held[i]]
		<-e.sem
		l.dropRef(held[i], e)
	}
}

// dropRef must be called with l.mu held.
func (l *MemoryLocker) dropRef(id int64, e *entry) {
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// Tracked returns the number of accounts currently held or waited on.
func (l *MemoryLocker) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
