package booking

import "sync"

// staffLocks serializes conflict-scan-then-write sequences per staff member.
// Entries are never evicted; the table is bounded by the size of the staff
// roster.
type staffLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newStaffLocks() *staffLocks {
	return &staffLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the staff id and returns its unlock func.
func (l *staffLocks) Lock(staffID string) func() {
	l.mu.Lock()
	m, ok := l.locks[staffID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[staffID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
