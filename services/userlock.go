package services

import "sync"

// UserLocks serializes mutating operations per user account. Check-then-
// reserve on the caps and position transitions must not interleave for the
// same user; different users proceed in parallel.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for one user and returns the unlock func.
func (u *UserLocks) Lock(userID string) func() {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	u.mu.Unlock()

	l.Lock()
	return l.Unlock
}
