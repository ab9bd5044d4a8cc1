package services

import (
	"context"
	"sync"
	"time"

	"badminton_club/internal/apperr"
)

const (
	lockPrefix     = "lock:"
	defaultLockTTL = 30 * time.Second
)

// Locker grants single-writer access to one record. The returned func
// releases the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localLease
	seq  uint64
	now  func() time.Time
}

// localLease is one acquisition. The token lets a release tell its own lease
// from one granted to someone else after expiry.
type localLease struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localLease{}, now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.held[key]; ok && now.Before(lease.expires) {
		return nil, apperr.Conflict("%s is being modified by another operation, retry shortly", key)
	}
	l.seq++
	token := l.seq
	l.held[key] = localLease{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[key]; ok && lease.token == token {
			delete(l.held, key)
		}
	}, nil
}

func paymentLockKey(id string) string { return "payment:" + id }

func memberLockKey(id string) string { return "member:" + id }
