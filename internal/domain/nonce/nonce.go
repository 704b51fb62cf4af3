// Package nonce tracks single-use commit challenge nonces.
//
// A nonce is issued at the prepare step bound to the requesting address,
// and consumed exactly once at the verify step. Unknown, expired, reused
// or wrong-address nonces all fail consumption, which closes the replay
// window between prepare and verify.
package nonce

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultTTL = 5 * time.Minute

type entry struct {
	address string
	expires time.Time
}

// Store is an in-memory single-use nonce registry.
type Store struct {
	mu     sync.Mutex
	issued map[string]entry
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a nonce store with configuration options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		issued: make(map[string]entry),
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a fresh random nonce bound to address.
func (s *Store) Issue(address string) string {
	n := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.issued[n] = entry{
		address: strings.ToLower(address),
		expires: s.now().Add(s.ttl),
	}
	return n
}

// Consume atomically validates and retires a nonce. It returns true only
// when the nonce was issued to the same address (case-insensitive), has
// not expired and has not been consumed before.
func (s *Store) Consume(address, n string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.issued[n]
	if !ok {
		return false
	}
	// Single-use: retire the nonce no matter how validation goes.
	delete(s.issued, n)

	if s.now().After(e.expires) {
		return false
	}
	return e.address == strings.ToLower(address)
}

// Size returns the number of outstanding nonces.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}

// sweepLocked drops expired entries. Must be called with s.mu held.
func (s *Store) sweepLocked() {
	now := s.now()
	for n, e := range s.issued {
		if now.After(e.expires) {
			delete(s.issued, n)
		}
	}
}
