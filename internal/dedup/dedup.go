// Package dedup computes record identities and tracks which ones a run has
// already seen.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/shanehull/leakwatch/internal/types"
)

// HashLen is the number of hex characters kept from the digest.
const HashLen = 16

// HashID returns the identity of a record: the first 16 hex characters of
// SHA-256 over source, a NUL separator and content.
func HashID(source, content string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))[:HashLen]
}

// Set is the known-id set for one run. It never touches the persisted
// dataset.
type Set struct {
	mu    sync.Mutex
	known map[string]struct{}
}

func NewSet() *Set {
	return &Set{known: make(map[string]struct{})}
}

// Seed registers the ids of already persisted records.
func (s *Set) Seed(records []types.BreachRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.known[r.HashID] = struct{}{}
	}
}

// Admit registers the record and reports true if its id was not known yet.
func (s *Set) Admit(r types.BreachRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[r.HashID]; ok {
		return false
	}
	s.known[r.HashID] = struct{}{}
	return true
}

func (s *Set) Contains(hashID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.known[hashID]
	return ok
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.known)
}
