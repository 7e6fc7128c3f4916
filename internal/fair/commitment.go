// Package fair implements the provably-fair commit/reveal scheme: the house
// commits to a secret server seed by publishing its SHA-256 hash, derives
// outcomes from the seed combined with caller-supplied inputs, and rotates
// the seed the moment it is revealed.
package fair

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

const seedBytes = 32

// CommitmentStore holds the current server seed and its public hash. A seed
// is only ever handed out via Reveal, which installs a fresh seed in the same
// critical section, so no two reveals can observe the same seed.
type CommitmentStore struct {
	mu   sync.Mutex
	seed string // hex-encoded
	hash string
}

func NewCommitmentStore() *CommitmentStore {
	s := &CommitmentStore{}
	s.seed, s.hash = generate()
	return s
}

// CurrentHash returns the public commitment for the seed the next reveal
// will disclose.
func (s *CommitmentStore) CurrentHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hash
}

// Reveal returns the current seed and its hash and atomically rotates to a
// fresh pair. The returned seed must never be used for a later derivation.
func (s *CommitmentStore) Reveal() (seed, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seed, hash = s.seed, s.hash
	s.seed, s.hash = generate()

	return seed, hash
}

func generate() (seed, hash string) {
	var b [seedBytes]byte
	_, err := rand.Read(b[:])
	if err != nil {
		// crypto/rand never fails on supported platforms; refusing to
		// run without entropy beats issuing a predictable commitment.
		panic("fair: read random seed: " + err.Error())
	}

	seed = hex.EncodeToString(b[:])
	sum := sha256.Sum256([]byte(seed))

	return seed, hex.EncodeToString(sum[:])
}
