package fair

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

// Vectors computed independently with a separate SHA-256 implementation over
// the exact delimiter-joined strings.
func TestDeriveVectors(t *testing.T) {
	t.Parallel()

	seedA := strings.Repeat("a3f1", 16)
	seedZ := strings.Repeat("00", 32)

	tests := []struct {
		name       string
		seed       string
		clientSeed string
		nonce      uint64
		wantDigest string
		wantResult Side
	}{
		{
			name:       "seedA_nonce0",
			seed:       seedA,
			clientSeed: "player-one",
			nonce:      0,
			wantDigest: "b1d6bcfe28b9b370959cfb9b49a04daf801bd191bfdee26372c53ef74d475d7a",
			wantResult: Heads,
		},
		{
			name:       "seedA_nonce1",
			seed:       seedA,
			clientSeed: "player-one",
			nonce:      1,
			wantDigest: "e6750ec8c3e3efd9e1a4826e089ea4d6c2e5f586a1af02cd8e0eeac5e29b8453",
			wantResult: Heads,
		},
		{
			name:       "zero_seed_nonce7",
			seed:       seedZ,
			clientSeed: "lucky",
			nonce:      7,
			wantDigest: "1ebc6e817fed7019b7521d155da94db36ff8e609928e664e66bd4bc3fde9a039",
			wantResult: Tails,
		},
		{
			name:       "zero_seed_nonce42",
			seed:       seedZ,
			clientSeed: "lucky",
			nonce:      42,
			wantDigest: "b549a86e7d22779f88f1cf31d90abe69c8ec9b99d25cba72e64966a80ab6fd98",
			wantResult: Heads,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			digest, result := Derive(tt.seed, tt.clientSeed, tt.nonce)
			if digest != tt.wantDigest {
				t.Fatalf("digest mismatch:\n got  %s\n want %s", digest, tt.wantDigest)
			}
			if result != tt.wantResult {
				t.Fatalf("result mismatch: got %s, want %s", result, tt.wantResult)
			}
		})
	}
}

func TestDeriveDeterministic(t *testing.T) {
	t.Parallel()

	d1, r1 := Derive("feed", "client", 3)
	for range 100 {
		d2, r2 := Derive("feed", "client", 3)
		if d1 != d2 || r1 != r2 {
			t.Fatal("derive is not deterministic for fixed inputs")
		}
	}
}

// Independent audit: recompute the digest with crypto/sha256 over the joined
// string, the way an external verifier would.
func TestDeriveMatchesIndependentRecomputation(t *testing.T) {
	t.Parallel()

	seed, clientSeed, nonce := strings.Repeat("5c", 32), "audit-me", uint64(12345)

	digest, _ := Derive(seed, clientSeed, nonce)

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", seed, clientSeed, nonce)))
	if digest != hex.EncodeToString(sum[:]) {
		t.Fatal("digest does not match independent recomputation")
	}
}

func TestDeriveDistribution(t *testing.T) {
	t.Parallel()

	const n = 20000
	heads := 0
	for i := range n {
		_, result := Derive("d15tr1b", "spread", uint64(i))
		if result == Heads {
			heads++
		}
	}

	ratio := float64(heads) / n
	if ratio < 0.47 || ratio > 0.53 {
		t.Fatalf("heads ratio %f outside [0.47, 0.53]", ratio)
	}
}

func TestCommitmentHashMatchesSeed(t *testing.T) {
	t.Parallel()

	s := NewCommitmentStore()

	hash := s.CurrentHash()
	seed, revealedHash := s.Reveal()

	if revealedHash != hash {
		t.Fatal("reveal returned a hash other than the published commitment")
	}

	sum := sha256.Sum256([]byte(seed))
	if hex.EncodeToString(sum[:]) != hash {
		t.Fatal("published hash is not the hash of the revealed seed")
	}

	if len(seed) != 64 {
		t.Fatalf("seed length %d, want 64 hex chars", len(seed))
	}
}

func TestRevealRotates(t *testing.T) {
	t.Parallel()

	s := NewCommitmentStore()

	seen := make(map[string]bool)
	for range 50 {
		seed, _ := s.Reveal()
		if seen[seed] {
			t.Fatal("seed reused across reveals")
		}
		seen[seed] = true
	}

	// The hash published after a reveal must commit to a different seed.
	h1 := s.CurrentHash()
	s.Reveal()
	if s.CurrentHash() == h1 {
		t.Fatal("commitment did not rotate on reveal")
	}
}

func TestConcurrentRevealsNeverShareSeed(t *testing.T) {
	t.Parallel()

	s := NewCommitmentStore()

	const n = 64
	seeds := make(chan string, n)
	for range n {
		go func() {
			seed, _ := s.Reveal()
			seeds <- seed
		}()
	}

	seen := make(map[string]bool)
	for range n {
		seed := <-seeds
		if seen[seed] {
			t.Fatal("two concurrent reveals observed the same seed")
		}
		seen[seed] = true
	}
}

func TestParseSide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Side
		ok   bool
	}{
		{"heads", Heads, true},
		{"HEADS", Heads, true},
		{"tails", Tails, true},
		{"TAILS", Tails, true},
		{"", "", false},
		{"edge", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseSide(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseSide(%q) = (%q, %t), want (%q, %t)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
