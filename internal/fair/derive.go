package fair

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// Side is a coin face.
type Side string

const (
	Heads Side = "HEADS"
	Tails Side = "TAILS"
)

// ParseSide maps a request string to a Side. Accepts the wire casing used by
// clients ("heads"/"tails", any case).
func ParseSide(s string) (Side, bool) {
	switch s {
	case "HEADS", "heads", "Heads":
		return Heads, true
	case "TAILS", "tails", "Tails":
		return Tails, true
	default:
		return "", false
	}
}

// Derive computes the outcome for (serverSeed, clientSeed, nonce).
//
// digest = SHA-256 of the UTF-8 string "serverSeed:clientSeed:nonce" with the
// nonce in decimal. The roll is the first 4 digest bytes read as a big-endian
// uint32; an even roll is HEADS, odd is TAILS. Anyone holding the revealed
// seed can recompute this and check it against the published commitment.
func Derive(serverSeed, clientSeed string, nonce uint64) (digest string, result Side) {
	sum := sha256.Sum256([]byte(serverSeed + ":" + clientSeed + ":" + strconv.FormatUint(nonce, 10)))

	roll := binary.BigEndian.Uint32(sum[:4])
	result = Tails
	if roll%2 == 0 {
		result = Heads
	}

	return hex.EncodeToString(sum[:]), result
}
