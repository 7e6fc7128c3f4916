package burns

import (
	"context"
	"time"
)

// Burn is one buyback-and-burn executed by the keeper against the house
// reserve. The API only reads the feed; the keeper writes it.
type Burn struct {
	ID       int64
	TxRef    string
	Lamports int64
	BurnedAt time.Time
}

type Burns interface {
	Insert(ctx context.Context, txRef string, lamports int64) error

	// Latest returns up to limit burns, newest first.
	Latest(ctx context.Context, limit int) ([]Burn, error)
}
