// Package chain defines the chain-observation collaborator: authoritative
// reads of key expirations and raw transaction lookups, plus the observer
// glue that feeds chain events back into the cache.
package chain

import "context"

// RawTransaction is the chain's view of a transaction. BlockNumber is nil
// while the transaction is unmined.
type RawTransaction struct {
	Hash        string
	From        string
	To          string
	BlockNumber *uint64
}

// Provider reads authoritative state from one chain.
type Provider interface {
	// KeyExpiration returns the unix-seconds expiration of the (lock,
	// owner) key, 0 when no key was ever purchased.
	KeyExpiration(ctx context.Context, lock, owner string) (int64, error)

	// TransactionByHash fetches a raw transaction. A nil transaction with
	// a nil error means the chain does not know the hash.
	TransactionByHash(ctx context.Context, hash string) (*RawTransaction, error)
}
