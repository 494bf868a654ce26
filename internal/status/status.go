// Package status derives the user-visible status of a membership key from
// the cached key record and its most recent linked transaction. Derivation
// is pure: no side effects, safe to call repeatedly, and must be
// re-evaluated whenever the key or its linked transaction changes.
package status

import (
	"time"

	"github.com/lockstate/paywall/internal/cache"
)

// Derive computes the status of keyID against the linked key table using
// the current wall clock.
func Derive(keyID string, keys map[string]*cache.Key, requiredConfirmations int) cache.Status {
	return DeriveAt(keyID, keys, requiredConfirmations, time.Now())
}

// DeriveAt is Derive with an explicit evaluation time.
//
// While a transaction is in flight its own status doubles as the key
// status (submitted/pending/failed). Once mined, the key is confirming
// until the confirmation count reaches the required threshold (reaching it
// exactly is sufficient), then valid or expired against the key's
// authoritative expiration (which must be strictly in the future).
func DeriveAt(keyID string, keys map[string]*cache.Key, requiredConfirmations int, now time.Time) cache.Status {
	if keyID == "" || keys == nil {
		return cache.StatusNone
	}
	key, ok := keys[keyID]
	if !ok || key == nil {
		return cache.StatusNone
	}

	if len(key.Transactions) == 0 {
		return cache.StatusNone
	}
	tx := key.Transactions[0]
	if tx == nil || tx.Status == "" || tx.Status == cache.StatusNone {
		return cache.StatusNone
	}

	if tx.Status != cache.StatusMined {
		return tx.Status
	}

	if tx.Confirmations < requiredConfirmations {
		return cache.StatusConfirming
	}
	if key.Expiration > now.Unix() {
		return cache.StatusValid
	}
	return cache.StatusExpired
}
