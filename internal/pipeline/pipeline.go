// Package pipeline advances one purchase attempt per (lock, owner) pair
// through two chained listeners: the submission listener waits for the
// wallet-signing flow to announce the purchase, the confirmation listener
// waits for the chain to report on it. Both stages re-derive current
// status before doing anything, so they are safe to re-invoke after a
// restart mid-purchase: an attempt already past a stage's responsibility
// makes that stage a no-op.
package pipeline

import (
	"context"
	"time"

	"github.com/lockstate/paywall/internal/cache"
	"github.com/lockstate/paywall/internal/chain"
	"github.com/lockstate/paywall/internal/events"
	"github.com/lockstate/paywall/internal/ledger"
	"github.com/lockstate/paywall/internal/logger"
	"github.com/lockstate/paywall/internal/status"
)

// Tables is the working state a purchase attempt reads and returns:
// snapshots of the transaction and key tables. Stages never mutate their
// input tables.
type Tables struct {
	Transactions map[string]*cache.Transaction
	Keys         map[string]*cache.Key
}

func (t Tables) clone() Tables {
	out := Tables{
		Transactions: make(map[string]*cache.Transaction, len(t.Transactions)),
		Keys:         make(map[string]*cache.Key, len(t.Keys)),
	}
	for id, tx := range t.Transactions {
		copied := *tx
		out.Transactions[id] = &copied
	}
	for id, key := range t.Keys {
		copied := *key
		out.Keys[id] = &copied
	}
	return out
}

// Recorder durably records a submitted purchase so other sessions can be
// optimistic about it. Best effort only.
type Recorder interface {
	RecordTransaction(ctx context.Context, rec ledger.Record) error
}

// AwaitSubmission is the submission listener. It waits on the wallet
// channel for the next pending purchase transaction for (lock, owner),
// records the placeholder transaction, and returns the updated tables.
//
// If the attempt is already past submission (anything but none/expired,
// including failed, which deliberately does not re-arm) the inputs are
// returned unchanged.
func AwaitSubmission(ctx context.Context, in Tables, lock, owner string, wallet *events.WalletEvents, recorder Recorder, chainID, requiredConfirmations int) (Tables, error) {
	lock = cache.Normalize(lock)
	owner = cache.Normalize(owner)
	keyID := cache.KeyID(lock, owner)

	linked := cache.LinkTransactionsToKeys(in.Transactions, in.Keys)
	current := status.Derive(keyID, linked, requiredConfirmations)
	if current != cache.StatusNone && current != cache.StatusExpired {
		return in, nil
	}

	pendingCh, unsubscribe := wallet.TransactionPending.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return in, ctx.Err()
		case ev := <-pendingCh:
			// Unrelated transactions (approvals etc.) share this channel
			if ev.Type != cache.TypeKeyPurchase {
				continue
			}

			now := time.Now()
			placeholder := &cache.Transaction{
				ID:            cache.PlaceholderID(lock, owner),
				Hash:          ev.Hash,
				From:          owner,
				To:            lock,
				Status:        cache.StatusSubmitted,
				Confirmations: 0,
				Type:          ev.Type,
				ChainID:       chainID,
				Key:           keyID,
				Lock:          lock,
				CreatedAt:     now,
			}

			out := in.clone()
			out.Transactions[placeholder.ID] = placeholder
			out.Keys = cache.LinkTransactionsToKeys(out.Transactions, out.Keys)

			if recorder != nil && ev.Hash != "" {
				if err := recorder.RecordTransaction(ctx, ledger.Record{
					TransactionHash: ev.Hash,
					Sender:          owner,
					Recipient:       lock,
					For:             owner,
					Chain:           chainID,
				}); err != nil {
					// bookkeeping must never block the purchase flow
					logger.Errorf("ledger record for %s failed: %v", ev.Hash, err)
				}
			}

			return out, nil
		}
	}
}

// AwaitConfirmation is the confirmation listener. It watches the chain
// channel for updates to the key's current transaction, merges them, and
// re-reads the key's authoritative expiration once an update lands (a
// transaction status update alone does not carry the new expiration).
//
// If there is nothing left to watch (no current transaction, a terminal
// status, or a mined transaction already past the confirmation threshold)
// the inputs are returned unchanged.
func AwaitConfirmation(ctx context.Context, in Tables, keyID string, chainEv *events.ChainEvents, provider chain.Provider, requiredConfirmations int) (Tables, error) {
	linked := cache.LinkTransactionsToKeys(in.Transactions, in.Keys)
	key, ok := linked[keyID]
	if !ok || len(key.Transactions) == 0 {
		return in, nil
	}
	tx := key.Transactions[0]

	watchable := tx.Status == cache.StatusSubmitted || tx.Status == cache.StatusPending || tx.Status == cache.StatusMined
	if !watchable || tx.Hash == "" {
		return in, nil
	}
	if tx.Status == cache.StatusMined && tx.Confirmations > requiredConfirmations {
		return in, nil
	}

	updatedCh, unsubUpdates := chainEv.TransactionUpdated.Subscribe()
	defer unsubUpdates()
	// the error listener is scoped to this wait and detached on every exit
	errCh, unsubErrors := chainEv.Errors.Subscribe()
	defer unsubErrors()

	for {
		select {
		case <-ctx.Done():
			return in, ctx.Err()
		case err := <-errCh:
			return in, err
		case ev := <-updatedCh:
			if ev.Hash != tx.Hash {
				continue
			}

			out := in.clone()
			merged, ok := out.Transactions[tx.ID]
			if !ok {
				merged = &cache.Transaction{}
				*merged = *tx
				out.Transactions[tx.ID] = merged
			}
			if ev.Status != "" {
				merged.Status = cache.Status(ev.Status)
			}
			if ev.Confirmations != nil {
				merged.Confirmations = *ev.Confirmations
			}
			if ev.BlockNumber != nil {
				n := *ev.BlockNumber
				merged.BlockNumber = &n
			}

			expiration, err := provider.KeyExpiration(ctx, key.Lock, key.Owner)
			if err != nil {
				return in, err
			}
			refreshed := out.Keys[keyID]
			if refreshed == nil {
				refreshed = &cache.Key{Lock: key.Lock, Owner: key.Owner}
				out.Keys[keyID] = refreshed
			}
			if expiration > refreshed.Expiration {
				refreshed.Expiration = expiration
			}

			out.Keys = cache.LinkTransactionsToKeys(out.Transactions, out.Keys)
			return out, nil
		}
	}
}
