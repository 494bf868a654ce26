package chain

import (
	"context"

	"github.com/lockstate/paywall/internal/cache"
	"github.com/lockstate/paywall/internal/events"
	"github.com/lockstate/paywall/internal/logger"
)

// Observer turns provider reads into chain events. It is the refresh half
// of the cache's fire-and-forget key fetch path.
type Observer struct {
	Provider Provider
	Events   *events.ChainEvents
}

// NewObserver wires a provider to a chain event group.
func NewObserver(provider Provider, ev *events.ChainEvents) *Observer {
	return &Observer{Provider: provider, Events: ev}
}

// RefreshKey reads the authoritative expiration for (lock, owner) and
// publishes it as a key.updated event. Failures are logged and surfaced on
// the error bus; the caller never blocks on the result.
func (o *Observer) RefreshKey(ctx context.Context, lock, owner string) {
	expiration, err := o.Provider.KeyExpiration(ctx, lock, owner)
	if err != nil {
		logger.Errorf("key refresh for %s/%s failed: %v", lock, owner, err)
		o.Events.Errors.Publish(err)
		return
	}
	o.Events.KeyUpdated.Publish(events.KeyUpdated{
		Lock:       lock,
		Owner:      owner,
		Expiration: expiration,
	})
}

// Mirror consumes chain events into the store until ctx is cancelled.
// Intended to run as a goroutine; it is the single writer applying push
// updates, so merge ordering matches arrival ordering.
func Mirror(ctx context.Context, ev *events.ChainEvents, store *cache.Store) {
	lockCh, unsubLocks := ev.LockUpdated.Subscribe()
	defer unsubLocks()
	keyCh, unsubKeys := ev.KeyUpdated.Subscribe()
	defer unsubKeys()
	txCh, unsubTxs := ev.TransactionUpdated.Subscribe()
	defer unsubTxs()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-lockCh:
			store.MergeLock(update.Address, cache.LockUpdate{
				Name:               update.Name,
				KeyPrice:           update.KeyPrice,
				ExpirationDuration: update.ExpirationDuration,
				OutstandingKeys:    update.OutstandingKeys,
				Balance:            update.Balance,
				Owner:              update.Owner,
				AsOf:               update.AsOf,
			})
		case update := <-keyCh:
			expiration := update.Expiration
			store.MergeKey(update.Lock, update.Owner, cache.KeyUpdate{
				Expiration: &expiration,
			})
		case update := <-txCh:
			merge := cache.TransactionUpdate{
				Hash:          &update.Hash,
				Confirmations: update.Confirmations,
				BlockNumber:   update.BlockNumber,
			}
			if update.Status != "" {
				st := cache.Status(update.Status)
				merge.Status = &st
			}
			store.MergeTransaction(update.Hash, merge)
		}
	}
}
