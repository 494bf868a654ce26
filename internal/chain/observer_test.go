package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstate/paywall/internal/cache"
	"github.com/lockstate/paywall/internal/events"
)

type fakeProvider struct {
	expiration int64
	err        error
}

func (p *fakeProvider) KeyExpiration(ctx context.Context, lock, owner string) (int64, error) {
	return p.expiration, p.err
}

func (p *fakeProvider) TransactionByHash(ctx context.Context, hash string) (*RawTransaction, error) {
	return nil, nil
}

func TestRefreshKeyPublishesExpiration(t *testing.T) {
	ev := events.NewChainEvents()
	observer := NewObserver(&fakeProvider{expiration: 4200}, ev)

	ch, unsubscribe := ev.KeyUpdated.Subscribe()
	defer unsubscribe()

	observer.RefreshKey(context.Background(), "0xlock", "0xowner")

	select {
	case update := <-ch:
		assert.Equal(t, "0xlock", update.Lock)
		assert.Equal(t, "0xowner", update.Owner)
		assert.Equal(t, int64(4200), update.Expiration)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for key update")
	}
}

func TestRefreshKeyFailureSignalsError(t *testing.T) {
	ev := events.NewChainEvents()
	observer := NewObserver(&fakeProvider{err: errors.New("rpc down")}, ev)

	keyCh, unsubKeys := ev.KeyUpdated.Subscribe()
	defer unsubKeys()
	errCh, unsubErrs := ev.Errors.Subscribe()
	defer unsubErrs()

	observer.RefreshKey(context.Background(), "0xlock", "0xowner")

	select {
	case err := <-errCh:
		assert.EqualError(t, err, "rpc down")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error signal")
	}
	select {
	case <-keyCh:
		t.Fatal("no key update should be published on failure")
	default:
	}
}

func TestMirrorAppliesChainEvents(t *testing.T) {
	ev := events.NewChainEvents()
	store := cache.NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Mirror(ctx, ev, store)

	require.Eventually(t, func() bool {
		return ev.KeyUpdated.Subscribers() == 1
	}, time.Second, 5*time.Millisecond)

	name := "Week Pass"
	ev.LockUpdated.Publish(events.LockUpdated{Address: "0xLock", Name: &name})
	ev.KeyUpdated.Publish(events.KeyUpdated{Lock: "0xlock", Owner: "0xowner", Expiration: 9000})
	confirmations := 2
	block := uint64(77)
	ev.TransactionUpdated.Publish(events.TransactionUpdated{
		Hash: "0xabc", Status: string(cache.StatusMined),
		Confirmations: &confirmations, BlockNumber: &block,
	})

	require.Eventually(t, func() bool {
		_, ok := store.Lock("0xlock")
		if !ok {
			return false
		}
		_, ok = store.Key("0xlock", "0xowner")
		if !ok {
			return false
		}
		_, ok = store.Transactions()["0xabc"]
		return ok
	}, time.Second, 5*time.Millisecond)

	lock, _ := store.Lock("0xlock")
	assert.Equal(t, "Week Pass", lock.Name)

	key, _ := store.Key("0xlock", "0xowner")
	assert.Equal(t, int64(9000), key.Expiration)

	tx := store.Transactions()["0xabc"]
	assert.Equal(t, cache.StatusMined, tx.Status)
	assert.Equal(t, 2, tx.Confirmations)
	require.NotNil(t, tx.BlockNumber)
	assert.Equal(t, uint64(77), *tx.BlockNumber)
}
