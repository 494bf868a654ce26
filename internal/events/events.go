// Package events carries the notifications the paywall core consumes from
// its two collaborators: the wallet-signing flow and the chain observer.
// Subscriptions are explicit subscribe/unsubscribe pairs so waiters can be
// detached on every exit path.
package events

import "sync"

const subscriberBuffer = 16

// Bus is a typed fan-out channel. Publish delivers to every live
// subscriber; a subscriber that falls more than subscriberBuffer events
// behind drops the oldest, which is acceptable here because every consumer
// re-derives current state before acting on an event.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe function. Unsubscribing twice is safe.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan T)
	}
	id := b.next
	b.next++
	ch := make(chan T, subscriberBuffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers ev to all current subscribers.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// drop oldest to make room, then retry once
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Subscribers reports the current subscriber count.
func (b *Bus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// TransactionPending is emitted by the wallet-signing flow once the user
// approves a signature. The hash may still be empty at that point.
type TransactionPending struct {
	Hash string
	From string
	To   string
	Type string
}

// AccountChanged is emitted when the wallet switches accounts.
type AccountChanged struct {
	Address string
}

// NetworkChanged is emitted when the wallet switches chains.
type NetworkChanged struct {
	ChainID int
}

// LockUpdated carries a partial lock observation keyed by address.
type LockUpdated struct {
	Address            string
	Name               *string
	KeyPrice           *string
	ExpirationDuration *uint64
	OutstandingKeys    *int64
	Balance            *string
	Owner              *string
	AsOf               *uint64
}

// KeyUpdated carries a fresh authoritative expiration read for one key.
type KeyUpdated struct {
	Lock       string
	Owner      string
	Expiration int64
}

// TransactionUpdated carries hash-level deltas observed on chain.
type TransactionUpdated struct {
	Hash          string
	Status        string
	Confirmations *int
	BlockNumber   *uint64
}

// WalletEvents groups the wallet-signing channel's signals.
type WalletEvents struct {
	TransactionPending Bus[TransactionPending]
	AccountChanged     Bus[AccountChanged]
	NetworkChanged     Bus[NetworkChanged]
	Errors             Bus[error]
}

// NewWalletEvents returns an empty wallet event group.
func NewWalletEvents() *WalletEvents {
	return &WalletEvents{}
}

// ChainEvents groups the chain-observation channel's signals.
type ChainEvents struct {
	LockUpdated        Bus[LockUpdated]
	KeyUpdated         Bus[KeyUpdated]
	TransactionUpdated Bus[TransactionUpdated]
	Errors             Bus[error]
}

// NewChainEvents returns an empty chain event group.
func NewChainEvents() *ChainEvents {
	return &ChainEvents{}
}
