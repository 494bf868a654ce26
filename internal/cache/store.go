package cache

import (
	"context"
	"sync"
)

// KeyRefresher requests a fresh read of one key from the chain-observation
// collaborator. Results come back later through the merge path, not as a
// return value.
type KeyRefresher interface {
	RefreshKey(ctx context.Context, lock, owner string)
}

// Store holds the latest known view of locks, keys and transactions as a
// shallow-merge target for partial, out-of-order push updates. Merges are
// commutative per field, so last writer wins; the one monotonicity guard is
// on key expiration, which never regresses.
type Store struct {
	mu           sync.RWMutex
	locks        map[string]*Lock
	keys         map[string]*Key
	transactions map[string]*Transaction
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		locks:        make(map[string]*Lock),
		keys:         make(map[string]*Key),
		transactions: make(map[string]*Transaction),
	}
}

// MergeLock merges a partial update onto the lock record for address,
// creating the record if absent. The address field is always re-stamped
// with the normalized address.
func (s *Store) MergeLock(address string, update LockUpdate) {
	address = Normalize(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[address]
	if !ok {
		lock = &Lock{}
		s.locks[address] = lock
	}
	lock.Address = address
	if update.Name != nil {
		lock.Name = *update.Name
	}
	if update.KeyPrice != nil {
		lock.KeyPrice = *update.KeyPrice
	}
	if update.ExpirationDuration != nil {
		lock.ExpirationDuration = *update.ExpirationDuration
	}
	if update.MaxNumberOfKeys != nil {
		lock.MaxNumberOfKeys = *update.MaxNumberOfKeys
	}
	if update.OutstandingKeys != nil {
		lock.OutstandingKeys = *update.OutstandingKeys
	}
	if update.Balance != nil {
		lock.Balance = *update.Balance
	}
	if update.Owner != nil {
		lock.Owner = Normalize(*update.Owner)
	}
	if update.AsOf != nil {
		lock.AsOf = *update.AsOf
	}
}

// MergeKey merges a partial update onto the key record for (lock, owner),
// creating the record if absent. A smaller expiration never overwrites a
// larger one: stale chain events cannot regress a key.
func (s *Store) MergeKey(lock, owner string, update KeyUpdate) {
	lock = Normalize(lock)
	owner = Normalize(owner)
	id := KeyID(lock, owner)

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		key = &Key{}
		s.keys[id] = key
	}
	key.Lock = lock
	key.Owner = owner
	if update.Expiration != nil && *update.Expiration > key.Expiration {
		key.Expiration = *update.Expiration
	}
}

// MergeTransaction merges a partial update onto the transaction record for
// id, creating the record if absent. When the merged record carries a real
// hash, any placeholder for the same (lock, owner) attempt is marked
// superseded so it stops being treated as current.
func (s *Store) MergeTransaction(id string, update TransactionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		tx = &Transaction{}
		s.transactions[id] = tx
	}
	tx.ID = id
	if update.Hash != nil {
		tx.Hash = *update.Hash
	}
	if update.From != nil {
		tx.From = Normalize(*update.From)
	}
	if update.To != nil {
		tx.To = Normalize(*update.To)
	}
	if update.Status != nil {
		tx.Status = *update.Status
	}
	if update.Confirmations != nil {
		tx.Confirmations = *update.Confirmations
	}
	if update.BlockNumber != nil {
		n := *update.BlockNumber
		tx.BlockNumber = &n
	}
	if update.Type != nil {
		tx.Type = *update.Type
	}
	if update.ChainID != nil {
		tx.ChainID = *update.ChainID
	}
	if update.Key != nil {
		tx.Key = *update.Key
	}
	if update.Lock != nil {
		tx.Lock = Normalize(*update.Lock)
	}
	if update.CreatedAt != nil {
		tx.CreatedAt = *update.CreatedAt
	}

	if tx.Hash != "" && tx.To != "" && tx.From != "" {
		placeholder := PlaceholderID(tx.To, tx.From)
		if placeholder != id {
			if prev, ok := s.transactions[placeholder]; ok && prev.SupersededBy == "" {
				prev.SupersededBy = tx.Hash
			}
		}
	}
}

// FetchKeys issues one fire-and-forget refresh per lock address for the
// given owner. A no-op if either input is empty. Results arrive later via
// MergeKey, driven by the chain-observation collaborator.
func (s *Store) FetchKeys(ctx context.Context, refresher KeyRefresher, owner string, locks []string) {
	if owner == "" || len(locks) == 0 || refresher == nil {
		return
	}
	for _, lock := range locks {
		go refresher.RefreshKey(ctx, Normalize(lock), Normalize(owner))
	}
}

// Lock returns a copy of the lock record for address, if known.
func (s *Store) Lock(address string) (Lock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lock, ok := s.locks[Normalize(address)]
	if !ok {
		return Lock{}, false
	}
	return *lock, true
}

// Key returns a copy of the key record for (lock, owner), if known.
func (s *Store) Key(lock, owner string) (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[KeyID(lock, owner)]
	if !ok {
		return Key{}, false
	}
	return *key, true
}

// Keys returns a snapshot of the key table.
func (s *Store) Keys() map[string]*Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Key, len(s.keys))
	for id, key := range s.keys {
		copied := *key
		out[id] = &copied
	}
	return out
}

// Transactions returns a snapshot of the transaction table.
func (s *Store) Transactions() map[string]*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Transaction, len(s.transactions))
	for id, tx := range s.transactions {
		copied := *tx
		out[id] = &copied
	}
	return out
}
