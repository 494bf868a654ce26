package cache

import (
	"strings"
	"time"
)

// Status is the shared lifecycle vocabulary. Transactions use the subset
// {none, submitted, pending, mined, failed, stale}; derived key statuses
// additionally use {confirming, valid, expired}.
type Status string

const (
	StatusNone       Status = "none"
	StatusSubmitted  Status = "submitted"
	StatusPending    Status = "pending"
	StatusMined      Status = "mined"
	StatusFailed     Status = "failed"
	StatusStale      Status = "stale"
	StatusConfirming Status = "confirming"
	StatusValid      Status = "valid"
	StatusExpired    Status = "expired"
)

// TypeKeyPurchase marks the transaction type the purchase pipeline cares
// about; other types (approvals etc.) share the wallet channel and are
// skipped.
const TypeKeyPurchase = "KEY_PURCHASE"

// Lock mirrors the observed state of one membership contract. Records are
// only ever superseded by merges, never deleted.
type Lock struct {
	Address            string `json:"address"`
	Name               string `json:"name,omitempty"`
	KeyPrice           string `json:"keyPrice,omitempty"`
	ExpirationDuration uint64 `json:"expirationDuration,omitempty"`
	MaxNumberOfKeys    int64  `json:"maxNumberOfKeys,omitempty"`
	OutstandingKeys    int64  `json:"outstandingKeys,omitempty"`
	Balance            string `json:"balance,omitempty"`
	Owner              string `json:"owner,omitempty"`
	AsOf               uint64 `json:"asOf,omitempty"`
}

// Key is one owner's membership against one lock. Expiration is the sole
// authoritative-truth field: it is only ever written from values read from
// chain state, never inferred from a transaction status.
type Key struct {
	Lock       string `json:"lock"`
	Owner      string `json:"owner"`
	Expiration int64  `json:"expiration"` // unix seconds, 0 = never purchased

	// Transactions is filled in by the linker; index 0 is "the" current
	// transaction everywhere else.
	Transactions []*Transaction `json:"transactions,omitempty"`
}

// ID returns the composite key identity.
func (k *Key) ID() string {
	return KeyID(k.Lock, k.Owner)
}

// Transaction is one observed or anticipated purchase transaction. Before
// the wallet assigns a hash the record is keyed by a synthetic placeholder
// id instead.
type Transaction struct {
	ID            string    `json:"id"`
	Hash          string    `json:"hash,omitempty"` // empty until the wallet assigns one
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	Status        Status    `json:"status"`
	Confirmations int       `json:"confirmations"`
	BlockNumber   *uint64   `json:"blockNumber,omitempty"` // nil while unmined; sorts first
	Type          string    `json:"type,omitempty"`
	ChainID       int       `json:"network,omitempty"`
	Key           string    `json:"key,omitempty"`
	Lock          string    `json:"lock,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`

	// SupersededBy points at the hash-keyed record that replaced this
	// placeholder. Superseded records stop being treated as current but are
	// never hard-deleted.
	SupersededBy string `json:"supersededBy,omitempty"`
}

// LockUpdate is a partial lock record; nil fields are left untouched by a
// merge.
type LockUpdate struct {
	Name               *string
	KeyPrice           *string
	ExpirationDuration *uint64
	MaxNumberOfKeys    *int64
	OutstandingKeys    *int64
	Balance            *string
	Owner              *string
	AsOf               *uint64
}

// KeyUpdate is a partial key record.
type KeyUpdate struct {
	Expiration *int64
}

// TransactionUpdate is a partial transaction record.
type TransactionUpdate struct {
	Hash          *string
	From          *string
	To            *string
	Status        *Status
	Confirmations *int
	BlockNumber   *uint64
	Type          *string
	ChainID       *int
	Key           *string
	Lock          *string
	CreatedAt     *time.Time
}

// Normalize lowercases an address so records merge regardless of the
// checksum casing an upstream source used.
func Normalize(address string) string {
	return strings.ToLower(address)
}

// KeyID builds the composite (lock, owner) key identity.
func KeyID(lock, owner string) string {
	return Normalize(lock) + "-" + Normalize(owner)
}

// PlaceholderID keys a submitted-but-unhashed transaction.
func PlaceholderID(lock, owner string) string {
	return "submitted-" + Normalize(lock) + "-" + Normalize(owner)
}
