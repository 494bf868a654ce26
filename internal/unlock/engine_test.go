package unlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstate/paywall/internal/chain"
	"github.com/lockstate/paywall/internal/config"
	"github.com/lockstate/paywall/internal/ledger"
)

type fakeProvider struct {
	expirations   map[string]int64 // keyed by lock-owner
	txs           map[string]*chain.RawTransaction
	expirationErr error
	txErr         error
}

func (p *fakeProvider) KeyExpiration(ctx context.Context, lock, owner string) (int64, error) {
	if p.expirationErr != nil {
		return 0, p.expirationErr
	}
	return p.expirations[lock+"-"+owner], nil
}

func (p *fakeProvider) TransactionByHash(ctx context.Context, hash string) (*chain.RawTransaction, error) {
	if p.txErr != nil {
		return nil, p.txErr
	}
	return p.txs[hash], nil
}

type fakeLedger struct {
	records []ledger.Record
	err     error
	calls   int
}

func (l *fakeLedger) Transactions(ctx context.Context, user string, recipients []string) ([]ledger.Record, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.records, nil
}

func testEngine(provider chain.Provider, reader ledgerReader) *Engine {
	engine := NewEngine(map[int]config.Network{
		1: {Name: "mainnet", ReadOnlyProvider: "http://rpc.test", LocksmithURI: "http://ledger.test"},
	})
	engine.dial = func(ctx context.Context, url string) (chain.Provider, error) {
		return provider, nil
	}
	engine.newLedger = func(baseURL string) ledgerReader {
		return reader
	}
	return engine
}

const (
	user = "0xuser"
	lock = "0xlock"
)

func paywallFor(lock string, pessimistic bool) PaywallConfig {
	return PaywallConfig{
		Network:     1,
		Pessimistic: pessimistic,
		Locks:       map[string]PaywallLockConfig{lock: {}},
	}
}

func TestUnlockedAuthoritativeValidKey(t *testing.T) {
	provider := &fakeProvider{expirations: map[string]int64{
		lock + "-" + user: time.Now().Add(time.Hour).Unix(),
	}}
	reader := &fakeLedger{}
	engine := testEngine(provider, reader)

	unlocked, err := engine.Unlocked(context.Background(), user, paywallFor(lock, false))

	require.NoError(t, err)
	assert.Equal(t, []string{lock}, unlocked)
	// chain truth sufficed, optimism never consulted
	assert.Zero(t, reader.calls)
}

func TestUnlockedPessimisticIgnoresPendingPurchase(t *testing.T) {
	provider := &fakeProvider{
		expirations: map[string]int64{}, // never purchased
		txs: map[string]*chain.RawTransaction{
			"0xabc": {Hash: "0xabc"}, // unmined
		},
	}
	reader := &fakeLedger{records: []ledger.Record{{
		TransactionHash: "0xabc", Recipient: lock, For: user,
		CreatedAt: time.Now().Add(-time.Hour),
	}}}
	engine := testEngine(provider, reader)

	unlocked, err := engine.Unlocked(context.Background(), user, paywallFor(lock, true))

	require.NoError(t, err)
	assert.Empty(t, unlocked)
	assert.Zero(t, reader.calls)
}

func TestUnlockedOptimisticOnRecentUnminedPurchase(t *testing.T) {
	provider := &fakeProvider{
		expirations: map[string]int64{},
		txs: map[string]*chain.RawTransaction{
			"0xabc": {Hash: "0xabc"}, // exists, no block number yet
		},
	}
	reader := &fakeLedger{records: []ledger.Record{{
		TransactionHash: "0xabc", Recipient: lock, For: user,
		CreatedAt: time.Now().Add(-time.Hour),
	}}}
	engine := testEngine(provider, reader)

	unlocked, err := engine.Unlocked(context.Background(), user, paywallFor(lock, false))

	require.NoError(t, err)
	assert.Equal(t, []string{lock}, unlocked)
}

func TestUnlockedStaleSubmissionExcluded(t *testing.T) {
	provider := &fakeProvider{
		expirations: map[string]int64{},
		txs: map[string]*chain.RawTransaction{
			"0xabc": {Hash: "0xabc"},
		},
	}
	reader := &fakeLedger{records: []ledger.Record{{
		TransactionHash: "0xabc", Recipient: lock, For: user,
		CreatedAt: time.Now().Add(-30 * time.Hour),
	}}}
	engine := testEngine(provider, reader)

	unlocked, err := engine.Unlocked(context.Background(), user, paywallFor(lock, false))

	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestUnlockedLedgerFailureMeansLocked(t *testing.T) {
	provider := &fakeProvider{expirations: map[string]int64{}}
	reader := &fakeLedger{err: errors.New("ledger unreachable")}
	engine := testEngine(provider, reader)

	unlocked, err := engine.Unlocked(context.Background(), user, paywallFor(lock, false))

	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestUnlockedUnknownNetworkStaysLocked(t *testing.T) {
	engine := testEngine(&fakeProvider{}, &fakeLedger{})
	paywall := PaywallConfig{
		Network: 999, // not configured
		Locks:   map[string]PaywallLockConfig{lock: {}},
	}

	unlocked, err := engine.Unlocked(context.Background(), user, paywall)

	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestUnlockedEvaluatesLocksIndependently(t *testing.T) {
	validLock := "0xvalid"
	provider := &fakeProvider{expirations: map[string]int64{
		validLock + "-" + user: time.Now().Add(time.Hour).Unix(),
	}}
	reader := &fakeLedger{}
	engine := testEngine(provider, reader)
	paywall := PaywallConfig{
		Network: 1,
		Locks: map[string]PaywallLockConfig{
			validLock: {},
			"0xnever": {},
		},
	}

	unlocked, err := engine.Unlocked(context.Background(), user, paywall)

	require.NoError(t, err)
	assert.Equal(t, []string{validLock}, unlocked)
}

func TestUnlockedDeduplicatesAddresses(t *testing.T) {
	provider := &fakeProvider{expirations: map[string]int64{
		lock + "-" + user: time.Now().Add(time.Hour).Unix(),
	}}
	engine := testEngine(provider, &fakeLedger{})
	paywall := PaywallConfig{
		Network: 1,
		Locks: map[string]PaywallLockConfig{
			"0xLOCK": {},
			"0xlock": {},
		},
	}

	unlocked, err := engine.Unlocked(context.Background(), user, paywall)

	require.NoError(t, err)
	assert.Equal(t, []string{lock}, unlocked)
}

func TestWillUnlockMissingTransaction(t *testing.T) {
	provider := &fakeProvider{}

	assert.False(t, WillUnlock(context.Background(), provider, user, lock, "0xunknown", false))
	assert.True(t, WillUnlock(context.Background(), provider, user, lock, "0xunknown", true))
}

func TestWillUnlockMinedDefersToChain(t *testing.T) {
	block := uint64(100)
	provider := &fakeProvider{
		expirations: map[string]int64{}, // mined but key expired on chain
		txs: map[string]*chain.RawTransaction{
			"0xabc": {Hash: "0xabc", BlockNumber: &block},
		},
	}

	// a mined-but-reverted-looking purchase is never optimistically trusted
	assert.False(t, WillUnlock(context.Background(), provider, user, lock, "0xabc", false))
	assert.False(t, WillUnlock(context.Background(), provider, user, lock, "0xabc", true))

	provider.expirations[lock+"-"+user] = time.Now().Add(time.Hour).Unix()
	assert.True(t, WillUnlock(context.Background(), provider, user, lock, "0xabc", false))
}

func TestWillUnlockUnmined(t *testing.T) {
	provider := &fakeProvider{
		txs: map[string]*chain.RawTransaction{
			"0xabc": {Hash: "0xabc"},
		},
	}

	assert.True(t, WillUnlock(context.Background(), provider, user, lock, "0xabc", false))
}

func TestWillUnlockLookupErrorMeansLocked(t *testing.T) {
	provider := &fakeProvider{txErr: errors.New("rpc timeout")}

	assert.False(t, WillUnlock(context.Background(), provider, user, lock, "0xabc", true))
}
