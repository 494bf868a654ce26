// Package unlock decides which locks a user may currently access. On-chain
// truth is always consulted first; optimism about recently submitted,
// not-yet-mined purchases is a configurable fallback. Any unresolved
// ambiguity resolves to locked; that is the one hard invariant here.
package unlock

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lockstate/paywall/internal/cache"
	"github.com/lockstate/paywall/internal/chain"
	"github.com/lockstate/paywall/internal/config"
	"github.com/lockstate/paywall/internal/ledger"
	"github.com/lockstate/paywall/internal/logger"
)

// optimismWindow bounds how old a recorded submission may be and still
// grant optimistic access.
const optimismWindow = 24 * time.Hour

// PaywallLockConfig is the per-lock slice of a paywall configuration.
type PaywallLockConfig struct {
	Name    string `json:"name,omitempty"`
	Network int    `json:"network,omitempty"` // overrides the paywall default
}

// PaywallConfig is the caller-supplied decision input. Immutable per run.
type PaywallConfig struct {
	Network     int                          `json:"network,omitempty"`
	Pessimistic bool                         `json:"pessimistic,omitempty"`
	Locks       map[string]PaywallLockConfig `json:"locks"`
}

type ledgerReader interface {
	Transactions(ctx context.Context, user string, recipients []string) ([]ledger.Record, error)
}

// Engine evaluates paywall configurations against chain state and the
// transaction ledger.
type Engine struct {
	networks map[int]config.Network

	// injection points for tests
	dial      func(ctx context.Context, url string) (chain.Provider, error)
	newLedger func(baseURL string) ledgerReader
}

// NewEngine returns an engine over the given chain table.
func NewEngine(networks map[int]config.Network) *Engine {
	return &Engine{
		networks: networks,
		dial: func(ctx context.Context, url string) (chain.Provider, error) {
			return chain.Dial(ctx, url)
		},
		newLedger: func(baseURL string) ledgerReader {
			return ledger.NewClient(baseURL)
		},
	}
}

// Unlocked returns the subset of configured lock addresses the user
// currently may access. Locks are evaluated concurrently and
// independently; a slow or failing lock never blocks or unlocks the
// others.
func (e *Engine) Unlocked(ctx context.Context, user string, paywall PaywallConfig) ([]string, error) {
	user = cache.Normalize(user)

	chainByAddress := make(map[string]int, len(paywall.Locks))
	addresses := make([]string, 0, len(paywall.Locks))
	for address, lockConfig := range paywall.Locks {
		normalized := cache.Normalize(address)
		if _, seen := chainByAddress[normalized]; seen {
			continue
		}
		chainID := paywall.Network
		if lockConfig.Network != 0 {
			chainID = lockConfig.Network
		}
		chainByAddress[normalized] = chainID
		addresses = append(addresses, normalized)
	}
	sort.Strings(addresses)

	unlocked := make([]bool, len(addresses))
	g, ctx := errgroup.WithContext(ctx)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			unlocked[i] = e.lockUnlocked(ctx, user, address, chainByAddress[address], paywall.Pessimistic)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(addresses))
	for i, address := range addresses {
		if unlocked[i] {
			result = append(result, address)
		}
	}
	return result, nil
}

// lockUnlocked evaluates one lock. Every failure path returns false.
func (e *Engine) lockUnlocked(ctx context.Context, user, address string, chainID int, pessimistic bool) bool {
	network, ok := e.networks[chainID]
	if !ok {
		logger.Errorf("no network configured for chain %d, lock %s stays locked", chainID, address)
		return false
	}

	provider, err := e.dial(ctx, network.ReadOnlyProvider)
	if err != nil {
		logger.Errorf("failed to reach provider for chain %d: %v", chainID, err)
		return false
	}

	expiration, err := provider.KeyExpiration(ctx, address, user)
	if err != nil {
		logger.Errorf("expiration read for %s/%s failed: %v", address, user, err)
		return false
	}
	if expiration > time.Now().Unix() {
		return true
	}

	// never purchased or expired; optimism only when allowed
	if pessimistic {
		return false
	}

	records, err := e.newLedger(network.LocksmithURI).Transactions(ctx, user, []string{address})
	if err != nil {
		// treat as no known pending transactions
		logger.Errorf("ledger read for %s failed: %v", user, err)
		return false
	}

	for _, rec := range records {
		if time.Since(rec.CreatedAt) > optimismWindow {
			continue
		}
		if WillUnlock(ctx, provider, user, address, rec.TransactionHash, false) {
			return true
		}
	}
	return false
}

// WillUnlock evaluates the optimism policy for a single recorded
// transaction: trust an unconfirmed submission, but the moment it is
// mined, defer entirely to chain truth.
func WillUnlock(ctx context.Context, provider chain.Provider, user, lock, transactionHash string, optimisticIfMissing bool) bool {
	tx, err := provider.TransactionByHash(ctx, transactionHash)
	if err != nil {
		logger.Errorf("transaction lookup for %s failed: %v", transactionHash, err)
		return false
	}
	if tx == nil {
		return optimisticIfMissing
	}

	if tx.BlockNumber != nil {
		// mined: chain truth decides, a reverted purchase must not pass
		expiration, err := provider.KeyExpiration(ctx, lock, user)
		if err != nil {
			logger.Errorf("expiration read for %s/%s failed: %v", lock, user, err)
			return false
		}
		return expiration > time.Now().Unix()
	}

	// exists but unmined: assume eventual success
	return true
}
