package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkMatchesByKeyField(t *testing.T) {
	keyID := KeyID("0xlock", "0xowner")
	transactions := map[string]*Transaction{
		"0xhash": {ID: "0xhash", Key: keyID, Status: StatusPending},
		"0xother": {
			ID:     "0xother",
			Key:    KeyID("0xlock", "0xsomeoneelse"),
			Status: StatusMined,
		},
	}
	keys := map[string]*Key{
		keyID: {Lock: "0xlock", Owner: "0xowner"},
	}

	linked := LinkTransactionsToKeys(transactions, keys)

	require.Len(t, linked[keyID].Transactions, 1)
	assert.Equal(t, "0xhash", linked[keyID].Transactions[0].ID)
}

func TestLinkMatchesUnlinkedByAddresses(t *testing.T) {
	keyID := KeyID("0xlock", "0xowner")
	transactions := map[string]*Transaction{
		"0xhash": {ID: "0xhash", From: "0xowner", To: "0xlock", Status: StatusPending},
		"0xmiss": {ID: "0xmiss", From: "0xowner", To: "0xanotherlock", Status: StatusPending},
	}
	keys := map[string]*Key{
		keyID: {Lock: "0xlock", Owner: "0xowner"},
	}

	linked := LinkTransactionsToKeys(transactions, keys)

	require.Len(t, linked[keyID].Transactions, 1)
	assert.Equal(t, "0xhash", linked[keyID].Transactions[0].ID)
}

func TestLinkOrdersUnminedFirst(t *testing.T) {
	keyID := KeyID("0xlock", "0xowner")
	transactions := map[string]*Transaction{
		"0xmined": {
			ID: "0xmined", Key: keyID,
			Status: StatusMined, BlockNumber: uint64Ptr(100),
		},
		"0xearlier": {
			ID: "0xearlier", Key: keyID,
			Status: StatusMined, BlockNumber: uint64Ptr(50),
		},
		"0xinflight": {
			ID: "0xinflight", Key: keyID,
			Status: StatusSubmitted, // no block number yet
		},
	}
	keys := map[string]*Key{
		keyID: {Lock: "0xlock", Owner: "0xowner"},
	}

	linked := LinkTransactionsToKeys(transactions, keys)

	require.Len(t, linked[keyID].Transactions, 3)
	assert.Equal(t, "0xinflight", linked[keyID].Transactions[0].ID)
	assert.Equal(t, "0xearlier", linked[keyID].Transactions[1].ID)
	assert.Equal(t, "0xmined", linked[keyID].Transactions[2].ID)
}

func TestLinkSkipsSupersededPlaceholders(t *testing.T) {
	keyID := KeyID("0xlock", "0xowner")
	transactions := map[string]*Transaction{
		PlaceholderID("0xlock", "0xowner"): {
			ID:           PlaceholderID("0xlock", "0xowner"),
			Key:          keyID,
			Status:       StatusSubmitted,
			SupersededBy: "0xhash",
		},
		"0xhash": {ID: "0xhash", Key: keyID, Status: StatusPending},
	}
	keys := map[string]*Key{
		keyID: {Lock: "0xlock", Owner: "0xowner"},
	}

	linked := LinkTransactionsToKeys(transactions, keys)

	require.Len(t, linked[keyID].Transactions, 1)
	assert.Equal(t, "0xhash", linked[keyID].Transactions[0].ID)
}

func TestLinkDoesNotMutateInputs(t *testing.T) {
	keyID := KeyID("0xlock", "0xowner")
	transactions := map[string]*Transaction{
		"0xhash": {ID: "0xhash", Key: keyID, Status: StatusPending},
	}
	keys := map[string]*Key{
		keyID: {Lock: "0xlock", Owner: "0xowner"},
	}

	linked := LinkTransactionsToKeys(transactions, keys)
	linked[keyID].Transactions[0].Status = StatusFailed
	linked[keyID].Expiration = 12345

	assert.Equal(t, StatusPending, transactions["0xhash"].Status)
	assert.Nil(t, keys[keyID].Transactions)
	assert.Zero(t, keys[keyID].Expiration)
}
