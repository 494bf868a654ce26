package cache

import "sort"

// LinkTransactionsToKeys joins a flat transaction table to key records,
// selecting and ordering the relevant transactions per key. The input maps
// are not mutated; the returned keys carry their Transactions slices with
// the current transaction at index 0.
//
// A transaction belongs to a key when its Key field equals the key's
// composite id, or, for transactions not yet linked to a key, when its
// to/from addresses match the key's lock and owner. Superseded placeholders
// never link.
func LinkTransactionsToKeys(transactions map[string]*Transaction, keys map[string]*Key) map[string]*Key {
	linked := make(map[string]*Key, len(keys))

	for id, key := range keys {
		copied := *key
		copied.Transactions = nil

		for _, tx := range transactions {
			if tx.SupersededBy != "" {
				continue
			}
			if !transactionMatchesKey(tx, &copied) {
				continue
			}
			matched := *tx
			copied.Transactions = append(copied.Transactions, &matched)
		}

		sortByBlockNumber(copied.Transactions)
		linked[id] = &copied
	}

	return linked
}

func transactionMatchesKey(tx *Transaction, key *Key) bool {
	if tx.Key != "" {
		return tx.Key == key.ID()
	}
	return tx.To == Normalize(key.Lock) && tx.From == Normalize(key.Owner)
}

// sortByBlockNumber orders transactions ascending by block number with
// unmined (nil) transactions first, so an in-flight transaction always
// takes precedence over a previously mined and superseded one.
func sortByBlockNumber(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i].BlockNumber, txs[j].BlockNumber
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return *a < *b
		}
	})
}
