package chain

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// keyExpirationSelector is the 4-byte selector of the lock contract's
// keyExpirationTimestampFor(address) view.
var keyExpirationSelector = []byte{0xab, 0xdf, 0x82, 0xce}

// EthereumProvider implements Provider over a JSON-RPC endpoint.
type EthereumProvider struct {
	client *rpc.Client
}

// Dial connects to a read-only JSON-RPC provider.
func Dial(ctx context.Context, url string) (*EthereumProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial provider %s: %w", url, err)
	}
	return &EthereumProvider{client: client}, nil
}

// Close releases the underlying RPC client.
func (p *EthereumProvider) Close() {
	p.client.Close()
}

// KeyExpiration calls keyExpirationTimestampFor(owner) on the lock
// contract and returns the unix-seconds expiration.
func (p *EthereumProvider) KeyExpiration(ctx context.Context, lock, owner string) (int64, error) {
	data := make([]byte, 0, 4+32)
	data = append(data, keyExpirationSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)

	call := map[string]interface{}{
		"to":   common.HexToAddress(lock),
		"data": hexutil.Encode(data),
	}

	var result hexutil.Bytes
	if err := p.client.CallContext(ctx, &result, "eth_call", call, "latest"); err != nil {
		return 0, fmt.Errorf("eth_call keyExpirationTimestampFor failed: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}

	expiration := new(big.Int).SetBytes(result)
	// Non-expiring keys report the maximum uint256; clamp to a usable value
	if !expiration.IsInt64() {
		return math.MaxInt64, nil
	}
	return expiration.Int64(), nil
}

type rpcTransaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
}

// TransactionByHash fetches a raw transaction from the chain. Returns
// (nil, nil) when the chain does not know the hash.
func (p *EthereumProvider) TransactionByHash(ctx context.Context, hash string) (*RawTransaction, error) {
	var result *rpcTransaction
	if err := p.client.CallContext(ctx, &result, "eth_getTransactionByHash", common.HexToHash(hash)); err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash failed: %w", err)
	}
	if result == nil {
		return nil, nil
	}

	raw := &RawTransaction{
		Hash: result.Hash.Hex(),
		From: result.From.Hex(),
	}
	if result.To != nil {
		raw.To = result.To.Hex()
	}
	if result.BlockNumber != nil {
		n := result.BlockNumber.ToInt().Uint64()
		raw.BlockNumber = &n
	}
	return raw, nil
}
