package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"

	"github.com/bardlex/guardreport/internal/bitcoin"
)

// MockNodeClient provides a mock implementation of bitcoin.NodeInterface for testing.
type MockNodeClient struct {
	// Coinbase outputs per height
	Coinbase map[int64][]bitcoin.Output

	// FailAt makes every call for that height fail (0 disables)
	FailAt   int64
	ErrorMsg string

	// NotCoinbaseAt makes the first transaction of that height a regular
	// spend (0 disables)
	NotCoinbaseAt int64

	BlockCount int64
	Calls      int
}

// NewMockNodeClient creates a mock node whose coinbase at each height in
// [start, end] pays value in a single output.
func NewMockNodeClient(start, end int64, value float64) *MockNodeClient {
	m := &MockNodeClient{Coinbase: make(map[int64][]bitcoin.Output), BlockCount: end}
	for h := start; h <= end; h++ {
		m.Coinbase[h] = []bitcoin.Output{{Value: value, N: 0}}
	}
	return m
}

func blockHashFor(height int64) string {
	return fmt.Sprintf("%064x", height)
}

func coinbaseFor(hash string) string {
	return "cb" + hash
}

// GetBlockCount returns the mock chain height.
func (m *MockNodeClient) GetBlockCount(_ context.Context) (int64, error) {
	m.Calls++
	return m.BlockCount, nil
}

// GetBlockHash returns a hash derived from the height.
func (m *MockNodeClient) GetBlockHash(_ context.Context, height int64) (string, error) {
	m.Calls++
	if m.FailAt != 0 && height == m.FailAt {
		return "", errors.New(m.ErrorMsg)
	}
	if _, ok := m.Coinbase[height]; !ok {
		return "", fmt.Errorf("no block at height %d", height)
	}
	return blockHashFor(height), nil
}

// GetBlock returns a block whose first transaction is its coinbase.
func (m *MockNodeClient) GetBlock(_ context.Context, hash string) (*btcjson.GetBlockVerboseResult, error) {
	m.Calls++
	var height int64
	if _, err := fmt.Sscanf(hash, "%x", &height); err != nil {
		return nil, err
	}
	return &btcjson.GetBlockVerboseResult{
		Hash:   hash,
		Height: height,
		Tx:     []string{coinbaseFor(hash), "other"},
	}, nil
}

// GetRawTransaction returns the coinbase registered for the block.
func (m *MockNodeClient) GetRawTransaction(_ context.Context, txid string) (*bitcoin.RawTransaction, error) {
	m.Calls++
	var height int64
	if _, err := fmt.Sscanf(txid, "cb%x", &height); err != nil {
		return nil, err
	}
	vin := []bitcoin.TxIn{{Coinbase: "03"}}
	if m.NotCoinbaseAt != 0 && height == m.NotCoinbaseAt {
		vin = []bitcoin.TxIn{{TxID: "prev", Vout: 0}}
	}
	return &bitcoin.RawTransaction{
		TxID: txid,
		Vin:  vin,
		Vout: m.Coinbase[height],
	}, nil
}

// Ping always succeeds.
func (m *MockNodeClient) Ping(_ context.Context) error {
	return nil
}

// Close does nothing.
func (m *MockNodeClient) Close() {}

// Compile-time interface compliance check
var _ bitcoin.NodeInterface = (*MockNodeClient)(nil)
