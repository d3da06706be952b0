// Package bitcoin provides interfaces for better testability and dependency injection.
// These interfaces define the contracts for node operations, allowing for easy mocking
// and testing of components that depend on a blockchain node.
package bitcoin

import (
	"context"

	"github.com/btcsuite/btcd/btcjson"
)

// NodeInterface defines the contract for the node RPC operations used by the
// fee calculator and the report pipeline.
//
// All methods include context.Context for cancellation.
// Error handling follows Go conventions with wrapped errors containing context.
type NodeInterface interface {
	// GetBlockCount returns the current blockchain height.
	GetBlockCount(ctx context.Context) (int64, error)

	// GetBlockHash returns the hash of the block at height.
	GetBlockHash(ctx context.Context, height int64) (string, error)

	// GetBlock retrieves a block with its transaction ids.
	GetBlock(ctx context.Context, hash string) (*btcjson.GetBlockVerboseResult, error)

	// GetRawTransaction retrieves a decoded transaction.
	GetRawTransaction(ctx context.Context, txid string) (*RawTransaction, error)

	// Ping tests connectivity to the node.
	Ping(ctx context.Context) error

	// Close gracefully shuts down the RPC client.
	Close()
}

// Compile-time interface compliance checks
var (
	_ NodeInterface = (*RPCClient)(nil)
)
