package bitcoin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	reportErrors "github.com/bardlex/guardreport/pkg/errors"
)

// RPCClient provides the read-only slice of a node's JSON-RPC API that the
// fee calculator needs. It wraps btcd's RPC client; calls are never retried.
type RPCClient struct {
	client *rpcclient.Client
	host   string
}

// NewRPCClient creates a node RPC client using btcd's RPC implementation in
// HTTP POST mode.
//
// Parameters:
//   - endpoint: either host:port or a full http(s) URL, optionally with credentials
//   - username: RPC authentication username (overrides URL credentials when set)
//   - password: RPC authentication password (overrides URL credentials when set)
//
// Returns:
//   - *RPCClient: Configured RPC client ready for use
//   - error: Any error encountered during client creation
func NewRPCClient(endpoint, username, password string) (*RPCClient, error) {
	host, user, pass, disableTLS, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeConfig, "rpc_client_creation",
			"invalid node RPC endpoint").
			WithContext("endpoint", endpoint)
	}
	if username != "" {
		user = username
	}
	if password != "" {
		pass = password
	}

	connCfg := &rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   disableTLS,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeTransport, "rpc_client_creation",
			"failed to create node RPC client").
			WithContext("host", host)
	}

	return &RPCClient{client: client, host: host}, nil
}

// parseEndpoint accepts host:port or http(s)://[user:pass@]host:port[/path]
func parseEndpoint(endpoint string) (host, user, pass string, disableTLS bool, err error) {
	if endpoint == "" {
		return "", "", "", false, fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, "", "", true, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", "", false, err
	}
	if u.Host == "" {
		return "", "", "", false, fmt.Errorf("endpoint %q has no host", endpoint)
	}

	switch u.Scheme {
	case "http":
		disableTLS = true
	case "https":
		disableTLS = false
	default:
		return "", "", "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host = u.Host + strings.TrimSuffix(u.Path, "/")
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	return host, user, pass, disableTLS, nil
}

// Host returns the node address the client talks to
func (c *RPCClient) Host() string {
	return c.host
}

// Close shuts down the RPC client and releases any resources.
func (c *RPCClient) Close() {
	c.client.Shutdown()
}

// GetBlockCount gets the current block count.
func (c *RPCClient) GetBlockCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count, err := c.client.GetBlockCountAsync().Receive()
	if err != nil {
		return 0, classify(err, "getblockcount", "failed to retrieve current block height")
	}
	return count, nil
}

// GetBlockHash gets the hash of the block at the given height.
//
// Parameters:
//   - ctx: Context for cancellation
//   - height: Block height
//
// Returns:
//   - string: Block hash in its usual byte-reversed hex form
//   - error: Transport or RPC error from the node
func (c *RPCClient) GetBlockHash(ctx context.Context, height int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := c.client.GetBlockHashAsync(height).Receive()
	if err != nil {
		return "", classify(err, "getblockhash", "failed to retrieve block hash").
			WithContext("height", height)
	}
	return hash.String(), nil
}

// GetBlock gets block information by hash, including its transaction ids.
//
// Parameters:
//   - ctx: Context for cancellation
//   - hash: Block hash to retrieve
//
// Returns:
//   - *btcjson.GetBlockVerboseResult: Block information with the tx list
//   - error: Any error from the node
func (c *RPCClient) GetBlock(ctx context.Context, hash string) (*btcjson.GetBlockVerboseResult, error) {
	blockHash, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, "hash_parsing",
			"failed to parse block hash").
			WithContext("hash", hash)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	block, err := c.client.GetBlockVerboseAsync(blockHash).Receive()
	if err != nil {
		return nil, classify(err, "getblock", "failed to retrieve block information").
			WithContext("block_hash", hash)
	}
	return block, nil
}

// GetRawTransaction gets a decoded transaction. The call is issued as a raw
// request so chain-specific output fields such as Elements' assetlabel
// survive decoding.
//
// Parameters:
//   - ctx: Context for cancellation
//   - txid: Transaction id
//
// Returns:
//   - *RawTransaction: The decoded transaction
//   - error: Any error from the node or while decoding
func (c *RPCClient) GetRawTransaction(ctx context.Context, txid string) (*RawTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := []json.RawMessage{json.RawMessage(fmt.Sprintf("%q", txid)), json.RawMessage("true")}
	raw, err := c.client.RawRequestAsync("getrawtransaction", params).Receive()
	if err != nil {
		return nil, classify(err, "getrawtransaction", "failed to retrieve transaction").
			WithContext("txid", txid)
	}

	var tx RawTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, "getrawtransaction",
			"unexpected transaction shape").
			WithContext("txid", txid)
	}
	return &tx, nil
}

// Ping tests the connection to the node.
func (c *RPCClient) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.PingAsync().Receive(); err != nil {
		return classify(err, "ping", "node connectivity check failed")
	}
	return nil
}

// classify separates errors reported by the node from failures reaching it
func classify(err error, operation, message string) *reportErrors.ServiceError {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return reportErrors.Wrap(err, reportErrors.ErrorTypeRPC, operation, message).
			WithContext("rpc_code", int(rpcErr.Code))
	}
	return reportErrors.Wrap(err, reportErrors.ErrorTypeTransport, operation, message)
}
