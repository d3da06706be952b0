// Package fees sums the coinbase value paid out over a block height range
// and splits a request's fee share between its guardnodes.
package fees

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/bardlex/guardreport/internal/bitcoin"
	reportErrors "github.com/bardlex/guardreport/pkg/errors"
	"github.com/bardlex/guardreport/pkg/log"
)

// Result is the outcome of a fee scan. When Partial is set, Total covers
// only the heights before the one that failed and Err says why.
type Result struct {
	Total   btcutil.Amount
	Blocks  int
	Partial bool
	Err     error
}

// Calculator sums coinbase outputs over a height range
type Calculator struct {
	node       bitcoin.NodeInterface
	logger     *log.Logger
	assetLabel string
}

// NewCalculator creates a fee calculator. An empty assetLabel counts every
// output; otherwise outputs labelled with a different asset are skipped.
func NewCalculator(node bitcoin.NodeInterface, logger *log.Logger, assetLabel string) *Calculator {
	return &Calculator{
		node:       node,
		logger:     logger.WithComponent("fees"),
		assetLabel: assetLabel,
	}
}

// Calculate sums the coinbase value of every block in [start, end]. The scan
// stops at the first failure and returns what it had so far; failures are
// logged and reported through Result, never returned.
func (c *Calculator) Calculate(ctx context.Context, start, end int64) Result {
	var result Result
	if start > end {
		return result
	}

	started := time.Now()
	for height := start; height <= end; height++ {
		value, err := c.blockFee(ctx, height)
		if err != nil {
			c.logger.WithError(err).Error("fee scan stopped, reporting partial total",
				"height", height,
				"partial_total", result.Total.ToBTC(),
			)
			result.Partial = true
			result.Err = err
			break
		}
		result.Total += value
		result.Blocks++
	}

	c.logger.LogDuration("fee_scan", time.Since(started).Nanoseconds())
	c.logger.LogFeeScan(start, end, result.Blocks, result.Total.ToBTC(), result.Partial)
	return result
}

// blockFee returns the value paid by the coinbase of the block at height
func (c *Calculator) blockFee(ctx context.Context, height int64) (btcutil.Amount, error) {
	hash, err := c.node.GetBlockHash(ctx, height)
	if err != nil {
		return 0, err
	}

	block, err := c.node.GetBlock(ctx, hash)
	if err != nil {
		return 0, err
	}
	if len(block.Tx) == 0 {
		return 0, reportErrors.New(reportErrors.ErrorTypeMalformed, "getblock",
			"block has no transactions").
			WithContext("height", height).
			WithContext("block_hash", hash)
	}

	tx, err := c.node.GetRawTransaction(ctx, block.Tx[0])
	if err != nil {
		return 0, err
	}
	if !tx.IsCoinbase() {
		return 0, reportErrors.New(reportErrors.ErrorTypeMalformed, "getrawtransaction",
			"first block transaction is not a coinbase").
			WithContext("height", height).
			WithContext("txid", tx.TxID)
	}

	var total btcutil.Amount
	for _, out := range tx.Vout {
		if !out.MatchesAsset(c.assetLabel) {
			continue
		}
		amount, err := out.Amount()
		if err != nil {
			return 0, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, "getrawtransaction",
				"invalid output value").
				WithContext("txid", tx.TxID).
				WithContext("vout", out.N)
		}
		total += amount
	}

	return total, nil
}

// RewardPerGuard returns one bid's even share of percentage percent of fee.
// No bids means no reward.
func RewardPerGuard(fee float64, percentage float64, bids int) float64 {
	if bids <= 0 {
		return 0
	}
	return fee * percentage / 100 / float64(bids)
}
