// Package report joins a request's bids with their challenge performance and
// fee rewards, and renders the result.
package report

import (
	"encoding/json"
	"time"

	"github.com/bardlex/guardreport/internal/bitcoin"
	"github.com/bardlex/guardreport/internal/coordinator"
	"github.com/bardlex/guardreport/internal/fees"
	"github.com/bardlex/guardreport/internal/performance"
	reportErrors "github.com/bardlex/guardreport/pkg/errors"
)

// Report is the full outcome of one run
type Report struct {
	RequestTxID   string          `json:"request_txid"`
	Request       json.RawMessage `json:"request"`
	Protocol      string          `json:"protocol"`
	Fee           *FeeSection     `json:"fee,omitempty"`
	Bids          []BidLine       `json:"bids"`
	NumChallenges int64           `json:"num_challenges"`
	Entries       []Entry         `json:"results"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// FeeSection describes the fee scan and the share paid out to guardnodes.
// Amounts are in whole coins.
type FeeSection struct {
	StartHeight    int64   `json:"start_height"`
	EndHeight      int64   `json:"end_height"`
	Blocks         int     `json:"blocks"`
	Total          float64 `json:"total"`
	Percentage     float64 `json:"percentage"`
	Payout         float64 `json:"payout"`
	RewardPerGuard float64 `json:"reward_per_guard"`
	Partial        bool    `json:"partial,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// BidLine is a bid as listed by the coordinator
type BidLine struct {
	TxID   string `json:"txid"`
	Pubkey string `json:"pubkey"`
}

// Entry is one bidder's result. Address and Reward are only set when fees
// were calculated.
type Entry struct {
	BidTxID     string   `json:"bid_txid"`
	Pubkey      string   `json:"pubkey"`
	Address     string   `json:"address,omitempty"`
	Performance float64  `json:"performance"`
	Reward      *float64 `json:"reward,omitempty"`
}

// FeeInput is what Build needs from the fee stage
type FeeInput struct {
	StartHeight int64
	EndHeight   int64
	Result      fees.Result
}

// Build assembles a report. Every bid in the request appears exactly once,
// in bid set order; bids without responses get zero performance. All
// pubkeys are validated before anything is derived from them, so a bad key
// fails the whole report. fee is nil when fee calculation is off.
func Build(protocol string, result *coordinator.RequestResult, fee *FeeInput, summary performance.Summary, versionByte byte) (*Report, error) {
	bids := result.BidSet()

	for _, txid := range bids.IDs() {
		pubkey, _ := bids.Pubkey(txid)
		if _, err := bitcoin.CheckKey(pubkey); err != nil {
			return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeValidation, "build_report",
				"bid has an invalid pubkey").
				WithContext("bid_txid", txid)
		}
	}

	r := &Report{
		RequestTxID:   result.Request.TxID,
		Request:       result.Raw,
		Protocol:      protocol,
		NumChallenges: summary.NumChallenges,
		Bids:          make([]BidLine, 0, len(result.Bids)),
		Entries:       make([]Entry, 0, bids.Len()),
		GeneratedAt:   time.Now().UTC(),
	}
	for _, bid := range result.Bids {
		r.Bids = append(r.Bids, BidLine{TxID: bid.TxID, Pubkey: bid.Pubkey})
	}

	var perGuard float64
	if fee != nil {
		total := fee.Result.Total.ToBTC()
		perGuard = fees.RewardPerGuard(total, result.Request.FeePercentage, bids.Len())
		r.Fee = &FeeSection{
			StartHeight:    fee.StartHeight,
			EndHeight:      fee.EndHeight,
			Blocks:         fee.Result.Blocks,
			Total:          total,
			Percentage:     result.Request.FeePercentage,
			Payout:         total * result.Request.FeePercentage / 100,
			RewardPerGuard: perGuard,
			Partial:        fee.Result.Partial,
		}
		if fee.Result.Err != nil {
			r.Fee.Error = fee.Result.Err.Error()
		}
	}

	for _, txid := range bids.IDs() {
		pubkey, _ := bids.Pubkey(txid)
		entry := Entry{
			BidTxID:     txid,
			Pubkey:      pubkey,
			Performance: summary.Ratios.Get(txid),
		}
		if fee != nil {
			address, err := bitcoin.KeyToAddress(pubkey, versionByte)
			if err != nil {
				return nil, err
			}
			reward := perGuard * entry.Performance
			entry.Address = address
			entry.Reward = &reward
		}
		r.Entries = append(r.Entries, entry)
	}

	return r, nil
}
