// Package performance turns a coordinator's challenge response records into
// per-bid response ratios. The coordinator serves the records in one of two
// protocols; which one is configured, never guessed from the payload.
package performance

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bardlex/guardreport/internal/config"
	"github.com/bardlex/guardreport/internal/coordinator"
	reportErrors "github.com/bardlex/guardreport/pkg/errors"
)

// Ratios maps bid txids to the fraction of challenges they answered
type Ratios map[string]float64

// Get returns the ratio for a bid, 0 when the bid never responded
func (r Ratios) Get(bidID string) float64 {
	return r[bidID]
}

// Summary is an aggregated response record
type Summary struct {
	NumChallenges int64
	Ratios        Ratios
}

// Aggregator decodes one protocol's response record into a Summary
type Aggregator interface {
	// Method is the coordinator RPC method serving this protocol
	Method() string

	// Aggregate decodes the record and computes per-bid ratios
	Aggregate(raw json.RawMessage) (Summary, error)
}

// New returns the aggregator for a protocol variant
func New(variant string) (Aggregator, error) {
	switch strings.ToLower(variant) {
	case config.ProtocolCount:
		return CountAggregator{}, nil
	case config.ProtocolList:
		return ListAggregator{}, nil
	default:
		return nil, reportErrors.New(reportErrors.ErrorTypeConfig, "select_protocol",
			fmt.Sprintf("unknown response protocol %q", variant))
	}
}

// CountResponse is the count protocol record: the number of challenges and,
// per bid, how many of them it answered.
type CountResponse struct {
	NumChallenges int64            `json:"num_challenges"`
	BidResponses  map[string]int64 `json:"bid_responses"`
}

// CountAggregator handles the count protocol
type CountAggregator struct{}

// Method implements Aggregator
func (CountAggregator) Method() string {
	return coordinator.MethodGetRequestResponse
}

// Aggregate implements Aggregator. With no challenges every ratio is 0.
func (CountAggregator) Aggregate(raw json.RawMessage) (Summary, error) {
	var wire struct {
		Response *CountResponse `json:"response"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Summary{}, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed,
			coordinator.MethodGetRequestResponse, "unexpected count response shape")
	}
	if wire.Response == nil {
		return Summary{}, reportErrors.New(reportErrors.ErrorTypeMalformed,
			coordinator.MethodGetRequestResponse, "result has no response object")
	}

	return AggregateCounts(*wire.Response), nil
}

// AggregateCounts computes count / num_challenges for every bid, clamped
// to [0, 1]
func AggregateCounts(resp CountResponse) Summary {
	summary := Summary{
		NumChallenges: resp.NumChallenges,
		Ratios:        make(Ratios, len(resp.BidResponses)),
	}
	for bidID, count := range resp.BidResponses {
		if resp.NumChallenges <= 0 {
			summary.Ratios[bidID] = 0
			continue
		}
		summary.Ratios[bidID] = math.Min(math.Max(float64(count)/float64(resp.NumChallenges), 0), 1)
	}
	return summary
}

// ListResponse is the list protocol record: one entry per challenge holding
// the bids that answered it.
type ListResponse [][]string

// ListAggregator handles the list protocol
type ListAggregator struct{}

// Method implements Aggregator
func (ListAggregator) Method() string {
	return coordinator.MethodGetRequestResponses
}

// Aggregate implements Aggregator
func (ListAggregator) Aggregate(raw json.RawMessage) (Summary, error) {
	var wire struct {
		Responses *ListResponse `json:"responses"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Summary{}, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed,
			coordinator.MethodGetRequestResponses, "unexpected list response shape")
	}
	if wire.Responses == nil {
		return Summary{}, reportErrors.New(reportErrors.ErrorTypeMalformed,
			coordinator.MethodGetRequestResponses, "result has no responses list")
	}

	return AggregateLists(*wire.Responses), nil
}

// AggregateLists adds 1/N to a bid for every challenge record it appears
// in, N being the number of records. A bid listed twice in one record
// counts once.
func AggregateLists(records ListResponse) Summary {
	summary := Summary{
		NumChallenges: int64(len(records)),
		Ratios:        make(Ratios),
	}
	if len(records) == 0 {
		return summary
	}

	hits := make(map[string]int)
	for _, record := range records {
		seen := make(map[string]struct{}, len(record))
		for _, bidID := range record {
			if _, dup := seen[bidID]; dup {
				continue
			}
			seen[bidID] = struct{}{}
			hits[bidID]++
		}
	}

	n := float64(len(records))
	for bidID, h := range hits {
		summary.Ratios[bidID] = float64(h) / n
	}
	return summary
}
