// Package coordinator provides a client for the coordinator's JSON-RPC API
// and the request and bid records it serves.
package coordinator

import (
	"encoding/json"
	"fmt"
)

// RPCRequest represents a JSON-RPC 2.0 request to the coordinator.
// Params is a named object, not the positional array nodes use.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// RPCResponse represents a JSON-RPC 2.0 response from the coordinator.
// Contains either a result or an error, never both.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError represents an error returned by the coordinator's JSON-RPC interface.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Request is a service request as recorded by the coordinator. The
// clientchain heights are where the request's fees were paid; the plain
// heights are the service chain window. Immutable once fetched.
type Request struct {
	TxID                        string  `json:"txid"`
	StartBlockHeight            int64   `json:"start_blockheight"`
	EndBlockHeight              int64   `json:"end_blockheight"`
	GenesisBlockHash            string  `json:"genesis_blockhash"`
	FeePercentage               float64 `json:"fee_percentage"`
	NumTickets                  int64   `json:"num_tickets"`
	StartBlockHeightClientChain int64   `json:"start_blockheight_clientchain"`
	EndBlockHeightClientChain   int64   `json:"end_blockheight_clientchain"`
	IsPaymentComplete           bool    `json:"is_payment_complete"`
}

// Bid is a guardnode's bid on a request
type Bid struct {
	TxID    string          `json:"txid"`
	Pubkey  string          `json:"pubkey"`
	Payment json.RawMessage `json:"payment,omitempty"`
}

// RequestResult is the decoded getrequest result
type RequestResult struct {
	Request Request `json:"request"`
	Bids    []Bid   `json:"bids"`

	// Raw is the request object exactly as the coordinator sent it
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw request object next to the decoded one
func (r *RequestResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Request json.RawMessage `json:"request"`
		Bids    []Bid           `json:"bids"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Request) == 0 || string(wire.Request) == "null" {
		return fmt.Errorf("result has no request object")
	}
	if err := json.Unmarshal(wire.Request, &r.Request); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	r.Raw = wire.Request
	r.Bids = wire.Bids
	return nil
}

// BidSet returns the request's bids as an ordered set keyed by bid txid
func (r *RequestResult) BidSet() *BidSet {
	set := NewBidSet()
	for _, bid := range r.Bids {
		set.Add(bid.TxID, bid.Pubkey)
	}
	return set
}

// RequestsPage is the decoded getrequests result
type RequestsPage struct {
	Requests []RequestResult `json:"requests"`
	Pages    int             `json:"pages"`
}

// BidSet maps bid txids to pubkeys, iterating in first-insertion order.
// Adding an existing txid replaces its pubkey but keeps its position.
type BidSet struct {
	order   []string
	pubkeys map[string]string
}

// NewBidSet creates an empty bid set
func NewBidSet() *BidSet {
	return &BidSet{pubkeys: make(map[string]string)}
}

// Add inserts or replaces a bid
func (s *BidSet) Add(txid, pubkey string) {
	if _, ok := s.pubkeys[txid]; !ok {
		s.order = append(s.order, txid)
	}
	s.pubkeys[txid] = pubkey
}

// Len returns the number of distinct bids
func (s *BidSet) Len() int {
	return len(s.order)
}

// IDs returns the bid txids in order
func (s *BidSet) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Pubkey returns the pubkey recorded for a bid
func (s *BidSet) Pubkey(txid string) (string, bool) {
	pubkey, ok := s.pubkeys[txid]
	return pubkey, ok
}

// Each calls fn for every bid in order
func (s *BidSet) Each(fn func(txid, pubkey string)) {
	for _, txid := range s.order {
		fn(txid, s.pubkeys[txid])
	}
}
