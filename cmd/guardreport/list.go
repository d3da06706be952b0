package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bardlex/guardreport/internal/coordinator"
	"github.com/bardlex/guardreport/internal/report"
)

// requestLister is the part of the coordinator client listing uses
type requestLister interface {
	GetRequests(ctx context.Context, page int) (*coordinator.RequestsPage, error)
}

// requestSummary is one line of the request listing
type requestSummary struct {
	TxID              string  `json:"txid"`
	StartBlockHeight  int64   `json:"start_blockheight"`
	EndBlockHeight    int64   `json:"end_blockheight"`
	FeePercentage     float64 `json:"fee_percentage"`
	NumTickets        int64   `json:"num_tickets"`
	Bids              int     `json:"bids"`
	IsPaymentComplete bool    `json:"is_payment_complete"`
}

// listRequests prints one page of the coordinator's requests
func listRequests(ctx context.Context, source requestLister, page int, format string, out io.Writer) error {
	result, err := source.GetRequests(ctx, page)
	if err != nil {
		return err
	}

	summaries := make([]requestSummary, 0, len(result.Requests))
	for _, r := range result.Requests {
		summaries = append(summaries, requestSummary{
			TxID:              r.Request.TxID,
			StartBlockHeight:  r.Request.StartBlockHeight,
			EndBlockHeight:    r.Request.EndBlockHeight,
			FeePercentage:     r.Request.FeePercentage,
			NumTickets:        r.Request.NumTickets,
			Bids:              r.BidSet().Len(),
			IsPaymentComplete: r.Request.IsPaymentComplete,
		})
	}

	if format == report.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Page     int              `json:"page"`
			Pages    int              `json:"pages"`
			Requests []requestSummary `json:"requests"`
		}{page, result.Pages, summaries})
	}

	for _, s := range summaries {
		status := "pending"
		if s.IsPaymentComplete {
			status = "paid"
		}
		if _, err := fmt.Fprintf(out, "%s blocks %d-%d fee %g%% tickets %d bids %d %s\n",
			s.TxID, s.StartBlockHeight, s.EndBlockHeight, s.FeePercentage, s.NumTickets, s.Bids, status); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "Page %d of %d\n", page, result.Pages)
	return err
}
