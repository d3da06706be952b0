package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	reportErrors "github.com/bardlex/guardreport/pkg/errors"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Write renders r to w in the given format
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatText, "":
		return WriteText(w, r)
	default:
		return reportErrors.New(reportErrors.ErrorTypeConfig, "write_report",
			fmt.Sprintf("unknown output format %q", format))
	}
}

// WriteJSON renders r as indented JSON
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return reportErrors.Wrap(err, reportErrors.ErrorTypeInternal, "write_report",
			"failed to write JSON report")
	}
	return nil
}

// WriteText renders r as the plain text report
func WriteText(w io.Writer, r *Report) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "Request txid: %s\n", r.RequestTxID)
	fmt.Fprintf(&b, "Request details:\n%s\n\n", r.Request)

	if r.Fee != nil {
		b.WriteString("Calculating total fees...\n")
		fmt.Fprintf(&b, "Fee: %s\n", formatCoins(r.Fee.Total))
		fmt.Fprintf(&b, "Paying out (%s%%): %s\n", formatCoins(r.Fee.Percentage), formatCoins(r.Fee.Payout))
		if r.Fee.Partial {
			fmt.Fprintf(&b, "WARNING: fee is partial, %d of %d blocks scanned (%s)\n",
				r.Fee.Blocks, r.Fee.EndHeight-r.Fee.StartHeight+1, r.Fee.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("Bids\n")
	for _, bid := range r.Bids {
		fmt.Fprintf(&b, "txid: %s pubkey: %s\n", bid.TxID, bid.Pubkey)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Number of challenges: %d\n", r.NumChallenges)
	b.WriteString("Results\n")
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "Bid %s\n", e.BidTxID)
		fmt.Fprintf(&b, "pubkey: %s\n", e.Pubkey)
		if e.Address != "" {
			fmt.Fprintf(&b, "address: %s\n", e.Address)
		}
		fmt.Fprintf(&b, "performance: %s\n", FormatPerformance(e.Performance))
		if e.Reward != nil {
			fmt.Fprintf(&b, "reward: %s\n", formatCoins(*e.Reward))
		}
		b.WriteString("\n")
	}
	b.WriteString("End\n")

	if _, err := w.Write(b.Bytes()); err != nil {
		return reportErrors.Wrap(err, reportErrors.ErrorTypeInternal, "write_report",
			"failed to write text report")
	}
	return nil
}

// FormatPerformance renders a ratio as a percentage with two decimals
func FormatPerformance(ratio float64) string {
	return fmt.Sprintf("%.2f%%", 100*ratio)
}

// formatCoins prints an amount with at most eight decimals, trailing zeros
// dropped
func formatCoins(v float64) string {
	s := strconv.FormatFloat(v, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
