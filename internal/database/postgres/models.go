package postgres

import (
	"database/sql"
	"time"
)

// RewardRecord is one bidder's result for one request
type RewardRecord struct {
	ID            int64           `db:"id"`
	RequestTxID   string          `db:"request_txid"`
	BidTxID       string          `db:"bid_txid"`
	Pubkey        string          `db:"pubkey"`
	Address       sql.NullString  `db:"address"`
	Protocol      string          `db:"protocol"`
	NumChallenges int64           `db:"num_challenges"`
	Performance   float64         `db:"performance"`
	Reward        sql.NullFloat64 `db:"reward"`
	FeePartial    bool            `db:"fee_partial"`
	GeneratedAt   time.Time       `db:"generated_at"`
	CreatedAt     time.Time       `db:"created_at"`
}
