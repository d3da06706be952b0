package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS guard_rewards (
	id             BIGSERIAL PRIMARY KEY,
	request_txid   TEXT NOT NULL,
	bid_txid       TEXT NOT NULL,
	pubkey         TEXT NOT NULL,
	address        TEXT,
	protocol       TEXT NOT NULL,
	num_challenges BIGINT NOT NULL,
	performance    DOUBLE PRECISION NOT NULL,
	reward         DOUBLE PRECISION,
	fee_partial    BOOLEAN NOT NULL DEFAULT FALSE,
	generated_at   TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (request_txid, bid_txid)
)`

// RewardRepository handles guard_rewards rows
type RewardRepository struct {
	db *sql.DB
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db *sql.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// EnsureSchema creates the guard_rewards table if it does not exist
func (r *RewardRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create guard_rewards table: %w", err)
	}
	return nil
}

// InsertRewards writes all records in one transaction. Rerunning a report
// replaces the rows of that request.
func (r *RewardRepository) InsertRewards(ctx context.Context, records []RewardRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO guard_rewards (request_txid, bid_txid, pubkey, address, protocol, num_challenges,
		                           performance, reward, fee_partial, generated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (request_txid, bid_txid) DO UPDATE SET
			pubkey = EXCLUDED.pubkey,
			address = EXCLUDED.address,
			protocol = EXCLUDED.protocol,
			num_challenges = EXCLUDED.num_challenges,
			performance = EXCLUDED.performance,
			reward = EXCLUDED.reward,
			fee_partial = EXCLUDED.fee_partial,
			generated_at = EXCLUDED.generated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare reward insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.RequestTxID, rec.BidTxID, rec.Pubkey, rec.Address, rec.Protocol, rec.NumChallenges,
			rec.Performance, rec.Reward, rec.FeePartial, rec.GeneratedAt, now,
		); err != nil {
			return fmt.Errorf("failed to insert reward for bid %s: %w", rec.BidTxID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rewards: %w", err)
	}
	return nil
}

// GetRewards returns the stored rows of a request ordered by insertion
func (r *RewardRepository) GetRewards(ctx context.Context, requestTxID string) ([]*RewardRecord, error) {
	query := `
		SELECT id, request_txid, bid_txid, pubkey, address, protocol, num_challenges,
		       performance, reward, fee_partial, generated_at, created_at
		FROM guard_rewards
		WHERE request_txid = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, requestTxID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*RewardRecord
	for rows.Next() {
		rec := &RewardRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.RequestTxID, &rec.BidTxID, &rec.Pubkey, &rec.Address, &rec.Protocol,
			&rec.NumChallenges, &rec.Performance, &rec.Reward, &rec.FeePartial,
			&rec.GeneratedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rewards: %w", err)
	}
	return records, nil
}
