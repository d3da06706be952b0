package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bardlex/guardreport/internal/database/influx"
	"github.com/bardlex/guardreport/internal/database/postgres"
	"github.com/bardlex/guardreport/internal/database/redis"
	"github.com/bardlex/guardreport/internal/report"
	"github.com/bardlex/guardreport/pkg/errors"
	"github.com/bardlex/guardreport/pkg/retry"
)

type postgresSink struct {
	repo        *postgres.RewardRepository
	retryConfig *retry.Config
}

func (s *postgresSink) Name() string { return "postgres" }

func (s *postgresSink) Publish(ctx context.Context, r *report.Report) error {
	records := RewardRecords(r)
	return retry.Do(ctx, s.retryConfig, func() error {
		if err := s.repo.InsertRewards(ctx, records); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, "store_rewards",
				"failed to store rewards in PostgreSQL").
				WithContext("request_txid", r.RequestTxID).
				WithContext("rows", len(records))
		}
		return nil
	})
}

type redisSink struct {
	client      *redis.Client
	ttl         time.Duration
	retryConfig *retry.Config
}

func (s *redisSink) Name() string { return "redis" }

func (s *redisSink) Publish(ctx context.Context, r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "cache_report", "failed to encode report")
	}

	return retry.Do(ctx, s.retryConfig, func() error {
		if err := s.client.CacheReport(ctx, r.RequestTxID, data, s.ttl); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, "cache_report",
				"failed to cache report in Redis").
				WithContext("key", redis.ReportKey(r.RequestTxID))
		}
		return nil
	})
}

type influxSink struct {
	client      *influx.Client
	retryConfig *retry.Config
}

func (s *influxSink) Name() string { return "influx" }

func (s *influxSink) Publish(ctx context.Context, r *report.Report) error {
	points := PerformancePoints(r)
	return retry.Do(ctx, s.retryConfig, func() error {
		if err := s.client.WritePerformance(ctx, points); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, "write_performance",
				"failed to write performance points to InfluxDB").
				WithContext("request_txid", r.RequestTxID).
				WithContext("points", len(points))
		}
		return nil
	})
}

// RewardRecords flattens a report into one row per bid
func RewardRecords(r *report.Report) []postgres.RewardRecord {
	partial := r.Fee != nil && r.Fee.Partial

	records := make([]postgres.RewardRecord, 0, len(r.Entries))
	for _, e := range r.Entries {
		rec := postgres.RewardRecord{
			RequestTxID:   r.RequestTxID,
			BidTxID:       e.BidTxID,
			Pubkey:        e.Pubkey,
			Protocol:      r.Protocol,
			NumChallenges: r.NumChallenges,
			Performance:   e.Performance,
			FeePartial:    partial,
			GeneratedAt:   r.GeneratedAt,
		}
		if e.Address != "" {
			rec.Address = sql.NullString{String: e.Address, Valid: true}
		}
		if e.Reward != nil {
			rec.Reward = sql.NullFloat64{Float64: *e.Reward, Valid: true}
		}
		records = append(records, rec)
	}
	return records
}

// PerformancePoints converts a report into one InfluxDB point per bid
func PerformancePoints(r *report.Report) []influx.PerformancePoint {
	points := make([]influx.PerformancePoint, 0, len(r.Entries))
	for _, e := range r.Entries {
		points = append(points, influx.PerformancePoint{
			RequestTxID:   r.RequestTxID,
			BidTxID:       e.BidTxID,
			Protocol:      r.Protocol,
			NumChallenges: r.NumChallenges,
			Performance:   e.Performance,
			Reward:        e.Reward,
			Time:          r.GeneratedAt,
		})
	}
	return points
}
