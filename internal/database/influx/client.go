// Package influx writes per-bid guardnode performance points to InfluxDB.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementPerformance is the measurement every point is written to
const MeasurementPerformance = "guard_performance"

// Client wraps InfluxDB operations for performance points
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// PerformancePoint is one bidder's result for one request
type PerformancePoint struct {
	RequestTxID   string
	BidTxID       string
	Protocol      string
	NumChallenges int64
	Performance   float64
	Reward        *float64
	Time          time.Time
}

// NewClient creates a new InfluxDB client and checks the server health
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := health(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

func health(ctx context.Context, client influxdb2.Client) error {
	h, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if h.Status != "pass" {
		msg := ""
		if h.Message != nil {
			msg = *h.Message
		}
		return fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	return nil
}

// Close closes the InfluxDB connection
func (c *Client) Close() {
	c.client.Close()
}

// NewPerformancePoint converts a performance point to line protocol form
func NewPerformancePoint(p PerformancePoint) *write.Point {
	tags := map[string]string{
		"request_txid": p.RequestTxID,
		"bid_txid":     p.BidTxID,
		"protocol":     p.Protocol,
	}

	fields := map[string]interface{}{
		"performance":    p.Performance,
		"num_challenges": p.NumChallenges,
	}
	if p.Reward != nil {
		fields["reward"] = *p.Reward
	}

	return write.NewPoint(MeasurementPerformance, tags, fields, p.Time)
}

// WritePerformance writes all points in one blocking request
func (c *Client) WritePerformance(ctx context.Context, points []PerformancePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		batch = append(batch, NewPerformancePoint(p))
	}

	if err := c.writeAPI.WritePoint(ctx, batch...); err != nil {
		return fmt.Errorf("failed to write performance points: %w", err)
	}
	return nil
}
