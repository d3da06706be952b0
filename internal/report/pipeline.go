package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/bardlex/guardreport/internal/bitcoin"
	"github.com/bardlex/guardreport/internal/config"
	"github.com/bardlex/guardreport/internal/coordinator"
	"github.com/bardlex/guardreport/internal/fees"
	"github.com/bardlex/guardreport/internal/performance"
	"github.com/bardlex/guardreport/pkg/log"
)

// Source is the coordinator API the pipeline reads from
type Source interface {
	GetRequest(ctx context.Context, txid string) (*coordinator.RequestResult, error)
	GetResponses(ctx context.Context, method, txid string) (json.RawMessage, error)
}

// Sink receives finished reports. Sinks are best effort: a failing sink is
// logged and never fails the run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r *Report) error
}

// Pipeline runs fetch, fee scan, aggregation and formatting in order
type Pipeline struct {
	cfg        *config.Config
	source     Source
	node       bitcoin.NodeInterface
	aggregator performance.Aggregator
	sinks      []Sink
	logger     *log.Logger
	out        io.Writer
}

// NewPipeline wires a pipeline. node may be nil when fee calculation is off.
func NewPipeline(cfg *config.Config, source Source, node bitcoin.NodeInterface, aggregator performance.Aggregator,
	logger *log.Logger, out io.Writer, sinks ...Sink) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		node:       node,
		aggregator: aggregator,
		sinks:      sinks,
		logger:     logger.WithComponent("pipeline"),
		out:        out,
	}
}

// Run produces and prints the report for one request. Any fetch, decode or
// validation failure aborts the run; a failing fee scan only makes the fee
// partial.
func (p *Pipeline) Run(ctx context.Context, txid string) (*Report, error) {
	logger := p.logger.WithContext(ctx).WithRequest(txid)
	start := time.Now()

	result, err := p.source.GetRequest(ctx, txid)
	if err != nil {
		return nil, err
	}
	logger.Info("fetched request",
		"bids", len(result.Bids),
		"fee_percentage", result.Request.FeePercentage,
		"payment_complete", result.Request.IsPaymentComplete,
	)

	var fee *FeeInput
	if p.cfg.FeeCalculation {
		fee = p.scanFees(ctx, logger, &result.Request)
	}

	raw, err := p.source.GetResponses(ctx, p.aggregator.Method(), txid)
	if err != nil {
		return nil, err
	}
	summary, err := p.aggregator.Aggregate(raw)
	if err != nil {
		return nil, err
	}
	logger.Info("aggregated responses",
		"protocol", p.cfg.ProtocolVariant,
		"num_challenges", summary.NumChallenges,
		"responding_bids", len(summary.Ratios),
	)

	r, err := Build(p.cfg.ProtocolVariant, result, fee, summary, p.cfg.AddressVersionByte)
	if err != nil {
		return nil, err
	}
	if r.RequestTxID == "" {
		r.RequestTxID = txid
	}
	for _, e := range r.Entries {
		logger.WithBid(e.BidTxID).Debug("bid result", "performance", e.Performance, "address", e.Address)
	}

	if err := Write(p.out, r, p.cfg.OutputFormat); err != nil {
		return nil, err
	}

	p.publish(ctx, logger, r)
	logger.LogDuration("report", time.Since(start).Nanoseconds())

	return r, nil
}

// heightRange picks the configured block range off the request
func (p *Pipeline) heightRange(req *coordinator.Request) (int64, int64) {
	if p.cfg.FeeHeightSource == config.HeightSourceService {
		return req.StartBlockHeight, req.EndBlockHeight
	}
	return req.StartBlockHeightClientChain, req.EndBlockHeightClientChain
}

func (p *Pipeline) scanFees(ctx context.Context, logger *log.Logger, req *coordinator.Request) *FeeInput {
	startHeight, endHeight := p.heightRange(req)

	if startHeight <= endHeight {
		p.checkTip(ctx, logger, endHeight)
	}

	calc := fees.NewCalculator(p.node, logger, p.cfg.FeeAssetLabel)
	return &FeeInput{
		StartHeight: startHeight,
		EndHeight:   endHeight,
		Result:      calc.Calculate(ctx, startHeight, endHeight),
	}
}

// checkTip warns when the node has not reached the end of the range yet
func (p *Pipeline) checkTip(ctx context.Context, logger *log.Logger, endHeight int64) {
	tip, err := p.node.GetBlockCount(ctx)
	if err != nil {
		logger.WithError(err).Warn("could not read node height")
		return
	}
	if tip < endHeight {
		logger.Warn("request has not finished, fee covers blocks mined so far",
			"end_height", endHeight,
			"node_height", tip,
		)
	}
}

func (p *Pipeline) publish(ctx context.Context, logger *log.Logger, r *Report) {
	for _, sink := range p.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout())
		err := sink.Publish(sinkCtx, r)
		cancel()

		if err != nil {
			logger.WithError(err).Warn("report sink failed", "sink", sink.Name())
			continue
		}
		logger.Debug("report published", "sink", sink.Name())
	}
}

func (p *Pipeline) sinkTimeout() time.Duration {
	if p.cfg.SinkTimeout > 0 {
		return p.cfg.SinkTimeout
	}
	return 10 * time.Second
}
