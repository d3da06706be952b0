// Package main implements guardreport, a one-shot tool that prints the
// challenge performance and fee rewards of the guardnodes bidding on one
// coordinator request.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bardlex/guardreport/internal/bitcoin"
	"github.com/bardlex/guardreport/internal/config"
	"github.com/bardlex/guardreport/internal/coordinator"
	"github.com/bardlex/guardreport/internal/database"
	"github.com/bardlex/guardreport/internal/database/influx"
	"github.com/bardlex/guardreport/internal/database/postgres"
	"github.com/bardlex/guardreport/internal/database/redis"
	"github.com/bardlex/guardreport/internal/messaging"
	"github.com/bardlex/guardreport/internal/performance"
	"github.com/bardlex/guardreport/internal/report"
	"github.com/bardlex/guardreport/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Debug("starting guardreport",
		"coordinator", redactURL(cfg.CoordinatorURL),
		"protocol", cfg.ProtocolVariant,
		"fee_calculation", cfg.FeeCalculation,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger, os.Stdout); err != nil {
		logger.WithError(err).Error("guardreport failed")
		stop()
		os.Exit(1)
	}
}

// options holds the command-line switches that are not configuration
type options struct {
	listRequests bool
	page         int
}

// parseFlags applies command-line overrides on top of the environment
// configuration and validates the result. The first positional argument is
// the request txid.
func parseFlags(args []string, cfg *config.Config) (*options, error) {
	fs := pflag.NewFlagSet("guardreport", pflag.ContinueOnError)

	opts := &options{}
	txid := fs.String("txid", cfg.TxID, "request transaction id")
	protocol := fs.String("protocol", cfg.ProtocolVariant, "response protocol: count or list")
	format := fs.String("format", cfg.OutputFormat, "output format: text or json")
	heightSource := fs.String("height-source", cfg.FeeHeightSource, "fee block range: clientchain or service")
	noFees := fs.Bool("no-fees", !cfg.FeeCalculation, "skip the fee scan and rewards")
	fs.BoolVar(&opts.listRequests, "list-requests", false, "list coordinator requests instead of reporting one")
	fs.IntVar(&opts.page, "page", 1, "page of requests to list")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one txid argument, got %d", fs.NArg())
	}
	if fs.NArg() == 1 {
		*txid = fs.Arg(0)
	}

	cfg.TxID = *txid
	cfg.ProtocolVariant = strings.ToLower(*protocol)
	cfg.OutputFormat = strings.ToLower(*format)
	cfg.FeeHeightSource = strings.ToLower(*heightSource)
	cfg.FeeCalculation = !*noFees

	if opts.listRequests {
		if opts.page < 1 {
			return nil, fmt.Errorf("page must be at least 1")
		}
		return opts, cfg.Validate()
	}

	return opts, cfg.ValidateReport()
}

// run builds the pipeline for one request, or lists requests
func run(ctx context.Context, cfg *config.Config, opts *options, logger *log.Logger, out io.Writer) error {
	source, err := coordinator.NewClient(cfg.CoordinatorURL, cfg.RPCTimeout, logger)
	if err != nil {
		return err
	}

	if opts.listRequests {
		return listRequests(ctx, source, opts.page, cfg.OutputFormat, out)
	}

	var node bitcoin.NodeInterface
	if cfg.FeeCalculation {
		client, err := bitcoin.NewRPCClient(cfg.NodeRPCURL, cfg.NodeRPCUser, cfg.NodeRPCPass)
		if err != nil {
			return err
		}
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("node not reachable, fees may be partial", "node", client.Host())
		}
		pingCancel()
		node = client
	}

	aggregator, err := performance.New(cfg.ProtocolVariant)
	if err != nil {
		return err
	}

	sinks, closeSinks := openSinks(ctx, cfg, logger)
	defer closeSinks()

	pipeline := report.NewPipeline(cfg, source, node, aggregator, logger, out, sinks...)
	_, err = pipeline.Run(ctx, cfg.TxID)
	return err
}

// openSinks connects every configured report sink. The returned function
// closes them.
func openSinks(ctx context.Context, cfg *config.Config, logger *log.Logger) ([]report.Sink, func()) {
	var sinks []report.Sink
	var closers []func()

	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger)
		sinks = append(sinks, messaging.NewReportSink(kafkaClient, cfg.KafkaTopic))
		closers = append(closers, func() {
			if err := kafkaClient.Close(); err != nil {
				logger.WithError(err).Warn("failed to close Kafka client")
			}
		})
	}

	dbConfig := &database.Config{ReportTTL: cfg.ReportCacheTTL}
	if cfg.PostgresURL != "" {
		dbConfig.Postgres = &postgres.Config{DSN: cfg.PostgresURL}
	}
	if cfg.RedisURL != "" {
		dbConfig.Redis = &redis.Config{URL: cfg.RedisURL}
	}
	if cfg.InfluxURL != "" {
		dbConfig.Influx = &influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}
	}

	if dbConfig.Postgres != nil || dbConfig.Redis != nil || dbConfig.Influx != nil {
		manager := database.NewManager(ctx, dbConfig, logger)
		sinks = append(sinks, manager.Sinks()...)
		closers = append(closers, func() {
			if err := manager.Close(); err != nil {
				logger.WithError(err).Warn("failed to close databases")
			}
		})
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

// redactURL drops credentials before a URL is logged
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***@" + raw[at+1:]
}
