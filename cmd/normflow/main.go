package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appconfig "normflow/config"
	"normflow/internal/channel"
	"normflow/internal/metrics"
	"normflow/logger"
	"normflow/mapper"
	"normflow/models"
	"normflow/normalize"
	"normflow/reader/binance"
	"normflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", appconfig.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":   cfg.Normflow.Name,
		"version":   cfg.Normflow.Version,
		"exchanges": normalize.Supported(),
	}).Info("starting normflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}
	if cfg.Metrics.Prometheus.Enabled {
		metrics.Init(cfg.Metrics.Prometheus.Listen)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	channels := channel.NewChannels(cfg.Channels.Buffer)
	defer channels.Close()

	go channels.StartMetricsReporting(ctx)

	raw := make(chan models.RawMessage, cfg.Channels.Buffer)

	var feed *binance.Feed
	if cfg.Reader.Binance.Enabled {
		feed = binance.NewFeed(cfg.Reader.Binance, raw)
	} else {
		log.WithComponent("main").Info("binance feed disabled; waiting on raw channel only")
	}

	var parquetWriter *writer.Writer
	if cfg.Writer.Enabled {
		parquetWriter, err = writer.NewWriter(cfg, channels)
		if err != nil {
			log.WithError(err).Error("failed to create parquet writer")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("parquet writer disabled; events are dropped after normalization")
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runNormalizer(ctx, cfg, raw, channels)
	}()

	if feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feed.Start(ctx); err != nil {
				log.WithError(err).Warn("binance feed failed to start")
			}
		}()
	}

	if parquetWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := parquetWriter.Start(ctx); err != nil {
				log.WithError(err).Warn("parquet writer failed to start")
			}
		}()
	}

	time.Sleep(2 * time.Second)
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if parquetWriter != nil {
		log.Info("stopping parquet writer")
		parquetWriter.Stop()
	}
	if feed != nil {
		log.Info("stopping binance feed")
		feed.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("normflow stopped")
}

// runNormalizer drains the raw channel through the binance mappers and fans
// the canonical events out to the typed channels. Local timestamps are
// assigned on receipt.
func runNormalizer(ctx context.Context, cfg *appconfig.Config, raw <-chan models.RawMessage, channels *channel.Channels) {
	log := logger.GetLogger().WithComponent("normalizer")
	now := time.Now().UTC()

	opts := mapper.BookOptions{
		Strict:         cfg.Book.StrictFor(normalize.ExchangeBinance),
		BufferCapacity: cfg.Book.BufferCapacity,
		FailOnOverflow: cfg.Book.OverflowPolicy == appconfig.OverflowFail,
	}

	trades, err := normalize.Trades(normalize.ExchangeBinance, now)
	if err != nil {
		log.WithError(err).Error("failed to resolve trades mapper")
		return
	}
	books, err := normalize.BookChanges(normalize.ExchangeBinance, now, opts)
	if err != nil {
		log.WithError(err).Error("failed to resolve book change mapper")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}
			localTimestamp := time.Now().UTC()

			if trades.CanHandle(msg) {
				events, err := trades.Map(msg, localTimestamp)
				if err != nil {
					log.WithError(err).WithFields(logger.Fields{"symbol": msg.Symbol}).Warn("trade mapping failed")
					continue
				}
				for _, ev := range events {
					select {
					case channels.TradesWriter() <- ev:
						metrics.IncrementEventsEmitted(ev.Exchange, "trade", 1)
						logger.IncrementEventsEmitted(1)
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			if books.CanHandle(msg) {
				events, err := books.Map(msg, localTimestamp)
				if err != nil {
					var recErr *mapper.ReconciliationError
					if errors.As(err, &recErr) {
						log.WithError(err).WithFields(logger.Fields{"symbol": recErr.Symbol}).Error("book reconciliation failed")
						metrics.IncrementReconciliationFailures(recErr.Exchange, "strict")
					} else {
						log.WithError(err).WithFields(logger.Fields{"symbol": msg.Symbol}).Warn("book mapping failed")
					}
					continue
				}
				for _, ev := range events {
					select {
					case channels.BookChangesWriter() <- ev:
						metrics.IncrementEventsEmitted(ev.Exchange, "book_change", 1)
						logger.IncrementEventsEmitted(1)
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}
