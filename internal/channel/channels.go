// Package channel fans normalized events from the feed to consumers over
// buffered typed channels.
package channel

import (
	"context"
	"time"

	"normflow/logger"
	"normflow/models"
)

// Channels groups the three canonical event streams. One feed writes, any
// number of consumers read.
type Channels struct {
	trades      chan models.Trade
	bookChanges chan models.BookChange
	tickers     chan models.DerivativeTicker
}

func NewChannels(buffer int) *Channels {
	return &Channels{
		trades:      make(chan models.Trade, buffer),
		bookChanges: make(chan models.BookChange, buffer),
		tickers:     make(chan models.DerivativeTicker, buffer),
	}
}

func (c *Channels) TradesWriter() chan<- models.Trade { return c.trades }

func (c *Channels) TradesReader() <-chan models.Trade { return c.trades }

func (c *Channels) BookChangesWriter() chan<- models.BookChange { return c.bookChanges }

func (c *Channels) BookChangesReader() <-chan models.BookChange { return c.bookChanges }

func (c *Channels) TickersWriter() chan<- models.DerivativeTicker { return c.tickers }

func (c *Channels) TickersReader() <-chan models.DerivativeTicker { return c.tickers }

func (c *Channels) Close() {
	close(c.trades)
	close(c.bookChanges)
	close(c.tickers)
}

// StartMetricsReporting reports channel occupancy periodically so
// backpressure shows up before events get dropped.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	log := logger.GetLogger().WithComponent("channels")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reportOccupancy(log)
		}
	}
}

func (c *Channels) reportOccupancy(log *logger.Entry) {
	log.LogMetric("channels", "trades_queue_depth", len(c.trades), "gauge", logger.Fields{
		"capacity": cap(c.trades),
	})
	log.LogMetric("channels", "book_changes_queue_depth", len(c.bookChanges), "gauge", logger.Fields{
		"capacity": cap(c.bookChanges),
	})
	log.LogMetric("channels", "tickers_queue_depth", len(c.tickers), "gauge", logger.Fields{
		"capacity": cap(c.tickers),
	})
}
