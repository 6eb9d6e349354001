// Package binance streams raw market data from Binance spot websockets and
// seeds book reconstruction with REST depth snapshots. Decoded payloads are
// emitted as tagged envelopes ready for the normalization mappers.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	appconfig "normflow/config"
	"normflow/logger"
	"normflow/models"
)

// Feed streams trades and depth updates for a set of symbols over one
// combined websocket connection per symbol, and fetches the REST depth
// snapshot each time the stream (re)connects.
type Feed struct {
	config  appconfig.BinanceReaderConfig
	out     chan<- models.RawMessage
	rest    *gobinance.Client
	limiter *rate.Limiter
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.Mutex
	running bool
	log     *logger.Log
}

// NewFeed constructs a feed emitting into out. The REST client is unsigned;
// depth snapshots are a public endpoint.
func NewFeed(cfg appconfig.BinanceReaderConfig, out chan<- models.RawMessage) *Feed {
	return &Feed{
		config:  cfg,
		out:     out,
		rest:    gobinance.NewClient("", ""),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize),
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
	}
}

// Start launches one websocket worker per configured symbol.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("binance feed already running")
	}
	f.running = true
	f.ctx = ctx
	f.mu.Unlock()

	if len(f.config.Symbols) == 0 {
		return fmt.Errorf("no symbols configured for binance feed")
	}

	for _, sym := range f.config.Symbols {
		symbol := strings.ToUpper(sym)
		f.wg.Add(1)
		go f.streamSymbol(symbol)
	}

	f.log.WithComponent("binance_feed").WithFields(logger.Fields{
		"symbols": f.config.Symbols,
	}).Info("binance feed started")
	return nil
}

// Stop waits for all websocket workers to exit.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	f.log.WithComponent("binance_feed").Info("stopping binance feed")
	f.wg.Wait()
	f.log.WithComponent("binance_feed").Info("binance feed stopped")
}

// combinedFrame is the envelope of /stream?streams= multiplexed payloads.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func (f *Feed) streamSymbol(symbol string) {
	defer f.wg.Done()

	baseURL := strings.TrimSpace(f.config.WSURL)
	if baseURL == "" {
		baseURL = "wss://stream.binance.com:9443/stream"
	}

	lower := strings.ToLower(symbol)
	endpoint := fmt.Sprintf("%s?streams=%s@trade/%s@depth@100ms", baseURL, lower, lower)

	log := f.log.WithComponent("binance_feed").WithFields(logger.Fields{
		"symbol":   symbol,
		"endpoint": endpoint,
	})

	dialer := websocket.Dialer{HandshakeTimeout: f.config.Timeout}

	for {
		if f.ctx.Err() != nil {
			return
		}

		conn, _, err := dialer.Dial(endpoint, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect to binance websocket")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-f.ctx.Done():
				return
			}
		}

		// Snapshot after connecting so buffered deltas bracket it.
		if err := f.emitSnapshot(symbol); err != nil {
			log.WithError(err).Warn("failed to fetch depth snapshot")
		}

		f.readLoop(conn, log)

		select {
		case <-time.After(5 * time.Second):
		case <-f.ctx.Done():
			return
		}
	}
}

// readLoop drains one websocket connection until it errors or the feed
// context is cancelled. The connection is always closed on return; a watcher
// closes it on cancellation so a quiet stream cannot keep ReadMessage
// blocked past Stop.
func (f *Feed) readLoop(conn *websocket.Conn, log *logger.Entry) {
	defer conn.Close()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-f.ctx.Done():
			conn.Close()
		case <-stopped:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if f.ctx.Err() == nil {
				log.WithError(err).Warn("binance stream error, reconnecting")
			}
			return
		}
		msg, ok := decodeFrame(raw)
		if !ok {
			log.Debug("skipping undecodable binance frame")
			continue
		}
		if !f.emit(msg) {
			return
		}
	}
}

// decodeFrame maps one combined-stream frame onto a tagged envelope. Frames
// from unknown streams report !ok and are skipped.
func decodeFrame(raw []byte) (models.RawMessage, bool) {
	var frame combinedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return models.RawMessage{}, false
	}

	parts := strings.SplitN(frame.Stream, "@", 2)
	if len(parts) != 2 {
		return models.RawMessage{}, false
	}
	symbol := strings.ToUpper(parts[0])

	switch {
	case parts[1] == "trade":
		var trade models.BinanceTrade
		if err := json.Unmarshal(frame.Data, &trade); err != nil {
			return models.RawMessage{}, false
		}
		return models.RawMessage{
			Kind:    models.KindTrade,
			Channel: "trade",
			Symbol:  symbol,
			Data:    &trade,
		}, true
	case strings.HasPrefix(parts[1], "depth"):
		var update models.BinanceDepthUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			return models.RawMessage{}, false
		}
		return models.RawMessage{
			Kind:    models.KindBookUpdate,
			Channel: "depth",
			Symbol:  symbol,
			Data:    &update,
		}, true
	default:
		return models.RawMessage{}, false
	}
}

// emitSnapshot fetches the REST depth snapshot for symbol and emits it as a
// tagged envelope. Requests go through the shared rate limiter.
func (f *Feed) emitSnapshot(symbol string) error {
	if err := f.limiter.Wait(f.ctx); err != nil {
		return err
	}

	depth := f.config.SnapshotDepth
	if depth <= 0 {
		depth = 1000
	}

	res, err := f.rest.NewDepthService().Symbol(symbol).Limit(depth).Do(f.ctx)
	if err != nil {
		return fmt.Errorf("fetch depth snapshot for %s: %w", symbol, err)
	}

	snapshot := &models.BinanceDepthSnapshot{
		LastUpdateID: res.LastUpdateID,
		Bids:         make([][2]string, 0, len(res.Bids)),
		Asks:         make([][2]string, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		snapshot.Bids = append(snapshot.Bids, [2]string{b.Price, b.Quantity})
	}
	for _, a := range res.Asks {
		snapshot.Asks = append(snapshot.Asks, [2]string{a.Price, a.Quantity})
	}

	f.emit(models.RawMessage{
		Kind:    models.KindBookSnapshot,
		Channel: "depthSnapshot",
		Symbol:  symbol,
		Data:    snapshot,
	})
	return nil
}

// emit reports false when the feed context is done.
func (f *Feed) emit(msg models.RawMessage) bool {
	select {
	case f.out <- msg:
		logger.RecordChannelMessage("binance_feed", 1)
		return true
	case <-f.ctx.Done():
		return false
	}
}
