// Package writer sinks normalized events into partitioned parquet files,
// optionally mirrored to S3. It sits downstream of the normalization core
// and consumes the canonical event channels.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "normflow/config"
	"normflow/internal/channel"
	"normflow/logger"
	"normflow/models"
)

// TradeRecord is the flattened parquet row for a trade event.
type TradeRecord struct {
	Exchange       string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol         string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	TradeID        string  `parquet:"name=trade_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price          float64 `parquet:"name=price, type=DOUBLE"`
	Amount         float64 `parquet:"name=amount, type=DOUBLE"`
	Side           string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp      int64   `parquet:"name=timestamp, type=INT64"`
	LocalTimestamp int64   `parquet:"name=local_timestamp, type=INT64"`
}

// BookChangeRecord is the flattened parquet row for one book level change.
type BookChangeRecord struct {
	Exchange       string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol         string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsSnapshot     bool    `parquet:"name=is_snapshot, type=BOOLEAN"`
	Side           string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price          float64 `parquet:"name=price, type=DOUBLE"`
	Amount         float64 `parquet:"name=amount, type=DOUBLE"`
	Level          int32   `parquet:"name=level, type=INT32"`
	Timestamp      int64   `parquet:"name=timestamp, type=INT64"`
	LocalTimestamp int64   `parquet:"name=local_timestamp, type=INT64"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory
// writing; the finished buffer is flushed to disk or S3 in one piece.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) { return mfw.buffer.Read(b) }

func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }

func (mfw *memoryFileWriter) Close() error { return nil }

func (mfw *memoryFileWriter) Bytes() []byte { return mfw.buffer.Bytes() }

// Writer batches normalized events per (exchange, symbol) and flushes them
// as parquet files once the batch size or flush interval is reached.
type Writer struct {
	config   *appconfig.Config
	channels *channel.Channels
	uploader *s3Uploader
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.Mutex
	running  bool
	log      *logger.Log

	trades      map[string][]TradeRecord
	bookChanges map[string][]BookChangeRecord
	lastFlush   map[string]time.Time
}

// NewWriter creates a writer consuming from ch. The S3 uploader is only
// constructed when enabled in the configuration.
func NewWriter(cfg *appconfig.Config, ch *channel.Channels) (*Writer, error) {
	w := &Writer{
		config:      cfg,
		channels:    ch,
		wg:          &sync.WaitGroup{},
		log:         logger.GetLogger(),
		trades:      make(map[string][]TradeRecord),
		bookChanges: make(map[string][]BookChangeRecord),
		lastFlush:   make(map[string]time.Time),
	}
	if cfg.Writer.S3.Enabled {
		uploader, err := newS3Uploader(cfg.Writer.S3)
		if err != nil {
			return nil, err
		}
		w.uploader = uploader
	}
	return w, nil
}

// Start begins consuming the event channels.
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.mu.Unlock()

	log := w.log.WithComponent("writer")
	log.WithFields(logger.Fields{
		"directory":  w.config.Writer.Directory,
		"batch_size": w.config.Writer.BatchSize,
		"s3_enabled": w.config.Writer.S3.Enabled,
	}).Info("starting writer")

	w.wg.Add(2)
	go w.consume()
	go w.flusher()
	return nil
}

// Stop flushes remaining batches and waits for workers to exit.
func (w *Writer) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.wg.Wait()
	w.flushAll("shutdown")
	w.log.WithComponent("writer").Info("writer stopped")
}

func (w *Writer) consume() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case trade, ok := <-w.channels.TradesReader():
			if !ok {
				return
			}
			w.addTrade(trade)
		case change, ok := <-w.channels.BookChangesReader():
			if !ok {
				return
			}
			w.addBookChange(change)
		}
	}
}

func (w *Writer) addTrade(trade models.Trade) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := fmt.Sprintf("trades_%s_%s", trade.Exchange, trade.Symbol)
	w.trades[key] = append(w.trades[key], TradeRecord{
		Exchange:       trade.Exchange,
		Symbol:         trade.Symbol,
		TradeID:        trade.TradeID,
		Price:          trade.Price,
		Amount:         trade.Amount,
		Side:           string(trade.Side),
		Timestamp:      trade.Timestamp.UnixMilli(),
		LocalTimestamp: trade.LocalTimestamp.UnixMilli(),
	})
	if _, ok := w.lastFlush[key]; !ok {
		w.lastFlush[key] = time.Now()
	}
	if len(w.trades[key]) >= w.config.Writer.BatchSize {
		w.flushTrades(key)
	}
}

func (w *Writer) addBookChange(change models.BookChange) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := fmt.Sprintf("book_changes_%s_%s", change.Exchange, change.Symbol)
	w.bookChanges[key] = append(w.bookChanges[key], FlattenBookChange(change)...)
	if _, ok := w.lastFlush[key]; !ok {
		w.lastFlush[key] = time.Now()
	}
	if len(w.bookChanges[key]) >= w.config.Writer.BatchSize {
		w.flushBookChanges(key)
	}
}

// FlattenBookChange turns one book change into per-level parquet rows.
// Level is 1-based from the best price on each side.
func FlattenBookChange(change models.BookChange) []BookChangeRecord {
	rows := make([]BookChangeRecord, 0, len(change.Bids)+len(change.Asks))
	appendSide := func(side string, levels []models.BookLevel) {
		for i, lvl := range levels {
			rows = append(rows, BookChangeRecord{
				Exchange:       change.Exchange,
				Symbol:         change.Symbol,
				IsSnapshot:     change.IsSnapshot,
				Side:           side,
				Price:          lvl.Price,
				Amount:         lvl.Amount,
				Level:          int32(i + 1),
				Timestamp:      change.Timestamp.UnixMilli(),
				LocalTimestamp: change.LocalTimestamp.UnixMilli(),
			})
		}
	}
	appendSide("bid", change.Bids)
	appendSide("ask", change.Asks)
	return rows
}

func (w *Writer) flusher() {
	defer w.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushTimedOut()
		}
	}
}

func (w *Writer) flushTimedOut() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	for key, t := range w.lastFlush {
		if now.Sub(t) < w.config.Writer.FlushInterval {
			continue
		}
		if _, ok := w.trades[key]; ok {
			w.flushTrades(key)
		} else {
			w.flushBookChanges(key)
		}
	}
}

func (w *Writer) flushAll(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.trades {
		w.flushTrades(key)
	}
	for key := range w.bookChanges {
		w.flushBookChanges(key)
	}
	w.log.WithComponent("writer").WithFields(logger.Fields{"reason": reason}).Info("flushed all buffers")
}

// flushTrades must be called with the mutex held.
func (w *Writer) flushTrades(key string) {
	records := w.trades[key]
	if len(records) == 0 {
		return
	}
	data, err := buildParquet(new(TradeRecord), func(pw *pqwriter.ParquetWriter) error {
		for _, r := range records {
			if err := pw.Write(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		w.log.WithComponent("writer").WithError(err).Error("failed to build trades parquet")
		return
	}
	delete(w.trades, key)
	delete(w.lastFlush, key)
	w.persist(key, data, len(records))
}

// flushBookChanges must be called with the mutex held.
func (w *Writer) flushBookChanges(key string) {
	records := w.bookChanges[key]
	if len(records) == 0 {
		return
	}
	data, err := buildParquet(new(BookChangeRecord), func(pw *pqwriter.ParquetWriter) error {
		for _, r := range records {
			if err := pw.Write(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		w.log.WithComponent("writer").WithError(err).Error("failed to build book changes parquet")
		return
	}
	delete(w.bookChanges, key)
	delete(w.lastFlush, key)
	w.persist(key, data, len(records))
}

func buildParquet(schema any, write func(*pqwriter.ParquetWriter) error) ([]byte, error) {
	mfw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(mfw, schema, 2)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	if err := write(pw); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}
	return mfw.Bytes(), nil
}

func (w *Writer) persist(key string, data []byte, rows int) {
	log := w.log.WithComponent("writer").WithFields(logger.Fields{
		"key":  key,
		"rows": rows,
		"size": len(data),
	})

	name := fmt.Sprintf("%s/%s/%s.parquet", key, time.Now().UTC().Format("2006-01-02"), uuid.New().String())

	path := filepath.Join(w.config.Writer.Directory, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.WithError(err).Error("failed to create output directory")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.WithError(err).Error("failed to write parquet file")
		return
	}
	log.WithFields(logger.Fields{"path": path}).Info("wrote parquet file")
	logger.RecordChannelMessage("parquet_write", len(data))

	if w.uploader != nil {
		if err := w.uploader.Upload(w.ctx, name, data); err != nil {
			log.WithError(err).Error("failed to upload parquet file to s3")
		}
	}
}
