package mapper

import (
	"time"

	"normflow/config"
	"normflow/internal/metrics"
	"normflow/internal/ringbuf"
	"normflow/logger"
	"normflow/models"
)

// EmptySnapshotID marks a snapshot with no usable sequence id. The first
// update after such a snapshot always passes the overlap check.
const EmptySnapshotID int64 = -1

// BookUpdate is the exchange-agnostic form of a decoded order book message
// handed to the reconstruction engine. FirstUpdateID and FinalUpdateID
// delimit the sequence range the update covers; exchanges with a single id
// set both to it.
type BookUpdate struct {
	Symbol        string
	IsSnapshot    bool
	FirstUpdateID int64
	FinalUpdateID int64
	// PrevFinalUpdateID links an update to its predecessor on protocols
	// that chain updates explicitly (Binance futures "pu"). Zero when the
	// protocol does not carry it.
	PrevFinalUpdateID int64
	Bids              []models.BookLevel
	Asks              []models.BookLevel
	Timestamp         time.Time
}

// BookOptions is the caller-facing subset of BookEngineConfig exchange
// mapper constructors accept.
type BookOptions struct {
	Strict         bool
	BufferCapacity int
	FailOnOverflow bool
}

// BookPolicy carries the per-exchange boundary predicates. The state
// machine itself is identical across exchanges; only these comparisons and
// the snapshot delivery mechanism differ.
type BookPolicy struct {
	// IsStale reports whether u carries nothing newer than the highest
	// sequence id already applied.
	IsStale func(u BookUpdate, lastID int64) bool
	// Overlaps reports whether the first post-snapshot update covers the
	// sequence id right after the snapshot.
	Overlaps func(u BookUpdate, lastID int64) bool
	// ChainBroken, when non-nil, detects a gap between two consecutive
	// accepted updates while streaming (e.g. Binance futures pu chaining).
	ChainBroken func(prev, curr BookUpdate) bool
}

// DefaultBookPolicy returns the predicates most exchanges share: an update
// is stale unless its end id is strictly newer, and the first post-snapshot
// update must straddle lastUpdateId+1.
func DefaultBookPolicy() BookPolicy {
	return BookPolicy{
		IsStale: func(u BookUpdate, lastID int64) bool {
			return u.FinalUpdateID <= lastID
		},
		Overlaps: func(u BookUpdate, lastID int64) bool {
			return u.FirstUpdateID <= lastID+1 && u.FinalUpdateID >= lastID+1
		},
	}
}

// bookState is the reconstruction state for a single symbol. Created lazily
// on the first message for the symbol and owned by exactly one engine.
type bookState struct {
	buffered             *ringbuf.Buffer[BookUpdate]
	snapshotProcessed    bool
	lastUpdateID         int64
	validatedFirstUpdate bool
	highestFinalID       int64
	evictions            int
	prev                 BookUpdate
	hasPrev              bool
}

// BookEngineConfig parameterizes a reconstruction engine.
type BookEngineConfig struct {
	Exchange string
	Policy   BookPolicy
	// Strict surfaces reconciliation failures as errors instead of
	// logging and proceeding. Set for live feeds, cleared when replaying
	// recorded data already known to be consistent.
	Strict bool
	// BufferCapacity bounds the pre-snapshot update buffer per symbol.
	// Zero means config.DefaultBookBufferCapacity.
	BufferCapacity int
	// FailOnOverflow turns silent pre-snapshot eviction into a
	// reconciliation failure once the snapshot arrives.
	FailOnOverflow bool
}

// BookEngine replays exchange book messages through the per-symbol state
// machine and emits normalized BookChange events. Not safe for concurrent
// use; one feed must drive it sequentially.
type BookEngine struct {
	exchange       string
	policy         BookPolicy
	strict         bool
	bufferCapacity int
	failOnOverflow bool
	states         map[string]*bookState
	log            *logger.Entry
}

// NewBookEngine constructs an engine with empty per-symbol state.
func NewBookEngine(cfg BookEngineConfig) *BookEngine {
	capacity := cfg.BufferCapacity
	if capacity <= 0 {
		capacity = config.DefaultBookBufferCapacity
	}
	policy := cfg.Policy
	if policy.IsStale == nil || policy.Overlaps == nil {
		def := DefaultBookPolicy()
		if policy.IsStale == nil {
			policy.IsStale = def.IsStale
		}
		if policy.Overlaps == nil {
			policy.Overlaps = def.Overlaps
		}
	}
	return &BookEngine{
		exchange:       cfg.Exchange,
		policy:         policy,
		strict:         cfg.Strict,
		bufferCapacity: capacity,
		failOnOverflow: cfg.FailOnOverflow,
		states:         make(map[string]*bookState),
		log: logger.GetLogger().WithComponent("book_engine").WithFields(logger.Fields{
			"exchange": cfg.Exchange,
		}),
	}
}

func (e *BookEngine) state(symbol string) *bookState {
	st, ok := e.states[symbol]
	if !ok {
		st = &bookState{
			buffered:       ringbuf.New[BookUpdate](e.bufferCapacity),
			lastUpdateID:   EmptySnapshotID,
			highestFinalID: EmptySnapshotID,
		}
		e.states[symbol] = st
	}
	return st
}

// Apply runs one decoded book message through the state machine and returns
// the events it unlocks, in order. A snapshot yields the snapshot event
// followed by the replay of every buffered update; an update yields at most
// one event. Reconciliation failures are returned only in strict mode.
func (e *BookEngine) Apply(u BookUpdate, localTimestamp time.Time) ([]models.BookChange, error) {
	st := e.state(u.Symbol)

	if u.IsSnapshot {
		return e.applySnapshot(st, u, localTimestamp)
	}

	if !st.snapshotProcessed {
		if _, evicted := st.buffered.Append(u); evicted {
			st.evictions++
			metrics.IncrementBufferEvictions(e.exchange)
		}
		metrics.IncrementBufferedUpdates(e.exchange)
		return nil, nil
	}

	return e.applyUpdate(st, u, localTimestamp)
}

func (e *BookEngine) applySnapshot(st *bookState, u BookUpdate, localTimestamp time.Time) ([]models.BookChange, error) {
	// Re-delivered snapshots for an initialized symbol are dropped; the
	// symbol keeps its existing state.
	if st.snapshotProcessed {
		return nil, nil
	}

	if st.evictions > 0 && e.failOnOverflow {
		err := &ReconciliationError{
			Exchange:      e.exchange,
			Symbol:        u.Symbol,
			LastUpdateID:  u.FinalUpdateID,
			FirstUpdateID: u.FirstUpdateID,
			FinalUpdateID: u.FinalUpdateID,
			Reason:        "pre-snapshot buffer overflowed, updates were lost",
		}
		if e.strict {
			metrics.IncrementReconciliationFailures(e.exchange, "strict")
			return nil, err
		}
		metrics.IncrementReconciliationFailures(e.exchange, "tolerant")
		e.log.WithFields(logger.Fields{"symbol": u.Symbol}).Warn(err.Error())
	}

	st.snapshotProcessed = true
	st.lastUpdateID = u.FinalUpdateID
	st.highestFinalID = u.FinalUpdateID

	events := []models.BookChange{e.change(u, true, localTimestamp)}

	// Replay buffered updates through the same path live updates take,
	// oldest first, then drop the buffer.
	for _, buffered := range st.buffered.Items() {
		replayed, err := e.applyUpdate(st, buffered, localTimestamp)
		if err != nil {
			st.buffered.Clear()
			return events, err
		}
		events = append(events, replayed...)
	}
	st.buffered.Clear()

	return events, nil
}

func (e *BookEngine) applyUpdate(st *bookState, u BookUpdate, localTimestamp time.Time) ([]models.BookChange, error) {
	if e.policy.IsStale(u, st.highestFinalID) {
		metrics.IncrementStaleUpdates(e.exchange)
		return nil, nil
	}

	if !st.validatedFirstUpdate {
		if st.lastUpdateID != EmptySnapshotID && !e.policy.Overlaps(u, st.lastUpdateID) {
			if err := e.reconciliationFailed(st, u, "first update does not overlap snapshot sequence id"); err != nil {
				return nil, err
			}
		}
		st.validatedFirstUpdate = true
	} else if e.policy.ChainBroken != nil && st.hasPrev && e.policy.ChainBroken(st.prev, u) {
		if err := e.reconciliationFailed(st, u, "update chain broken"); err != nil {
			return nil, err
		}
	}

	st.prev = u
	st.hasPrev = true
	if u.FinalUpdateID > st.highestFinalID {
		st.highestFinalID = u.FinalUpdateID
	}

	return []models.BookChange{e.change(u, false, localTimestamp)}, nil
}

// reconciliationFailed applies the configured failure policy: strict mode
// returns the error, tolerant mode logs it and lets the stream continue at
// the risk of a silently inconsistent book.
func (e *BookEngine) reconciliationFailed(st *bookState, u BookUpdate, reason string) error {
	err := &ReconciliationError{
		Exchange:      e.exchange,
		Symbol:        u.Symbol,
		LastUpdateID:  st.lastUpdateID,
		FirstUpdateID: u.FirstUpdateID,
		FinalUpdateID: u.FinalUpdateID,
		Reason:        reason,
	}
	if e.strict {
		metrics.IncrementReconciliationFailures(e.exchange, "strict")
		return err
	}
	metrics.IncrementReconciliationFailures(e.exchange, "tolerant")
	e.log.WithFields(logger.Fields{"symbol": u.Symbol}).Warn(err.Error())
	return nil
}

func (e *BookEngine) change(u BookUpdate, isSnapshot bool, localTimestamp time.Time) models.BookChange {
	// Some protocols carry no event time on incremental updates.
	if u.Timestamp.IsZero() {
		u.Timestamp = localTimestamp
	}
	return models.BookChange{
		Exchange:       e.exchange,
		Symbol:         u.Symbol,
		IsSnapshot:     isSnapshot,
		Bids:           u.Bids,
		Asks:           u.Asks,
		Timestamp:      u.Timestamp,
		LocalTimestamp: localTimestamp,
	}
}
