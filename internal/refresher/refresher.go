// Package refresher drives the fetch, normalize, compute and publish cycle for one active symbol.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/collector"
	"StockWatch/internal/metrics"
	"StockWatch/internal/model"
)

// DefaultInterval is the auto-refresh period.
const DefaultInterval = 5 * time.Second

// ErrClosed is returned by SetActiveSymbol after Close.
var ErrClosed = errors.New("refresher closed")

// State of the refresh pipeline.
type State int

const (
	Idle State = iota
	Loading
	Published
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Published:
		return "published"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Publisher receives every successfully built snapshot.
type Publisher interface {
	Publish(snap *model.Snapshot)
}

// Options configures a Refresher.
type Options struct {
	Interval    time.Duration
	AutoRefresh bool
	Metrics     *metrics.Metrics
	AfterFunc   AfterFunc        // tests inject a manual timer
	Now         func() time.Time // tests inject a fixed clock
}

// DefaultOptions polls every five seconds.
func DefaultOptions() Options {
	return Options{Interval: DefaultInterval, AutoRefresh: true}
}

// Status is a point-in-time copy of the pipeline state.
type Status struct {
	State       State     `json:"state"`
	Symbol      string    `json:"symbol"`
	AutoRefresh bool      `json:"auto_refresh"`
	Candles     int       `json:"candles"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	LastAttempt time.Time `json:"last_attempt"`
	Message     string    `json:"message"`
}

// Refresher owns the active symbol, the in-flight retrieval and the single pending timer.
type Refresher struct {
	fetcher collector.Fetcher
	pub     Publisher
	opts    Options
	logger  zerolog.Logger

	mu          sync.Mutex
	state       State
	symbol      string
	auto        bool
	gen         uint64 // bumped on every symbol switch or stop
	timerSeq    uint64 // bumped on every timer stop or arm
	timer       Timer
	cancel      context.CancelFunc
	done        chan struct{} // closed when the latest cycle goroutine returns
	closed      bool
	lastErr     error
	lastSuccess time.Time
	lastAttempt time.Time
	candles     int

	wg sync.WaitGroup
}

// New creates an idle refresher. Zero option fields take their defaults.
func New(fetcher collector.Fetcher, pub Publisher, opts Options) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{
		fetcher: fetcher,
		pub:     pub,
		opts:    opts,
		auto:    opts.AutoRefresh,
		logger:  log.With().Str("component", "refresher").Str("source", fetcher.Name()).Logger(),
	}
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SetActiveSymbol abandons any pending timer and in-flight retrieval and starts a cycle for symbol.
func (r *Refresher) SetActiveSymbol(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", model.ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.invalidateLocked()
	if r.symbol != symbol {
		r.opts.Metrics.SymbolSwitched()
	}
	r.symbol = symbol
	r.lastErr = nil
	r.candles = 0
	r.logger.Info().Str("symbol", symbol).Msg("active symbol set")
	r.startCycleLocked()
	return nil
}

// SetAutoRefresh toggles polling. Enabling arms a timer only when a cycle has finished.
func (r *Refresher) SetAutoRefresh(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.auto = enabled
	if !enabled {
		r.stopTimerLocked()
		return
	}
	if (r.state == Published || r.state == Failed) && r.timer == nil {
		r.armLocked()
	}
}

// Stop returns to Idle, discarding the pending timer and any in-flight retrieval.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

// Close stops the pipeline and waits for cycle goroutines to exit.
func (r *Refresher) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.resetLocked()
	r.mu.Unlock()

	r.wg.Wait()
}

// Status returns a copy of the current state.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		State:       r.state,
		Symbol:      r.symbol,
		AutoRefresh: r.auto,
		Candles:     r.candles,
		LastSuccess: r.lastSuccess,
		LastAttempt: r.lastAttempt,
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	st.Message = statusMessage(st)
	return st
}

func statusMessage(st Status) string {
	switch st.State {
	case Loading:
		return "Loading " + st.Symbol
	case Published:
		return fmt.Sprintf("Loaded %s (%d days)", st.Symbol, st.Candles)
	case Failed:
		return "Error: " + st.LastError
	default:
		return "Idle"
	}
}

func (r *Refresher) resetLocked() {
	r.invalidateLocked()
	r.state = Idle
	r.symbol = ""
	r.candles = 0
	r.lastErr = nil
}

// invalidateLocked makes every outstanding cycle and timer stale.
func (r *Refresher) invalidateLocked() {
	r.gen++
	r.stopTimerLocked()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Refresher) stopTimerLocked() {
	r.timerSeq++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Refresher) armLocked() {
	r.stopTimerLocked()
	gen, seq := r.gen, r.timerSeq
	r.timer = r.opts.AfterFunc(r.opts.Interval, func() { r.onTimer(gen, seq) })
}

func (r *Refresher) onTimer(gen, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || gen != r.gen || seq != r.timerSeq || !r.auto {
		return
	}
	r.timer = nil
	r.startCycleLocked()
}

func (r *Refresher) startCycleLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.state = Loading
	r.lastAttempt = r.opts.Now()

	prev := r.done
	done := make(chan struct{})
	r.done = done

	r.wg.Add(1)
	go r.runCycle(ctx, cancel, r.gen, r.symbol, prev, done)
}

func (r *Refresher) runCycle(ctx context.Context, cancel context.CancelFunc, gen uint64, symbol string, prev, done chan struct{}) {
	defer r.wg.Done()
	defer close(done)
	defer cancel()

	// Retrievals never overlap: wait for the previous cycle, already cancelled, to return.
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		r.opts.Metrics.ObserveCycle(metrics.OutcomeStale, 0)
		return
	}

	start := r.opts.Now()
	logger := r.logger.With().Str("symbol", symbol).Uint64("cycle", gen).Logger()
	logger.Debug().Msg("fetching")

	snap, err := r.retrieve(ctx, symbol)
	r.complete(gen, symbol, snap, err, r.opts.Now().Sub(start), logger)
}

func (r *Refresher) retrieve(ctx context.Context, symbol string) (*model.Snapshot, error) {
	raw, err := r.fetcher.FetchDailySeries(ctx, symbol)
	if err != nil {
		if !errors.Is(err, model.ErrDataSource) {
			err = fmt.Errorf("%w: %w", model.ErrDataSource, err)
		}
		return nil, err
	}
	return BuildSnapshot(symbol, raw, r.opts.Now())
}

func (r *Refresher) complete(gen uint64, symbol string, snap *model.Snapshot, err error, took time.Duration, logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.gen || symbol != r.symbol {
		r.opts.Metrics.ObserveCycle(metrics.OutcomeStale, took)
		logger.Debug().Msg("dropping result for inactive symbol")
		return
	}
	r.cancel = nil

	if err != nil {
		r.state = Failed
		r.lastErr = err
		r.opts.Metrics.ObserveCycle(metrics.OutcomeFailed, took)
		logger.Warn().Err(err).Msg("refresh failed, keeping previous snapshot")
	} else {
		r.pub.Publish(snap)
		r.state = Published
		r.lastErr = nil
		r.lastSuccess = snap.FetchedAt
		r.candles = len(snap.Series)
		r.opts.Metrics.ObserveCycle(metrics.OutcomePublished, took)
		r.opts.Metrics.SetCandles(r.candles)
		logger.Info().Int("candles", r.candles).Str("cycle_id", snap.CycleID).Msg("snapshot published")
	}

	if r.auto {
		r.armLocked()
	}
}
