package notifier

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/metrics"
	"StockWatch/internal/model"
	"StockWatch/internal/recorder"
	"StockWatch/internal/strategy"
)

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// AlertNotifier evaluates every published snapshot and forwards new alerts.
// OnSnapshot only enqueues; Run does the sending, so the publish path never blocks on the network.
type AlertNotifier struct {
	sender   Sender
	recorder recorder.Recorder
	metrics  *metrics.Metrics
	rules    strategy.Rules
	queue    chan model.Alert
	logger   zerolog.Logger

	mu      sync.Mutex
	seen    map[alertKey]bool
	lastBar map[string]int64 // newest bar seen per symbol
}

type alertKey struct {
	symbol string
	kind   model.AlertKind
	bar    int64
}

// NewAlertNotifier creates an alert observer with a bounded queue.
func NewAlertNotifier(sender Sender, rec recorder.Recorder, m *metrics.Metrics) *AlertNotifier {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &AlertNotifier{
		sender:   sender,
		recorder: rec,
		metrics:  m,
		rules:    strategy.DefaultRules,
		queue:    make(chan model.Alert, 32),
		seen:     make(map[alertKey]bool),
		lastBar:  make(map[string]int64),
		logger:   log.With().Str("component", "alerts").Logger(),
	}
}

// OnSnapshot enqueues alerts not already raised for the same bar.
func (n *AlertNotifier) OnSnapshot(snap *model.Snapshot) {
	if snap == nil {
		return
	}
	if bar, ok := snap.Series.Last(); ok {
		n.advance(snap.Symbol, bar.Time.Unix())
	}
	for _, a := range n.rules.Evaluate(snap) {
		key := alertKey{symbol: a.Symbol, kind: a.Kind, bar: a.Time.Unix()}
		n.mu.Lock()
		dup := n.seen[key]
		n.seen[key] = true
		n.mu.Unlock()
		if dup {
			continue
		}
		select {
		case n.queue <- a:
		default:
			n.logger.Warn().Str("symbol", a.Symbol).Str("kind", string(a.Kind)).Msg("alert queue full, dropping")
		}
	}
}

// advance forgets the symbol's alerts for bars older than bar once a newer bar shows up.
func (n *AlertNotifier) advance(symbol string, bar int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastBar[symbol]; ok && bar <= last {
		return
	}
	n.lastBar[symbol] = bar
	for k := range n.seen {
		if k.symbol == symbol && k.bar < bar {
			delete(n.seen, k)
		}
	}
}

// Run sends queued alerts until ctx is cancelled.
func (n *AlertNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-n.queue:
			n.deliver(ctx, &a)
		}
	}
}

func (n *AlertNotifier) deliver(ctx context.Context, a *model.Alert) {
	n.metrics.AlertRaised(string(a.Kind))
	n.logger.Info().Str("symbol", a.Symbol).Str("kind", string(a.Kind)).Float64("value", a.Value).Msg("alert raised")
	if err := n.recorder.RecordAlert(a); err != nil {
		n.logger.Error().Err(err).Msg("record alert")
	}
	if n.sender == nil {
		return
	}
	if err := n.sender.SendWithRetry(ctx, FormatAlert(a), 3); err != nil {
		n.logger.Error().Err(err).Msg("send alert")
	}
}
