package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/metrics"
	"StockWatch/internal/model"
	"StockWatch/internal/notifier"
	"StockWatch/internal/recorder"
	"StockWatch/internal/refresher"
	"StockWatch/internal/watchlist"
)

// Controller is the part of the refresher driven by commands.
type Controller interface {
	SetActiveSymbol(symbol string) error
	SetAutoRefresh(enabled bool)
	Status() refresher.Status
}

// SnapshotSource yields the latest published snapshot.
type SnapshotSource interface {
	Latest() (*model.Snapshot, bool)
}

// Scheduler manages cron tasks and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Controller
	Snapshots SnapshotSource
	Watchlist *watchlist.List
	Notifier  notifier.Sender // nil disables outgoing reports
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	Ctx       context.Context
	logger    zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, ctl Controller, snaps SnapshotSource, wl *watchlist.List, sender notifier.Sender, rec recorder.Recorder, m *metrics.Metrics) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Refresher: ctl,
		Snapshots: snaps,
		Watchlist: wl,
		Notifier:  sender,
		Recorder:  rec,
		Metrics:   m,
		Ctx:       ctx,
		logger:    log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the archive task.
func (s *Scheduler) RegisterAll(archiveCron string) error {
	if _, err := s.Cron.AddFunc(archiveCron, s.archiveTask); err != nil {
		return fmt.Errorf("register archive task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunArchiveNow executes the archive task immediately.
func (s *Scheduler) RunArchiveNow() {
	s.archiveTask()
}

// archiveTask stores the latest snapshot and sends its report.
func (s *Scheduler) archiveTask() {
	snap, ok := s.Snapshots.Latest()
	if !ok {
		s.logger.Info().Msg("archive skipped, nothing published yet")
		return
	}
	s.logger.Info().Str("symbol", snap.Symbol).Str("cycle_id", snap.CycleID).Msg("archiving snapshot")

	if err := s.Recorder.RecordSnapshot(snap); err != nil {
		s.logger.Error().Err(err).Msg("record snapshot")
	} else {
		s.Metrics.SnapshotArchived()
	}
	s.trySend(notifier.FormatSnapshot(snap))
}

const helpText = "Available commands:\n" +
	"• /view SYMBOL – load a symbol\n" +
	"• /add SYMBOL – add to watchlist\n" +
	"• /remove SYMBOL – remove from watchlist\n" +
	"• /list – show watchlist\n" +
	"• /status – refresh status\n" +
	"• /auto on|off – toggle auto-refresh\n" +
	"• /snapshot – latest figures"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch strings.ToLower(fields[0]) {
	case "/view":
		if arg == "" {
			return "Usage: /view SYMBOL"
		}
		if err := s.Refresher.SetActiveSymbol(arg); err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		sym := refresher.NormalizeSymbol(arg)
		if !s.Watchlist.Contains(sym) {
			return fmt.Sprintf("Loading %s\nNot on the watchlist yet, /add %s to keep it", sym, sym)
		}
		return "Loading " + sym
	case "/add":
		if arg == "" {
			return "Usage: /add SYMBOL"
		}
		added, err := s.Watchlist.Add(arg)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		if !added {
			return refresher.NormalizeSymbol(arg) + " is already on the watchlist"
		}
		return notifier.FormatWatchlist(s.Watchlist.Symbols(), watchlist.SampleSymbols)
	case "/remove":
		if arg == "" {
			return "Usage: /remove SYMBOL"
		}
		removed, err := s.Watchlist.Remove(arg)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		if !removed {
			return refresher.NormalizeSymbol(arg) + " is not on the watchlist"
		}
		return notifier.FormatWatchlist(s.Watchlist.Symbols(), watchlist.SampleSymbols)
	case "/list":
		return notifier.FormatWatchlist(s.Watchlist.Symbols(), watchlist.SampleSymbols)
	case "/status":
		return notifier.FormatStatus(s.Refresher.Status())
	case "/auto":
		switch strings.ToLower(arg) {
		case "on":
			s.Refresher.SetAutoRefresh(true)
		case "off":
			s.Refresher.SetAutoRefresh(false)
		default:
			return "Usage: /auto on|off"
		}
		return notifier.FormatStatus(s.Refresher.Status())
	case "/snapshot":
		snap, ok := s.Snapshots.Latest()
		if !ok {
			return "Nothing loaded yet. Use /view SYMBOL"
		}
		return notifier.FormatSnapshot(snap)
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error().Err(err).Msg("send notification")
	}
}
