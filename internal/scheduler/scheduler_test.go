package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"StockWatch/internal/model"
	"StockWatch/internal/refresher"
	"StockWatch/internal/watchlist"
)

type fakeController struct {
	symbol string
	auto   bool
}

func (f *fakeController) SetActiveSymbol(symbol string) error {
	f.symbol = refresher.NormalizeSymbol(symbol)
	return nil
}

func (f *fakeController) SetAutoRefresh(enabled bool) { f.auto = enabled }

func (f *fakeController) Status() refresher.Status {
	return refresher.Status{Symbol: f.symbol, AutoRefresh: f.auto, Message: "Loaded " + f.symbol}
}

type fakeSource struct{ snap *model.Snapshot }

func (f fakeSource) Latest() (*model.Snapshot, bool) { return f.snap, f.snap != nil }

type memStore struct{ symbols []string }

func (m *memStore) Load() ([]string, error)    { return m.symbols, nil }
func (m *memStore) Save(symbols []string) error { m.symbols = symbols; return nil }

type fakeRecorder struct {
	mu    sync.Mutex
	snaps []*model.Snapshot
}

func (f *fakeRecorder) RecordSnapshot(snap *model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return nil
}
func (f *fakeRecorder) RecordAlert(*model.Alert) error { return nil }
func (f *fakeRecorder) Close() error                   { return nil }

type fakeSender struct{ msgs []string }

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.msgs = append(f.msgs, text)
	return nil
}

func newTestScheduler(t *testing.T, snap *model.Snapshot) (*Scheduler, *fakeController, *fakeRecorder, *fakeSender) {
	t.Helper()
	wl, err := watchlist.Open(&memStore{}, watchlist.DefaultSymbols)
	if err != nil {
		t.Fatal(err)
	}
	ctl := &fakeController{}
	rec := &fakeRecorder{}
	sender := &fakeSender{}
	s := NewScheduler(context.Background(), ctl, fakeSource{snap}, wl, sender, rec, nil)
	return s, ctl, rec, sender
}

func sampleSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Symbol:  "AAPL",
		Series:  model.Series{{Time: time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 2}},
		Summary: model.Summary{LatestClose: 2, Points: 1},
		CycleID: "c1",
	}
}

func TestHandleCommand(t *testing.T) {
	s, ctl, _, _ := newTestScheduler(t, sampleSnapshot())

	if reply := s.HandleCommand("/view aapl"); reply != "Loading AAPL" || ctl.symbol != "AAPL" {
		t.Errorf("/view: reply %q, symbol %q", reply, ctl.symbol)
	}
	if reply := s.HandleCommand("/view msft"); !strings.HasPrefix(reply, "Loading MSFT") ||
		!strings.Contains(reply, "/add MSFT") || ctl.symbol != "MSFT" {
		t.Errorf("/view off-watchlist: reply %q, symbol %q", reply, ctl.symbol)
	}
	if reply := s.HandleCommand("/add tsla"); !strings.Contains(reply, "3. TSLA") {
		t.Errorf("/add reply %q", reply)
	}
	if reply := s.HandleCommand("/add TSLA"); !strings.Contains(reply, "already") {
		t.Errorf("duplicate /add reply %q", reply)
	}
	if reply := s.HandleCommand("/remove AAPL"); strings.Contains(reply, "AAPL") {
		t.Errorf("/remove reply still lists AAPL: %q", reply)
	}
	if reply := s.HandleCommand("/remove GOOGL"); !strings.Contains(reply, "not on the watchlist") {
		t.Errorf("/remove missing reply %q", reply)
	}
	if reply := s.HandleCommand("/list"); !strings.Contains(reply, "1. TCS.BSE") {
		t.Errorf("/list reply %q", reply)
	}
	if reply := s.HandleCommand("/auto on"); !ctl.auto || !strings.Contains(reply, "Auto-refresh: on") {
		t.Errorf("/auto on: auto=%v reply %q", ctl.auto, reply)
	}
	if reply := s.HandleCommand("/auto maybe"); !strings.HasPrefix(reply, "Usage") {
		t.Errorf("/auto usage reply %q", reply)
	}
	if reply := s.HandleCommand("/snapshot"); !strings.Contains(reply, "AAPL") {
		t.Errorf("/snapshot reply %q", reply)
	}
	if reply := s.HandleCommand("hello"); reply != helpText {
		t.Errorf("unknown command reply %q", reply)
	}
}

func TestArchiveTask(t *testing.T) {
	s, _, rec, sender := newTestScheduler(t, sampleSnapshot())
	s.RunArchiveNow()

	if len(rec.snaps) != 1 || rec.snaps[0].CycleID != "c1" {
		t.Errorf("archived %v", rec.snaps)
	}
	if len(sender.msgs) != 1 || !strings.Contains(sender.msgs[0], "AAPL") {
		t.Errorf("report not sent: %v", sender.msgs)
	}
}

func TestArchiveTask_NothingPublished(t *testing.T) {
	s, _, rec, sender := newTestScheduler(t, nil)
	s.RunArchiveNow()
	if len(rec.snaps) != 0 || len(sender.msgs) != 0 {
		t.Error("archive ran without a snapshot")
	}
}

func TestRegisterAll_BadCron(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, nil)
	if err := s.RegisterAll("not a cron"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
	if err := s.RegisterAll("0 0 22 * * 1-5"); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}
}
