package refresher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"StockWatch/internal/model"
)

// --- test doubles ---

type fetchResult struct {
	raw model.RawTable
	err error
}

type fetchCall struct {
	symbol string
	resp   chan fetchResult
}

// scriptedFetcher hands every call to the test and blocks until the test answers.
type scriptedFetcher struct {
	calls     chan *fetchCall
	ignoreCtx bool
}

func newScriptedFetcher(ignoreCtx bool) *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan *fetchCall, 8), ignoreCtx: ignoreCtx}
}

func (f *scriptedFetcher) Name() string { return "scripted" }

func (f *scriptedFetcher) FetchDailySeries(ctx context.Context, symbol string) (model.RawTable, error) {
	c := &fetchCall{symbol: symbol, resp: make(chan fetchResult, 1)}
	f.calls <- c
	if f.ignoreCtx {
		res := <-c.resp
		return res.raw, res.err
	}
	select {
	case res := <-c.resp:
		return res.raw, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *scriptedFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (f *scriptedFetcher) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch for %s", c.symbol)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []*model.Snapshot
}

func (p *recordingPublisher) Publish(snap *model.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
}

func (p *recordingPublisher) symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.snaps))
	for i, s := range p.snaps {
		out[i] = s.Symbol
	}
	return out
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the callback even when the timer was stopped, as a racing time.AfterFunc could.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.f()
}

func rawTable(n int, base float64) model.RawTable {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := make(model.RawTable, n)
	for i := range table {
		p := base + float64(i%7) - 3
		table[i] = model.RawEntry{
			Date: start.AddDate(0, 0, i).Format("2006-01-02"),
			Fields: map[string]string{
				"1. open":   fmt.Sprint(p),
				"2. high":   fmt.Sprint(p + 2),
				"3. low":    fmt.Sprint(p - 2),
				"4. close":  fmt.Sprint(p + 1),
				"6. volume": "1000",
			},
		}
	}
	return table
}

func newTestRefresher(f *scriptedFetcher, auto bool) (*Refresher, *recordingPublisher, *fakeClock) {
	pub := &recordingPublisher{}
	clock := &fakeClock{}
	r := New(f, pub, Options{Interval: time.Second, AutoRefresh: auto, AfterFunc: clock.AfterFunc})
	return r, pub, clock
}

func waitForState(t *testing.T, r *Refresher, want State) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := r.Status()
		if st.State == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last status %+v", want, st)
		}
		time.Sleep(time.Millisecond)
	}
}

// --- tests ---

func TestRefresher_PublishesAndArmsTimer(t *testing.T) {
	f := newScriptedFetcher(false)
	r, pub, clock := newTestRefresher(f, true)
	defer r.Close()

	if err := r.SetActiveSymbol(" aapl "); err != nil {
		t.Fatalf("SetActiveSymbol: %v", err)
	}
	c := f.next(t)
	if c.symbol != "AAPL" {
		t.Errorf("fetch symbol = %q, want AAPL", c.symbol)
	}
	if st := r.Status(); st.State != Loading || st.Message != "Loading AAPL" {
		t.Errorf("unexpected in-flight status %+v", st)
	}
	c.resp <- fetchResult{raw: rawTable(60, 100)}

	st := waitForState(t, r, Published)
	if st.Candles != 60 || st.Message != "Loaded AAPL (60 days)" {
		t.Errorf("unexpected status %+v", st)
	}
	if got := pub.symbols(); len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("published %v", got)
	}
	snap := pub.snaps[0]
	if len(snap.SMA20) != 60 || len(snap.SMA50) != 60 || len(snap.RSI14) != 60 || len(snap.MACD.Signal) != 60 {
		t.Error("indicators not aligned to the series")
	}
	if snap.CycleID == "" {
		t.Error("missing cycle id")
	}
	if n := len(clock.pending()); n != 1 {
		t.Errorf("expected one pending timer, got %d", n)
	}

	// The timer starts the next cycle on the same symbol.
	clock.fire(clock.pending()[0])
	c = f.next(t)
	if c.symbol != "AAPL" {
		t.Errorf("timer cycle fetched %q", c.symbol)
	}
	c.resp <- fetchResult{raw: rawTable(61, 100)}
	deadline := time.Now().Add(2 * time.Second)
	for len(pub.symbols()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("second snapshot never published")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRefresher_SymbolSwitchDropsStaleResult(t *testing.T) {
	f := newScriptedFetcher(true)
	r, pub, _ := newTestRefresher(f, true)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	aapl := f.next(t)

	r.SetActiveSymbol("MSFT")
	// The MSFT retrieval must not start while AAPL is still outstanding.
	f.expectNoCall(t)

	aapl.resp <- fetchResult{raw: rawTable(30, 190)}
	msft := f.next(t)
	if msft.symbol != "MSFT" {
		t.Fatalf("second fetch symbol = %q", msft.symbol)
	}
	msft.resp <- fetchResult{raw: rawTable(30, 410)}

	st := waitForState(t, r, Published)
	if st.Symbol != "MSFT" {
		t.Errorf("status symbol = %q", st.Symbol)
	}
	if got := pub.symbols(); len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("published %v, want only MSFT", got)
	}
}

func TestRefresher_SymbolSwitchCancelsFetch(t *testing.T) {
	f := newScriptedFetcher(false)
	r, pub, _ := newTestRefresher(f, false)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t)
	r.SetActiveSymbol("MSFT")

	// The cancelled AAPL fetch returns on its own; MSFT starts without an AAPL answer.
	msft := f.next(t)
	msft.resp <- fetchResult{raw: rawTable(30, 410)}
	waitForState(t, r, Published)
	if got := pub.symbols(); len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("published %v, want only MSFT", got)
	}
}

func TestRefresher_DataSourceErrorKeepsSnapshot(t *testing.T) {
	f := newScriptedFetcher(false)
	r, pub, clock := newTestRefresher(f, true)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t).resp <- fetchResult{raw: rawTable(30, 100)}
	waitForState(t, r, Published)

	first := clock.pending()[0]
	clock.fire(first)
	f.next(t).resp <- fetchResult{err: fmt.Errorf("%w: rate limited", model.ErrDataSource)}

	st := waitForState(t, r, Failed)
	if !strings.Contains(st.LastError, "rate limited") || !strings.HasPrefix(st.Message, "Error: ") {
		t.Errorf("unexpected status %+v", st)
	}
	if got := pub.symbols(); len(got) != 1 {
		t.Errorf("failed cycle changed published snapshots: %v", got)
	}
	pending := clock.pending()
	if len(pending) != 1 || pending[0] == first {
		t.Errorf("expected exactly one fresh retry timer, got %d", len(pending))
	}
}

func TestRefresher_UnwrappedFetchErrorIsDataSourceError(t *testing.T) {
	f := newScriptedFetcher(false)
	r, _, _ := newTestRefresher(f, false)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t).resp <- fetchResult{err: errors.New("connection reset")}
	st := waitForState(t, r, Failed)
	if !strings.Contains(st.LastError, model.ErrDataSource.Error()) {
		t.Errorf("expected data source error, got %q", st.LastError)
	}
}

func TestRefresher_MalformedDataNotPublished(t *testing.T) {
	f := newScriptedFetcher(false)
	r, pub, _ := newTestRefresher(f, false)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t).resp <- fetchResult{raw: model.RawTable{}}
	st := waitForState(t, r, Failed)
	if !strings.Contains(st.LastError, model.ErrMalformedData.Error()) {
		t.Errorf("expected malformed data error, got %q", st.LastError)
	}
	if len(pub.symbols()) != 0 {
		t.Error("malformed cycle published a snapshot")
	}
}

func TestRefresher_AutoRefreshToggle(t *testing.T) {
	f := newScriptedFetcher(false)
	r, _, clock := newTestRefresher(f, false)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t).resp <- fetchResult{raw: rawTable(30, 100)}
	waitForState(t, r, Published)
	if n := len(clock.pending()); n != 0 {
		t.Fatalf("auto-refresh off but %d timers armed", n)
	}

	r.SetAutoRefresh(true)
	if n := len(clock.pending()); n != 1 {
		t.Fatalf("enabling auto-refresh armed %d timers", n)
	}
	r.SetAutoRefresh(true)
	if n := len(clock.pending()); n != 1 {
		t.Fatalf("re-enabling armed a duplicate timer (%d)", n)
	}

	armed := clock.pending()[0]
	r.SetAutoRefresh(false)
	if n := len(clock.pending()); n != 0 {
		t.Errorf("disabling left %d timers", n)
	}
	// A callback that lost the race with Stop must not start a cycle.
	clock.fire(armed)
	f.expectNoCall(t)
}

func TestRefresher_StaleTimerIgnoredAfterSwitch(t *testing.T) {
	f := newScriptedFetcher(false)
	r, _, clock := newTestRefresher(f, true)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t).resp <- fetchResult{raw: rawTable(30, 100)}
	waitForState(t, r, Published)
	old := clock.pending()[0]

	r.SetActiveSymbol("MSFT")
	msft := f.next(t)
	clock.fire(old)
	f.expectNoCall(t)

	msft.resp <- fetchResult{raw: rawTable(30, 400)}
	waitForState(t, r, Published)
	if n := len(clock.pending()); n != 1 {
		t.Errorf("expected one pending timer, got %d", n)
	}
}

func TestRefresher_Stop(t *testing.T) {
	f := newScriptedFetcher(false)
	r, pub, clock := newTestRefresher(f, true)
	defer r.Close()

	r.SetActiveSymbol("AAPL")
	f.next(t).resp <- fetchResult{raw: rawTable(30, 100)}
	waitForState(t, r, Published)

	r.Stop()
	st := r.Status()
	if st.State != Idle || st.Symbol != "" || st.Message != "Idle" {
		t.Errorf("unexpected status after Stop: %+v", st)
	}
	if n := len(clock.pending()); n != 0 {
		t.Errorf("Stop left %d timers", n)
	}
	if len(pub.symbols()) != 1 {
		t.Error("Stop should not touch the published snapshot")
	}
}

func TestRefresher_InvalidSymbol(t *testing.T) {
	r, _, _ := newTestRefresher(newScriptedFetcher(false), true)
	defer r.Close()
	if err := r.SetActiveSymbol("   "); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if st := r.Status(); st.State != Idle {
		t.Errorf("rejected symbol changed state to %s", st.State)
	}
}

func TestRefresher_Close(t *testing.T) {
	f := newScriptedFetcher(false)
	r, pub, _ := newTestRefresher(f, true)

	r.SetActiveSymbol("AAPL")
	f.next(t)

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the in-flight fetch")
	}

	if err := r.SetActiveSymbol("MSFT"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if len(pub.symbols()) != 0 {
		t.Error("cancelled fetch published a snapshot")
	}
	r.Close()
}

func TestBuildSnapshot(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap, err := BuildSnapshot("AAPL", rawTable(60, 100), at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Symbol != "AAPL" || !snap.FetchedAt.Equal(at) || len(snap.Series) != 60 {
		t.Errorf("unexpected snapshot header %+v", snap.Summary)
	}
	if snap.SMA20[18].Valid || !snap.SMA20[19].Valid {
		t.Error("SMA20 warm-up misaligned")
	}
	if snap.SMA50[48].Valid || !snap.SMA50[49].Valid {
		t.Error("SMA50 warm-up misaligned")
	}
	if snap.Summary.Points != 60 {
		t.Errorf("summary points = %d", snap.Summary.Points)
	}

	if _, err := BuildSnapshot("AAPL", nil, at); !errors.Is(err, model.ErrMalformedData) {
		t.Errorf("expected ErrMalformedData, got %v", err)
	}
}
