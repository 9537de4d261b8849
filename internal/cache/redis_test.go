package cache

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/redis/go-redis/v9"

	"StockWatch/internal/model"
)

func TestKeys(t *testing.T) {
	s := &RedisSink{prefix: "sw"}
	if got := s.snapshotKey("TCS.BSE"); got != "sw:snapshot:TCS.BSE" {
		t.Errorf("snapshotKey = %q", got)
	}
	if s.latestKey() != "sw:latest" || s.Channel() != "sw:snapshots" {
		t.Errorf("unexpected keys %q %q", s.latestKey(), s.Channel())
	}
}

func TestRedisSink_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	s, err := NewRedisSink(addr, "", 0, "stockwatch-test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisSink: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	sub := s.client.Subscribe(ctx, s.Channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	snap := &model.Snapshot{
		Symbol: "AAPL",
		Series: model.Series{{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 2}},
		SMA20:  model.IndicatorSeries{null.Float{}},
	}
	if err := s.Update(snap); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var data []byte
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err = s.client.Get(ctx, s.snapshotKey("AAPL")).Bytes()
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("snapshot never written: %v", err)
	}
	var got model.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Series) != 1 || got.SMA20[0].Valid {
		t.Errorf("round trip lost data: %+v", got)
	}
	if sym, _ := s.client.Get(ctx, s.latestKey()).Result(); sym != "AAPL" {
		t.Errorf("latest pointer = %q", sym)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != s.Channel() {
			t.Errorf("announced on %q", msg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Error("no pub/sub announcement")
	}
}

// silentServer accepts connections and never answers, so every Redis call runs into its timeout.
func silentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestRedisSink_UpdateDoesNotBlockOnSlowServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:         silentServer(t),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		MaxRetries:   -1,
	})
	s := newRedisSink(client, "sw", time.Minute, 200*time.Millisecond)

	start := time.Now()
	for _, sym := range []string{"AAPL", "MSFT", "TSLA", "GOOGL"} {
		if err := s.Update(&model.Snapshot{Symbol: sym}); err != nil {
			t.Fatalf("Update(%s): %v", sym, err)
		}
	}
	if took := time.Since(start); took > 100*time.Millisecond {
		t.Errorf("Update blocked for %v", took)
	}
	if n := len(s.pending); n > 1 {
		t.Errorf("pending = %d, want at most one queued snapshot", n)
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if err := s.Update(&model.Snapshot{Symbol: "AFTER"}); err != nil {
		t.Errorf("Update after Close: %v", err)
	}
}
