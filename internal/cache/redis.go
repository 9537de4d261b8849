// Package cache mirrors published snapshots into Redis for out-of-process readers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/model"
)

// RedisSink is a render handle that stores every published snapshot under a per-symbol key
// and announces it on a pub/sub channel. Update only hands the snapshot to a writer goroutine;
// when writes fall behind, only the newest pending snapshot is kept.
type RedisSink struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger

	pending   chan *model.Snapshot
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisSink connects to Redis, verifies the connection and starts the writer.
func NewRedisSink(addr, password string, db int, prefix string, ttl time.Duration) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisSink(client, prefix, ttl, 5*time.Second), nil
}

func newRedisSink(client *redis.Client, prefix string, ttl, timeout time.Duration) *RedisSink {
	s := &RedisSink{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		timeout: timeout,
		logger:  log.With().Str("component", "redis").Logger(),
		pending: make(chan *model.Snapshot, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *RedisSink) snapshotKey(symbol string) string {
	return fmt.Sprintf("%s:snapshot:%s", s.prefix, symbol)
}

func (s *RedisSink) latestKey() string { return s.prefix + ":latest" }

// Channel is the pub/sub channel every snapshot is published on.
func (s *RedisSink) Channel() string { return s.prefix + ":snapshots" }

// Update queues snap for writing, replacing any snapshot still waiting. It never blocks on Redis.
func (s *RedisSink) Update(snap *model.Snapshot) error {
	for {
		select {
		case s.pending <- snap:
			return nil
		default:
		}
		select {
		case old := <-s.pending:
			s.logger.Debug().Str("symbol", old.Symbol).Msg("redis writer behind, replacing pending snapshot")
		default:
		}
	}
}

func (s *RedisSink) run() {
	defer close(s.done)
	for {
		select {
		case snap := <-s.pending:
			s.write(snap)
		case <-s.stop:
			// Flush what was queued before Close.
			select {
			case snap := <-s.pending:
				s.write(snap)
			default:
			}
			return
		}
	}
}

// write stores the snapshot, the latest-symbol pointer and the announcement in one pipeline.
func (s *RedisSink) write(snap *model.Snapshot) {
	if err := s.writeSnapshot(snap); err != nil {
		s.logger.Warn().Err(err).Str("symbol", snap.Symbol).Msg("redis write failed")
	}
}

func (s *RedisSink) writeSnapshot(snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.snapshotKey(snap.Symbol), data, s.ttl)
		pipe.Set(ctx, s.latestKey(), snap.Symbol, s.ttl)
		pipe.Publish(ctx, s.Channel(), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to redis: %w", err)
	}
	return nil
}

// Close flushes the pending snapshot, stops the writer and closes the client.
func (s *RedisSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.client.Close()
	})
	return err
}
