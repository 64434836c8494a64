// Package pgstats implements internal/collab.StatisticsSink on top of
// PostgreSQL via pgx, batching writes the way a high-throughput usage
// backend should.
package pgstats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaymux/gateway/internal/collab"
	"github.com/relaymux/gateway/internal/logging"
)

const (
	defaultBatchSize         = 100
	defaultFlushInterval     = 5 * time.Second
	defaultChannelBufferSize = 1000
)

// Sink is a batched, asynchronous StatisticsSink backed by a Postgres
// table. Record() never blocks the request path; it enqueues onto a
// buffered channel drained by a background writer.
type Sink struct {
	pool        *pgxpool.Pool
	recordChan  chan collab.UsageRecord
	flushTicker *time.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	batchSize   int
}

// New connects to Postgres, ensures the schema exists, and returns a Sink
// ready to Start().
func New(ctx context.Context, dsn string) (*Sink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgstats: dsn is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstats: connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstats: ping: %w", err)
	}
	if err := ensureSchema(connectCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstats: schema: %w", err)
	}

	return &Sink{
		pool:        pool,
		recordChan:  make(chan collab.UsageRecord, defaultChannelBufferSize),
		flushTicker: time.NewTicker(defaultFlushInterval),
		stopChan:    make(chan struct{}),
		batchSize:   defaultBatchSize,
	}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS usage_records (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			provider_id BIGINT NOT NULL,
			model TEXT NOT NULL,
			tokens_in BIGINT NOT NULL DEFAULT 0,
			tokens_out BIGINT NOT NULL DEFAULT 0,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_usage_records_provider_model ON usage_records(provider_id, model);
	`)
	return err
}

// Start launches the background write loop.
func (s *Sink) Start() {
	s.wg.Add(1)
	go s.writeLoop()
}

// Stop drains pending records and closes the connection pool.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.flushTicker.Stop()
		s.wg.Wait()
		s.pool.Close()
	})
}

// Record enqueues a usage record. It is non-blocking: a full channel drops
// the record with a logged warning rather than stalling the request path.
func (s *Sink) Record(_ context.Context, rec collab.UsageRecord) error {
	select {
	case s.recordChan <- rec:
	default:
		logging.Warnf("pgstats: queue full, dropping usage record for provider %d model %s", rec.ProviderID, rec.Model)
	}
	return nil
}

var _ collab.StatisticsSink = (*Sink)(nil)

func (s *Sink) writeLoop() {
	defer s.wg.Done()

	batch := make([]collab.UsageRecord, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.writeBatch(ctx, batch); err != nil {
			logging.Errorf("pgstats: write batch failed: %v", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.recordChan:
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-s.flushTicker.C:
			flush()
		case <-s.stopChan:
			for {
				select {
				case rec := <-s.recordChan:
					batch = append(batch, rec)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Sink) writeBatch(ctx context.Context, records []collab.UsageRecord) error {
	columns := []string{"user_id", "provider_id", "model", "tokens_in", "tokens_out", "latency_ms", "outcome"}
	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"usage_records"},
		columns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.UserID, r.ProviderID, r.Model, r.TokensIn, r.TokensOut, r.Latency.Milliseconds(), string(r.Outcome)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("pgstats: copy records: %w", err)
	}
	return nil
}
