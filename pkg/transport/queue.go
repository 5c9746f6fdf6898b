package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresQueue hands submissions to an out-of-process worker through a
// Postgres table and polls for the reference the worker writes back. A
// submission that outlives the polling window still completes; the user just
// sees UnknownReference.
type PostgresQueue struct {
	pool         *pgxpool.Pool
	logger       *zap.Logger
	pollInterval time.Duration
	pollWindow   time.Duration
}

// QueueOption configures a PostgresQueue.
type QueueOption func(*PostgresQueue)

// WithQueueLogger attaches a logger.
func WithQueueLogger(logger *zap.Logger) QueueOption {
	return func(q *PostgresQueue) {
		q.logger = logger
	}
}

// WithQueuePolling tunes how long and how often Enqueue waits for the
// worker's reference.
func WithQueuePolling(interval, window time.Duration) QueueOption {
	return func(q *PostgresQueue) {
		q.pollInterval = interval
		q.pollWindow = window
	}
}

// NewPostgresQueue connects to the queue database.
func NewPostgresQueue(ctx context.Context, databaseURL string, opts ...QueueOption) (*PostgresQueue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: connect queue: %w", err)
	}

	q := &PostgresQueue{
		pool:         pool,
		logger:       zap.NewNop(),
		pollInterval: 500 * time.Millisecond,
		pollWindow:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Close releases the connection pool.
func (q *PostgresQueue) Close() {
	q.pool.Close()
}

// Enqueue inserts a submission job and polls briefly for the worker's return
// reference. When the window expires the job stays queued and
// UnknownReference is returned.
func (q *PostgresQueue) Enqueue(ctx context.Context, payload any, url string, allowRetry bool) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("transport: encode queue payload: %w", err)
	}

	var id int64
	err = q.pool.QueryRow(ctx,
		`INSERT INTO submissions (data, webhook_url, allow_retry, created_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING id`,
		data, url, allowRetry,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("transport: enqueue submission: %w", err)
	}
	q.logger.Info("submission enqueued", zap.Int64("id", id), zap.String("url", url))

	deadline := time.NewTimer(q.pollWindow)
	defer deadline.Stop()
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return UnknownReference, ctx.Err()
		case <-deadline.C:
			q.logger.Warn("no reference within polling window", zap.Int64("id", id))
			return UnknownReference, nil
		case <-ticker.C:
			ref, err := q.reference(ctx, id)
			if err != nil {
				return "", err
			}
			if ref != "" {
				return ref, nil
			}
		}
	}
}

func (q *PostgresQueue) reference(ctx context.Context, id int64) (string, error) {
	var ref *string
	err := q.pool.QueryRow(ctx,
		`SELECT return_reference FROM submissions WHERE id = $1`, id,
	).Scan(&ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("transport: submission %d vanished from queue", id)
	}
	if err != nil {
		return "", fmt.Errorf("transport: poll submission %d: %w", id, err)
	}
	if ref == nil {
		return "", nil
	}
	return *ref, nil
}
