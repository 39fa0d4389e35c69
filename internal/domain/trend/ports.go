package trend

import (
	"context"
	"time"

	"mediapulse/internal/domain/feed"
)

// Tracker maintains per-topic mention counters over rolling windows and
// scores trend candidates from a closed document batch.
type Tracker interface {
	// UpdateAndScore counts topic mentions across the batch, compares them
	// against the prior window, writes the current window back, and returns
	// the admitted trending topics ordered by viral probability.
	UpdateAndScore(ctx context.Context, batch []feed.Document) ([]TrendingTopic, error)
}

// Aggregator combines per-document signals into a period-level snapshot.
type Aggregator interface {
	Summarize(batch []feed.Document, trends []TrendingTopic, periodLabel string) CollectiveSignalSnapshot
}

// CounterStore is the window counter state: per-topic mention counts keyed
// by (token, window label) with a TTL equal to the window length. A read of
// an expired or missing key returns 0 with no error. SetWithTTL must be an
// atomic set-with-expiry so overlapping runs cannot leave a key without a
// TTL.
type CounterStore interface {
	Get(ctx context.Context, token, window string) (int, error)
	SetWithTTL(ctx context.Context, token, window string, count int, ttl time.Duration) error
}
