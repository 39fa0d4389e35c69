package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapulse/internal/domain/feed"
)

type stubCounterStore struct {
	priors  map[string]int
	getErr  error
	written map[string]int
	ttls    map[string]time.Duration
}

func newStubCounterStore(priors map[string]int) *stubCounterStore {
	return &stubCounterStore{
		priors:  priors,
		written: make(map[string]int),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *stubCounterStore) Get(_ context.Context, token, _ string) (int, error) {
	if s.getErr != nil {
		return 0, s.getErr
	}
	return s.priors[token], nil
}

func (s *stubCounterStore) SetWithTTL(_ context.Context, token, _ string, count int, ttl time.Duration) error {
	s.written[token] = count
	s.ttls[token] = ttl
	return nil
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// docsMentioning builds n documents that all carry the topic token and
// mention it in the title, each with the given sentiment score.
func docsMentioning(token string, n int, score float64) []feed.Document {
	polarity := feed.PolarityNeutral
	if score > 0 {
		polarity = feed.PolarityPositive
	} else if score < 0 {
		polarity = feed.PolarityNegative
	}

	docs := make([]feed.Document, n)
	for i := range docs {
		docs[i] = feed.Document{
			ID:                fmt.Sprintf("%s-%d", token, i),
			Title:             "Se agrava el " + token + " nacional",
			Body:              "Cobertura del " + token + " en todo el país.",
			Topics:            []string{token},
			SentimentPolarity: polarity,
			SentimentScore:    score,
		}
	}
	return docs
}

func TestTrackerScoresGrowingTopic(t *testing.T) {
	store := newStubCounterStore(map[string]int{"paro": 5})
	tracker := NewTracker(store, DefaultTrackerConfig(), discardLogger())

	batch := docsMentioning("paro", 10, -0.8)
	trends, err := tracker.UpdateAndScore(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, trends, 1)

	got := trends[0]
	assert.Equal(t, "paro", got.Token)
	assert.Equal(t, 10, got.MentionCount)
	assert.InDelta(t, 100.0, got.GrowthPct, 1e-9)
	assert.InDelta(t, 10.0/24.0, got.Velocity, 1e-9)
	assert.InDelta(t, -0.8, got.AvgSentiment, 1e-9)
	assert.Len(t, got.RelatedDocumentIDs, 10)
	assert.GreaterOrEqual(t, got.ViralProbability, 0.0)
	assert.LessOrEqual(t, got.ViralProbability, 1.0)

	// Current count written back as the next window's prior.
	assert.Equal(t, 10, store.written["paro"])
	assert.Equal(t, 24*time.Hour, store.ttls["paro"])
}

func TestTrackerNewTopicGrowth(t *testing.T) {
	tests := []struct {
		name       string
		mentions   int
		wantGrowth float64
	}{
		{"above threshold spikes to 100", 6, 100},
		{"at or below threshold stays flat", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubCounterStore(nil)
			tracker := NewTracker(store, DefaultTrackerConfig(), discardLogger())

			batch := docsMentioning("tarifazo", tt.mentions, 0)
			trends, err := tracker.UpdateAndScore(context.Background(), batch)
			require.NoError(t, err)

			if tt.wantGrowth > 0 {
				require.Len(t, trends, 1)
				assert.InDelta(t, tt.wantGrowth, trends[0].GrowthPct, 1e-9)
			} else {
				assert.Empty(t, trends)
			}

			// Counters update for every candidate, admitted or not.
			assert.Equal(t, tt.mentions, store.written["tarifazo"])
		})
	}
}

func TestTrackerAdmissionFilter(t *testing.T) {
	// "lenta" grows 20% with low volume: neither threshold is crossed.
	// "fuerte" grows 60%: admitted on growth alone.
	store := newStubCounterStore(map[string]int{"lenta": 10, "fuerte": 10})
	tracker := NewTracker(store, DefaultTrackerConfig(), discardLogger())

	batch := append(docsMentioning("lenta", 12, 0), docsMentioning("fuerte", 16, 0)...)
	trends, err := tracker.UpdateAndScore(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, trends, 1)
	assert.Equal(t, "fuerte", trends[0].Token)
	assert.InDelta(t, 60.0, trends[0].GrowthPct, 1e-9)

	// The filtered candidate still refreshed its counter.
	assert.Equal(t, 12, store.written["lenta"])
}

func TestTrackerOrdersByViralProbability(t *testing.T) {
	store := newStubCounterStore(map[string]int{"alpha": 5, "beta": 3})
	tracker := NewTracker(store, DefaultTrackerConfig(), discardLogger())

	batch := append(docsMentioning("alpha", 20, 0), docsMentioning("beta", 7, 0)...)
	trends, err := tracker.UpdateAndScore(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, trends, 2)

	assert.Equal(t, "alpha", trends[0].Token)
	assert.Equal(t, "beta", trends[1].Token)
	assert.GreaterOrEqual(t, trends[0].ViralProbability, trends[1].ViralProbability)
}

func TestTrackerEmptyBatch(t *testing.T) {
	tracker := NewTracker(newStubCounterStore(nil), DefaultTrackerConfig(), discardLogger())

	trends, err := tracker.UpdateAndScore(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, trends)
}

func TestTrackerDegradesOnCounterReadFailure(t *testing.T) {
	store := newStubCounterStore(map[string]int{"paro": 50})
	store.getErr = errors.New("connection refused")
	tracker := NewTracker(store, DefaultTrackerConfig(), discardLogger())

	// With the store unreadable the prior degrades to 0, so 6 mentions
	// score as a fresh spike instead of failing the run.
	batch := docsMentioning("paro", 6, 0)
	trends, err := tracker.UpdateAndScore(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.InDelta(t, 100.0, trends[0].GrowthPct, 1e-9)
}

func TestTrackerDominantEmotions(t *testing.T) {
	store := newStubCounterStore(nil)
	tracker := NewTracker(store, DefaultTrackerConfig(), discardLogger())

	batch := docsMentioning("crisis", 6, 0)
	for i := range batch {
		batch[i].EmotionScores = map[feed.Emotion]float64{
			feed.EmotionAnger:    0.9,
			feed.EmotionFear:     0.7,
			feed.EmotionSadness:  0.5,
			feed.EmotionJoy:      0.1,
			feed.EmotionSurprise: 0.05,
		}
	}

	trends, err := tracker.UpdateAndScore(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, trends, 1)

	assert.Equal(t, []feed.Emotion{
		feed.EmotionAnger,
		feed.EmotionFear,
		feed.EmotionSadness,
	}, trends[0].DominantEmotions)
}
