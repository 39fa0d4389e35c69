package monitor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	counterstore "mediapulse/internal/adapter/counter"
	vectorstore "mediapulse/internal/adapter/vector"
	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/signal"
	"mediapulse/internal/domain/trend"
	"mediapulse/internal/domain/vector"
	"mediapulse/internal/service/analysis"
)

// fakePorts serves all four extraction ports with deterministic output so a
// full run can execute without the inference sidecar.
type fakePorts struct {
	failEmbed bool
}

func (f *fakePorts) ClassifySentiment(context.Context, string) (feed.Polarity, float64, error) {
	return feed.PolarityNegative, -0.6, nil
}

func (f *fakePorts) ClassifyEmotions(context.Context, string) (map[feed.Emotion]float64, error) {
	return map[feed.Emotion]float64{feed.EmotionAnger: 0.7}, nil
}

func (f *fakePorts) ExtractTopics(context.Context, string) ([]string, error) {
	return []string{"paro"}, nil
}

func (f *fakePorts) Embed(context.Context, string) ([]float32, error) {
	if f.failEmbed {
		return nil, signal.ErrExtractionUnavailable
	}
	v := make([]float32, feed.EmbeddingDim)
	v[0] = 1
	return v, nil
}

func newTestService(ports *fakePorts) (*Service, *vectorstore.MemoryStore) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := vectorstore.NewMemoryStore()
	enricher := analysis.NewEnricher(ports, ports, ports, ports, log)
	tracker := analysis.NewTracker(counterstore.NewMemoryStore(), analysis.DefaultTrackerConfig(), log)
	aggregator := analysis.NewAggregator(analysis.DefaultAggregatorConfig())

	service := NewService(enricher, tracker, aggregator, store, ports, nil, nil, Config{
		PeriodLabel: "24h",
		EventsTopic: "media",
	}, log)
	return service, store
}

func testBatch(n int) []feed.Document {
	batch := make([]feed.Document, n)
	for i := range batch {
		batch[i] = feed.Document{
			ID:    string(rune('a' + i)),
			Title: "Paro general en la capital",
			Body:  "Los gremios confirmaron el paro.",
		}
	}
	return batch
}

func TestAnalyzeRejectsInvalidBatch(t *testing.T) {
	service, _ := newTestService(&fakePorts{})

	batch := []feed.Document{
		{ID: "ok", Body: "texto"},
		{ID: "bad", Body: "   "},
	}

	_, err := service.Analyze(context.Background(), batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "bad")

	// A rejected batch leaves no cached results behind.
	assert.Empty(t, service.Trends())
	assert.Nil(t, service.Snapshot())
}

func TestAnalyzeFullRun(t *testing.T) {
	service, store := newTestService(&fakePorts{})

	report, err := service.Analyze(context.Background(), testBatch(8))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 8, report.Documents)
	assert.Empty(t, report.SkippedUpsert)
	assert.Empty(t, report.FailedUpsert)

	// 8 mentions of a fresh topic clear the new-topic threshold.
	require.Len(t, report.Trends, 1)
	assert.Equal(t, "paro", report.Trends[0].Token)
	assert.InDelta(t, 100.0, report.Trends[0].GrowthPct, 1e-9)

	assert.Equal(t, feed.PolarityNegative, report.Snapshot.DominantPolarity)
	assert.Greater(t, report.Snapshot.SocialTensionScore, 0.0)

	// The run's results are retained for the read endpoints.
	assert.Len(t, service.Trends(), 1)
	require.NotNil(t, service.Snapshot())
	assert.Equal(t, "24h", service.Snapshot().PeriodLabel)

	// Every embedded document landed in the vector store.
	embedding := make([]float32, feed.EmbeddingDim)
	embedding[0] = 1
	matches, err := store.Query(context.Background(), embedding, 20, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 8)
}

func TestAnalyzeSkipsDocumentsWithoutEmbedding(t *testing.T) {
	service, store := newTestService(&fakePorts{failEmbed: true})

	report, err := service.Analyze(context.Background(), testBatch(3))
	require.NoError(t, err)

	// Embedding failures degrade to skipped upserts, not a failed run.
	assert.Len(t, report.SkippedUpsert, 3)
	assert.Empty(t, report.FailedUpsert)

	embedding := make([]float32, feed.EmbeddingDim)
	embedding[0] = 1
	matches, err := store.Query(context.Background(), embedding, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAnalyzeInvokesTrendHandlers(t *testing.T) {
	service, _ := newTestService(&fakePorts{})

	var seen []string
	service.RegisterTrendHandler(func(topic trend.TrendingTopic) error {
		seen = append(seen, topic.Token)
		return nil
	})

	_, err := service.Analyze(context.Background(), testBatch(8))
	require.NoError(t, err)
	assert.Equal(t, []string{"paro"}, seen)
}

func TestSearchAppliesDefaultTopK(t *testing.T) {
	service, store := newTestService(&fakePorts{})

	embedding := make([]float32, feed.EmbeddingDim)
	embedding[0] = 1
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Upsert(context.Background(), vector.Record{ID: id, Embedding: embedding}))
	}

	matches, err := service.Search(context.Background(), "paro", 0, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = service.Search(context.Background(), "paro", 2, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

// contextRecordingStore captures the context of every upsert and, at call
// time, whether the previous upsert's context has been released yet.
type contextRecordingStore struct {
	lastCtx       context.Context
	priorReleased []bool
}

func (s *contextRecordingStore) Upsert(ctx context.Context, _ vector.Record) error {
	if s.lastCtx != nil {
		s.priorReleased = append(s.priorReleased, s.lastCtx.Err() != nil)
	}
	s.lastCtx = ctx
	return nil
}

func (s *contextRecordingStore) Query(context.Context, []float32, int, []string) ([]vector.Match, error) {
	return nil, nil
}

func TestPersistBatchReleasesUpsertContexts(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	ports := &fakePorts{}
	store := &contextRecordingStore{}
	enricher := analysis.NewEnricher(ports, ports, ports, ports, log)
	tracker := analysis.NewTracker(counterstore.NewMemoryStore(), analysis.DefaultTrackerConfig(), log)
	aggregator := analysis.NewAggregator(analysis.DefaultAggregatorConfig())

	service := NewService(enricher, tracker, aggregator, store, ports, nil, nil, Config{
		PeriodLabel:    "24h",
		EventsTopic:    "media",
		UpsertDeadline: time.Minute,
	}, log)

	report, err := service.Analyze(context.Background(), testBatch(5))
	require.NoError(t, err)
	assert.Empty(t, report.FailedUpsert)

	// Each per-document deadline context must be released before the next
	// upsert begins, not held until the whole batch completes.
	require.Len(t, store.priorReleased, 4)
	for i, released := range store.priorReleased {
		assert.True(t, released, "upsert context %d still live when upsert %d started", i, i+1)
	}
}

func TestSnapshotNilBeforeFirstRun(t *testing.T) {
	service, _ := newTestService(&fakePorts{})

	assert.Nil(t, service.Snapshot())
	assert.Empty(t, service.Trends())
}
