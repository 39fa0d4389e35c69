package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/trend"
)

func TestSummarizeEmptyBatch(t *testing.T) {
	aggregator := NewAggregator(DefaultAggregatorConfig())

	snapshot := aggregator.Summarize(nil, nil, "24h")

	assert.Equal(t, "24h", snapshot.PeriodLabel)
	assert.Empty(t, snapshot.EmotionDistribution)
	assert.Equal(t, feed.PolarityNeutral, snapshot.DominantPolarity)
	assert.Zero(t, snapshot.SocialTensionScore)
	assert.NotNil(t, snapshot.ConflictIndicators)
	assert.Empty(t, snapshot.ConflictIndicators)
	assert.False(t, snapshot.GeneratedAt.IsZero())
}

func TestEmotionDistributionIgnoresNonReporters(t *testing.T) {
	batch := []feed.Document{
		{ID: "a", Body: "x", EmotionScores: map[feed.Emotion]float64{feed.EmotionAnger: 0.8}},
		{ID: "b", Body: "x"},
		{ID: "c", Body: "x", EmotionScores: map[feed.Emotion]float64{feed.EmotionAnger: 0.4, feed.EmotionJoy: 0.6}},
	}

	distribution := emotionDistribution(batch)

	// Means are taken over reporting documents only; absence is not zero.
	require.Len(t, distribution, 2)
	assert.InDelta(t, 0.6, distribution[feed.EmotionAnger], 1e-9)
	assert.InDelta(t, 0.6, distribution[feed.EmotionJoy], 1e-9)
}

func TestDominantPolarity(t *testing.T) {
	tests := []struct {
		name       string
		polarities []feed.Polarity
		want       feed.Polarity
	}{
		{"clear majority", []feed.Polarity{feed.PolarityNegative, feed.PolarityNegative, feed.PolarityPositive}, feed.PolarityNegative},
		{"tie prefers positive", []feed.Polarity{feed.PolarityPositive, feed.PolarityNegative}, feed.PolarityPositive},
		{"unextracted counts as neutral", []feed.Polarity{"", "", feed.PolarityPositive}, feed.PolarityNeutral},
		{"empty batch is neutral", nil, feed.PolarityNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := make([]feed.Document, len(tt.polarities))
			for i, p := range tt.polarities {
				batch[i] = feed.Document{SentimentPolarity: p}
			}
			assert.Equal(t, tt.want, dominantPolarity(batch))
		})
	}
}

func TestSocialTensionFormula(t *testing.T) {
	aggregator := NewAggregator(DefaultAggregatorConfig())

	batch := []feed.Document{
		{SentimentPolarity: feed.PolarityNegative, EmotionScores: map[feed.Emotion]float64{feed.EmotionAnger: 0.5}},
		{SentimentPolarity: feed.PolarityNegative, EmotionScores: map[feed.Emotion]float64{feed.EmotionFear: 0.5}},
		{SentimentPolarity: feed.PolarityPositive},
		{SentimentPolarity: feed.PolarityPositive},
	}
	trends := []trend.TrendingTopic{{Token: "paro", GrowthPct: 150}}

	// negative ratio 0.5, mean negative intensity 0.25, explosive ratio 1.
	got := aggregator.socialTension(batch, trends)
	assert.InDelta(t, 57.5, got, 1e-9)
}

func TestSocialTensionIgnoresPositiveEmotions(t *testing.T) {
	aggregator := NewAggregator(DefaultAggregatorConfig())

	batch := []feed.Document{
		{SentimentPolarity: feed.PolarityPositive, EmotionScores: map[feed.Emotion]float64{feed.EmotionJoy: 1.0}},
		{SentimentPolarity: feed.PolarityPositive, EmotionScores: map[feed.Emotion]float64{feed.EmotionSurprise: 1.0}},
	}

	assert.Zero(t, aggregator.socialTension(batch, nil))
}

func TestSocialTensionStaysInRange(t *testing.T) {
	aggregator := NewAggregator(DefaultAggregatorConfig())

	batch := []feed.Document{
		{SentimentPolarity: feed.PolarityNegative, EmotionScores: map[feed.Emotion]float64{
			feed.EmotionAnger:   1.0,
			feed.EmotionFear:    1.0,
			feed.EmotionSadness: 1.0,
			feed.EmotionDisgust: 1.0,
		}},
	}
	trends := []trend.TrendingTopic{{Token: "crisis", GrowthPct: 500}}

	got := aggregator.socialTension(batch, trends)
	assert.LessOrEqual(t, got, 100.0)
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestConflictIndicators(t *testing.T) {
	aggregator := NewAggregator(DefaultAggregatorConfig())

	batch := []feed.Document{
		{Title: "Crisis energética en el norte", Body: "x"},
		{Title: "Nueva protesta frente al congreso", Body: "x"},
		{Title: "Resultados del torneo local", Body: "x"},
		{Title: "Avances en la obra pública", Body: "x"},
	}
	trends := []trend.TrendingTopic{
		{Token: "paro_docente", MentionCount: 12, GrowthPct: 120},
		{Token: "elecciones", MentionCount: 30, GrowthPct: 10},
	}

	indicators := aggregator.conflictIndicators(batch, trends)

	require.Len(t, indicators, 2)
	assert.Equal(t, "trending: paro_docente (12 mentions, +120%)", indicators[0])
	assert.Equal(t, "2 of 4 headlines mention conflict terms (50.0%)", indicators[1])
}

func TestConflictIndicatorsBelowHeadlineThreshold(t *testing.T) {
	aggregator := NewAggregator(DefaultAggregatorConfig())

	batch := []feed.Document{
		{Title: "Crisis energética", Body: "x"},
		{Title: "Clima para el fin de semana", Body: "x"},
		{Title: "Agenda cultural", Body: "x"},
		{Title: "Mercados estables", Body: "x"},
		{Title: "Nueva temporada de teatro", Body: "x"},
	}

	// 1 of 5 headlines = 20%, not above the 20% threshold.
	indicators := aggregator.conflictIndicators(batch, nil)
	assert.Empty(t, indicators)
}

func TestSummarizeTruncatesTopTrending(t *testing.T) {
	config := DefaultAggregatorConfig()
	config.TopTrendingLimit = 2
	aggregator := NewAggregator(config)

	trends := []trend.TrendingTopic{
		{Token: "uno"}, {Token: "dos"}, {Token: "tres"},
	}

	snapshot := aggregator.Summarize([]feed.Document{{ID: "a", Body: "x"}}, trends, "24h")
	require.Len(t, snapshot.TopTrending, 2)
	assert.Equal(t, "uno", snapshot.TopTrending[0].Token)
	assert.Equal(t, "dos", snapshot.TopTrending[1].Token)
}
