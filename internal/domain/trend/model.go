package trend

import (
	"time"

	"mediapulse/internal/domain/feed"
)

// TrendingTopic is a scored trend candidate that passed the admission
// filter. It is recomputed on every analysis run and never persisted on its
// own; a bounded list of them is embedded in the period snapshot.
type TrendingTopic struct {
	Token              string         `json:"topic_token"`
	MentionCount       int            `json:"mention_count"`
	GrowthPct          float64        `json:"growth_pct"`
	Velocity           float64        `json:"velocity"`
	AvgSentiment       float64        `json:"avg_sentiment"`
	DominantEmotions   []feed.Emotion `json:"dominant_emotions"`
	RelatedDocumentIDs []string       `json:"related_document_ids"`
	ViralProbability   float64        `json:"viral_probability"`
	ComputedAt         time.Time      `json:"computed_at"`
}

// CollectiveSignalSnapshot summarizes the collective sentiment of one
// reporting period. Created fresh per run, never mutated afterwards.
type CollectiveSignalSnapshot struct {
	PeriodLabel         string                   `json:"period_label"`
	EmotionDistribution map[feed.Emotion]float64 `json:"emotion_distribution"`
	DominantPolarity    feed.Polarity            `json:"dominant_polarity"`
	TopTrending         []TrendingTopic          `json:"top_trending"`
	SocialTensionScore  float64                  `json:"social_tension_score"`
	ConflictIndicators  []string                 `json:"conflict_indicators"`
	GeneratedAt         time.Time                `json:"generated_at"`
}
