package analysis

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/trend"
)

// TrackerConfig contains configuration for trend tracking.
type TrackerConfig struct {
	// WindowLabel names the rolling window counters are keyed under.
	WindowLabel string

	// WindowHours is the window length; also the velocity divisor.
	WindowHours int

	// MaxCandidates bounds how many top tokens are scored per run.
	MaxCandidates int

	// NewTopicThreshold is the minimum current count for a topic with no
	// prior-window history to be treated as a 100% growth spike.
	NewTopicThreshold int

	// ViralThreshold and GrowthThreshold form the admission filter: a
	// candidate is emitted when viral probability exceeds ViralThreshold
	// OR growth exceeds GrowthThreshold percent.
	ViralThreshold  float64
	GrowthThreshold float64
}

// DefaultTrackerConfig returns the standard 24h window configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		WindowLabel:       "24h",
		WindowHours:       24,
		MaxCandidates:     20,
		NewTopicThreshold: 5,
		ViralThreshold:    0.3,
		GrowthThreshold:   50,
	}
}

// Tracker implements trend.Tracker over a window counter store.
type Tracker struct {
	counters trend.CounterStore
	config   TrackerConfig
	log      *logrus.Logger
	now      func() time.Time
}

// NewTracker creates a new tracker.
func NewTracker(counters trend.CounterStore, config TrackerConfig, log *logrus.Logger) *Tracker {
	return &Tracker{
		counters: counters,
		config:   config,
		log:      log,
		now:      time.Now,
	}
}

// UpdateAndScore counts topic mentions across the batch, scores the top
// candidates against the prior window, refreshes the counter store, and
// returns the admitted trending topics ordered by viral probability
// (ties: mention count descending, then token ascending).
//
// A counter store that cannot be read degrades to prior=0 rather than
// failing the run: trends are still produced from current-window counts.
func (t *Tracker) UpdateAndScore(ctx context.Context, batch []feed.Document) ([]trend.TrendingTopic, error) {
	counts := make(map[string]int)
	for i := range batch {
		for _, token := range batch[i].Topics {
			counts[token]++
		}
	}

	candidates := topCandidates(counts, t.config.MaxCandidates)
	computedAt := t.now()
	ttl := time.Duration(t.config.WindowHours) * time.Hour

	topics := make([]trend.TrendingTopic, 0, len(candidates))
	for _, token := range candidates {
		current := counts[token]

		prior, err := t.counters.Get(ctx, token, t.config.WindowLabel)
		if err != nil {
			t.log.WithError(err).WithField("token", token).
				Warn("counter store read failed, treating prior count as 0")
			prior = 0
		}

		var growth float64
		if prior > 0 {
			growth = float64(current-prior) / float64(prior) * 100
		} else if current > t.config.NewTopicThreshold {
			growth = 100
		}

		velocity := float64(current) / float64(t.config.WindowHours)

		relatedIDs, avgSentiment, dominantEmotions := relateDocuments(batch, token)

		viral := 0.30*clip(float64(current)/100) +
			0.35*clip(growth/200) +
			0.25*clip(velocity/10) +
			0.10*math.Abs(avgSentiment)
		viral = clamp(viral, 0, 1)

		// The current count becomes the next run's prior, whether or not
		// the candidate is admitted.
		if err := t.counters.SetWithTTL(ctx, token, t.config.WindowLabel, current, ttl); err != nil {
			t.log.WithError(err).WithField("token", token).
				Warn("counter store write failed, next run will see no prior count")
		}

		if viral <= t.config.ViralThreshold && growth <= t.config.GrowthThreshold {
			continue
		}

		topics = append(topics, trend.TrendingTopic{
			Token:              token,
			MentionCount:       current,
			GrowthPct:          growth,
			Velocity:           velocity,
			AvgSentiment:       avgSentiment,
			DominantEmotions:   dominantEmotions,
			RelatedDocumentIDs: relatedIDs,
			ViralProbability:   viral,
			ComputedAt:         computedAt,
		})
	}

	sort.Slice(topics, func(i, j int) bool {
		if topics[i].ViralProbability != topics[j].ViralProbability {
			return topics[i].ViralProbability > topics[j].ViralProbability
		}
		if topics[i].MentionCount != topics[j].MentionCount {
			return topics[i].MentionCount > topics[j].MentionCount
		}
		return topics[i].Token < topics[j].Token
	})

	return topics, nil
}

// topCandidates returns up to limit tokens ordered by count descending,
// token ascending.
func topCandidates(counts map[string]int, limit int) []string {
	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens
}

// relateDocuments gathers the documents whose text contains the token and
// derives their ids, mean sentiment score, and top-3 emotions by mean score.
func relateDocuments(batch []feed.Document, token string) ([]string, float64, []feed.Emotion) {
	var (
		ids          []string
		sentimentSum float64
		emotionSums  = make(map[feed.Emotion]float64)
		emotionCount = make(map[feed.Emotion]int)
	)

	for i := range batch {
		doc := &batch[i]
		if !doc.ContainsToken(token) {
			continue
		}
		ids = append(ids, doc.ID)
		sentimentSum += doc.SentimentScore
		for emotion, score := range doc.EmotionScores {
			emotionSums[emotion] += score
			emotionCount[emotion]++
		}
	}

	var avgSentiment float64
	if len(ids) > 0 {
		avgSentiment = sentimentSum / float64(len(ids))
	}

	emotions := make([]feed.Emotion, 0, len(emotionSums))
	for emotion := range emotionSums {
		emotions = append(emotions, emotion)
	}
	sort.Slice(emotions, func(i, j int) bool {
		mi := emotionSums[emotions[i]] / float64(emotionCount[emotions[i]])
		mj := emotionSums[emotions[j]] / float64(emotionCount[emotions[j]])
		if mi != mj {
			return mi > mj
		}
		return emotions[i] < emotions[j]
	})
	if len(emotions) > 3 {
		emotions = emotions[:3]
	}

	return ids, avgSentiment, emotions
}

func clip(x float64) float64 {
	return math.Min(x, 1.0)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
