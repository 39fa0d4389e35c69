package analysis

import (
	"fmt"
	"strings"
	"time"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/trend"
)

// AggregatorConfig contains configuration for collective signal
// aggregation.
type AggregatorConfig struct {
	// NegativeEmotions are the emotions whose intensity feeds the social
	// tension score. Whether "surprise" belongs here is a policy choice,
	// so the set is configuration rather than a constant.
	NegativeEmotions []feed.Emotion

	// ConflictKeywords are matched against trending topic tokens and
	// document headlines to raise conflict indicators.
	ConflictKeywords []string

	// TopTrendingLimit bounds the trend list embedded in a snapshot and
	// the trends scanned for conflict keywords.
	TopTrendingLimit int

	// HeadlineRatioThreshold is the fraction of conflict-matching
	// headlines above which a batch-level indicator is raised.
	HeadlineRatioThreshold float64

	// ExplosiveGrowthPct is the growth above which a trend counts as
	// explosive for tension scoring.
	ExplosiveGrowthPct float64
}

// DefaultAggregatorConfig returns the standard configuration. The conflict
// keyword list targets the Spanish-language media this system monitors.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		NegativeEmotions: []feed.Emotion{
			feed.EmotionAnger,
			feed.EmotionFear,
			feed.EmotionSadness,
			feed.EmotionDisgust,
		},
		ConflictKeywords: []string{
			"protesta", "manifestación", "paro", "huelga", "reclamo",
			"crisis", "conflicto", "tensión", "enfrentamiento",
			"violencia", "represión", "descontento", "indignación",
		},
		TopTrendingLimit:       10,
		HeadlineRatioThreshold: 0.2,
		ExplosiveGrowthPct:     100,
	}
}

// Aggregator implements trend.Aggregator: it folds a closed batch of
// documents plus the run's trending topics into one period snapshot.
type Aggregator struct {
	config AggregatorConfig
	now    func() time.Time
}

// NewAggregator creates a new aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	return &Aggregator{
		config: config,
		now:    time.Now,
	}
}

// Summarize builds the collective signal snapshot for one reporting period.
func (a *Aggregator) Summarize(batch []feed.Document, trends []trend.TrendingTopic, periodLabel string) trend.CollectiveSignalSnapshot {
	topTrending := trends
	if len(topTrending) > a.config.TopTrendingLimit {
		topTrending = topTrending[:a.config.TopTrendingLimit]
	}

	return trend.CollectiveSignalSnapshot{
		PeriodLabel:         periodLabel,
		EmotionDistribution: emotionDistribution(batch),
		DominantPolarity:    dominantPolarity(batch),
		TopTrending:         topTrending,
		SocialTensionScore:  a.socialTension(batch, trends),
		ConflictIndicators:  a.conflictIndicators(batch, topTrending),
		GeneratedAt:         a.now(),
	}
}

// emotionDistribution computes the mean score per emotion, restricted to
// the documents that actually reported it. Emotions no document reported
// are omitted rather than reported as zero.
func emotionDistribution(batch []feed.Document) map[feed.Emotion]float64 {
	sums := make(map[feed.Emotion]float64)
	counts := make(map[feed.Emotion]int)
	for i := range batch {
		for emotion, score := range batch[i].EmotionScores {
			sums[emotion] += score
			counts[emotion]++
		}
	}

	distribution := make(map[feed.Emotion]float64, len(sums))
	for emotion, sum := range sums {
		distribution[emotion] = sum / float64(counts[emotion])
	}
	return distribution
}

// dominantPolarity returns the most frequent polarity in the batch, with
// ties broken by the declaration order of feed.Polarities. An empty batch
// reports neutral.
func dominantPolarity(batch []feed.Document) feed.Polarity {
	counts := make(map[feed.Polarity]int)
	for i := range batch {
		polarity := batch[i].SentimentPolarity
		if polarity == "" {
			polarity = feed.PolarityNeutral
		}
		counts[polarity]++
	}

	dominant := feed.PolarityNeutral
	best := 0
	for _, polarity := range feed.Polarities {
		if counts[polarity] > best {
			dominant = polarity
			best = counts[polarity]
		}
	}
	return dominant
}

// socialTension combines negative-polarity ratio, negative emotion
// intensity, and the share of explosively growing trends into a [0,100]
// score.
func (a *Aggregator) socialTension(batch []feed.Document, trends []trend.TrendingTopic) float64 {
	if len(batch) == 0 {
		return 0
	}

	negatives := 0
	negativeIntensity := 0.0
	for i := range batch {
		doc := &batch[i]
		if doc.SentimentPolarity == feed.PolarityNegative {
			negatives++
		}
		for _, emotion := range a.config.NegativeEmotions {
			if score, ok := doc.EmotionScores[emotion]; ok {
				negativeIntensity += score
			}
		}
	}
	negativeRatio := float64(negatives) / float64(len(batch))
	meanNegativeIntensity := negativeIntensity / float64(len(batch))

	explosiveRatio := 0.0
	if len(trends) > 0 {
		explosive := 0
		for i := range trends {
			if trends[i].GrowthPct > a.config.ExplosiveGrowthPct {
				explosive++
			}
		}
		explosiveRatio = float64(explosive) / float64(len(trends))
	}

	tension := 100 * (0.40*negativeRatio + 0.30*meanNegativeIntensity + 0.30*explosiveRatio)
	return clamp(tension, 0, 100)
}

// conflictIndicators raises human-readable flags: one per top trend whose
// token contains a conflict keyword, plus one batch-level line when
// conflict keywords appear in more than the configured share of headlines.
// The two checks are independent; the result may be empty.
func (a *Aggregator) conflictIndicators(batch []feed.Document, topTrending []trend.TrendingTopic) []string {
	indicators := []string{}

	for i := range topTrending {
		topic := &topTrending[i]
		token := strings.ToLower(topic.Token)
		for _, keyword := range a.config.ConflictKeywords {
			if strings.Contains(token, keyword) {
				indicators = append(indicators, fmt.Sprintf(
					"trending: %s (%d mentions, %+.0f%%)",
					topic.Token, topic.MentionCount, topic.GrowthPct,
				))
				break
			}
		}
	}

	if len(batch) > 0 {
		matching := 0
		for i := range batch {
			title := strings.ToLower(batch[i].Title)
			for _, keyword := range a.config.ConflictKeywords {
				if strings.Contains(title, keyword) {
					matching++
					break
				}
			}
		}
		ratio := float64(matching) / float64(len(batch))
		if ratio > a.config.HeadlineRatioThreshold {
			indicators = append(indicators, fmt.Sprintf(
				"%d of %d headlines mention conflict terms (%.1f%%)",
				matching, len(batch), ratio*100,
			))
		}
	}

	return indicators
}
