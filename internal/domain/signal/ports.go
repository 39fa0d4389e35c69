package signal

import (
	"context"
	"errors"

	"mediapulse/internal/domain/feed"
)

// ErrExtractionUnavailable marks a signal port that could not produce a
// result: the backing model/service was unreachable, timed out, or was
// given empty input. A failed port leaves its field absent on the document;
// it never aborts the batch.
var ErrExtractionUnavailable = errors.New("extraction unavailable")

// SentimentClassifier maps text to an overall polarity and a signed score
// in [-1,1] whose sign agrees with the polarity.
type SentimentClassifier interface {
	ClassifySentiment(ctx context.Context, text string) (feed.Polarity, float64, error)
}

// EmotionClassifier maps text to per-emotion scores in [0,1]. Emotions the
// backend does not report are absent from the map, not zero.
type EmotionClassifier interface {
	ClassifyEmotions(ctx context.Context, text string) (map[feed.Emotion]float64, error)
}

// TopicExtractor derives topic tokens (named entities, subjects) from text.
// Returned tokens are raw; the caller normalizes and unions them with the
// document's explicit tags.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, text string) ([]string, error)
}

// Embedder encodes text into a fixed-length vector. The caller validates
// that the output length equals feed.EmbeddingDim.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
