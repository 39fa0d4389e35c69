package analysis

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/signal"
)

// sentimentBodyBudget is how much of the body is appended to the title
// when composing the sentiment classifier input.
const sentimentBodyBudget = 500

// Enricher runs the four signal extraction ports against a document and
// merges their results. The four calls are independent and read-only with
// respect to the document, so they run concurrently; a failed port leaves
// its field absent and never blocks the other three.
type Enricher struct {
	sentiment signal.SentimentClassifier
	emotions  signal.EmotionClassifier
	topics    signal.TopicExtractor
	embedder  signal.Embedder
	log       *logrus.Logger
}

// NewEnricher creates a new enricher over the given extraction ports.
func NewEnricher(
	sentiment signal.SentimentClassifier,
	emotions signal.EmotionClassifier,
	topics signal.TopicExtractor,
	embedder signal.Embedder,
	log *logrus.Logger,
) *Enricher {
	return &Enricher{
		sentiment: sentiment,
		emotions:  emotions,
		topics:    topics,
		embedder:  embedder,
		log:       log,
	}
}

// Enrich populates the document's sentiment, emotions, topics and
// embedding in place. Individual extraction failures are recorded and
// degrade per policy: sentiment falls back to neutral/0, emotions stay
// absent, topics reduce to the explicit tags, a missing embedding later
// skips the vector upsert. Only context cancellation is returned as an
// error.
func (e *Enricher) Enrich(ctx context.Context, doc *feed.Document) error {
	var (
		wg sync.WaitGroup

		polarity   feed.Polarity
		score      float64
		emotions   map[feed.Emotion]float64
		extracted  []string
		embedding  []float32
		portErrors [4]error
	)

	wg.Add(4)

	go func() {
		defer wg.Done()
		text := doc.Title + ". " + truncateRunes(doc.Body, sentimentBodyBudget)
		polarity, score, portErrors[0] = e.sentiment.ClassifySentiment(ctx, text)
	}()

	go func() {
		defer wg.Done()
		emotions, portErrors[1] = e.emotions.ClassifyEmotions(ctx, doc.Body)
	}()

	go func() {
		defer wg.Done()
		extracted, portErrors[2] = e.topics.ExtractTopics(ctx, doc.Title+" "+doc.Body)
	}()

	go func() {
		defer wg.Done()
		embedding, portErrors[3] = e.embedder.Embed(ctx, doc.Body)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	if portErrors[0] != nil {
		e.warn(doc.ID, "sentiment", portErrors[0])
		doc.SentimentPolarity = feed.PolarityNeutral
		doc.SentimentScore = 0
	} else {
		doc.SentimentPolarity = polarity
		doc.SentimentScore = score
	}

	if portErrors[1] != nil {
		e.warn(doc.ID, "emotions", portErrors[1])
	} else {
		doc.EmotionScores = emotions
	}

	if portErrors[2] != nil {
		e.warn(doc.ID, "topics", portErrors[2])
		doc.Topics = NormalizeTopics(doc.Topics)
	} else {
		doc.Topics = MergeTopics(doc.Topics, extracted)
	}

	if portErrors[3] != nil {
		e.warn(doc.ID, "embedding", portErrors[3])
	} else if len(embedding) != feed.EmbeddingDim {
		e.log.WithFields(logrus.Fields{
			"document": doc.ID,
			"got":      len(embedding),
			"want":     feed.EmbeddingDim,
		}).Warn("embedder returned wrong dimensionality, dropping embedding")
	} else {
		doc.Embedding = embedding
	}

	return nil
}

func (e *Enricher) warn(docID, port string, err error) {
	e.log.WithError(err).WithFields(logrus.Fields{
		"document": docID,
		"port":     port,
	}).Warn("signal extraction failed, field left absent")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
