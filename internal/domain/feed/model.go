package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EmbeddingDim is the system-wide embedding dimensionality. Every stored
// vector must have exactly this length; the vector store rejects anything
// else at upsert time.
const EmbeddingDim = 384

// Polarity is the overall sentiment direction of a document.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// Polarities lists all polarities in tie-break order: when two polarities
// are equally frequent in a batch, the one appearing first here wins.
var Polarities = []Polarity{PolarityPositive, PolarityNegative, PolarityNeutral}

// Emotion is a discrete emotion label attached to a document with a score
// in [0,1]. Emotions not reported by the classifier are absent from the
// map, which is not the same as a zero score.
type Emotion string

const (
	EmotionAnger    Emotion = "anger"
	EmotionFear     Emotion = "fear"
	EmotionJoy      Emotion = "joy"
	EmotionSadness  Emotion = "sadness"
	EmotionSurprise Emotion = "surprise"
	EmotionDisgust  Emotion = "disgust"
)

// ErrInvalidDocument marks a document that cannot enter the pipeline.
var ErrInvalidDocument = errors.New("invalid document")

// Document is one unit of ingested content: a news article or a transcribed
// audio segment, carrying the signal scores attached during enrichment.
// A Document is immutable once enrichment completes; re-processing creates
// a new Document under the same ID and upsert-replaces the stored record.
type Document struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	URL         string    `json:"url,omitempty"`
	Author      string    `json:"author,omitempty"`
	Category    string    `json:"category,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`

	// Topics holds normalized lowercase topic tokens: explicit tags
	// unioned with extracted entities.
	Topics []string `json:"topics"`

	SentimentPolarity Polarity            `json:"sentiment_polarity,omitempty"`
	SentimentScore    float64             `json:"sentiment_score"`
	EmotionScores     map[Emotion]float64 `json:"emotion_scores,omitempty"`
	Embedding         []float32           `json:"embedding,omitempty"`

	// Engagement counters reported by the source, when available.
	Shares   int `json:"shares,omitempty"`
	Comments int `json:"comments,omitempty"`
	Views    int `json:"views,omitempty"`
}

// Validate rejects documents missing required fields or violating the
// polarity/score sign invariant.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("%w: document %s has empty body", ErrInvalidDocument, d.ID)
	}
	switch d.SentimentPolarity {
	case PolarityPositive:
		if d.SentimentScore < 0 {
			return fmt.Errorf("%w: document %s has positive polarity with negative score %.3f", ErrInvalidDocument, d.ID, d.SentimentScore)
		}
	case PolarityNegative:
		if d.SentimentScore > 0 {
			return fmt.Errorf("%w: document %s has negative polarity with positive score %.3f", ErrInvalidDocument, d.ID, d.SentimentScore)
		}
	case PolarityNeutral:
		if d.SentimentScore != 0 {
			return fmt.Errorf("%w: document %s has neutral polarity with nonzero score %.3f", ErrInvalidDocument, d.ID, d.SentimentScore)
		}
	case "":
		// Sentiment not extracted yet, or extraction failed.
	default:
		return fmt.Errorf("%w: document %s has unknown polarity %q", ErrInvalidDocument, d.ID, d.SentimentPolarity)
	}
	return nil
}

// ContainsToken reports whether the document's title or body contains the
// topic token as a case-insensitive substring. This intentionally keeps the
// simple substring behavior: a token can match inside a longer word.
func (d *Document) ContainsToken(token string) bool {
	text := strings.ToLower(d.Title + " " + d.Body)
	return strings.Contains(text, strings.ToLower(token))
}
