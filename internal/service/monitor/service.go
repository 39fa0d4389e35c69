package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/signal"
	"mediapulse/internal/domain/trend"
	"mediapulse/internal/domain/vector"
	"mediapulse/internal/service/analysis"
)

// BatchSource delivers the next closed batch of documents to analyze when
// the service runs in periodic mode. Ingestion itself (scraping,
// transcription) lives behind this interface, outside the engine.
type BatchSource interface {
	NextBatch(ctx context.Context) ([]feed.Document, error)
}

// Config contains configuration for the monitoring service.
type Config struct {
	PeriodLabel    string
	ScanInterval   time.Duration
	EventsTopic    string
	EnrichWorkers  int
	DefaultTopK    int
	UpsertDeadline time.Duration
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID         string                         `json:"run_id"`
	Documents     int                            `json:"documents"`
	Trends        []trend.TrendingTopic          `json:"trends"`
	Snapshot      trend.CollectiveSignalSnapshot `json:"snapshot"`
	SkippedUpsert []string                       `json:"skipped_upsert,omitempty"`
	FailedUpsert  []string                       `json:"failed_upsert,omitempty"`
	CompletedAt   time.Time                      `json:"completed_at"`
}

// Service orchestrates one analysis run over a closed document batch:
// enrichment, trend scoring, collective aggregation and vector
// persistence. It retains the latest results for the API and publishes
// run events on the bus.
type Service struct {
	enricher   *analysis.Enricher
	tracker    trend.Tracker
	aggregator trend.Aggregator
	store      vector.Store
	embedder   signal.Embedder
	eventBus   *nats.Conn
	config     Config
	log        *logrus.Logger

	source BatchSource

	mu           sync.RWMutex
	lastTrends   []trend.TrendingTopic
	lastSnapshot *trend.CollectiveSignalSnapshot

	handlersMu    sync.RWMutex
	trendHandlers []func(trend.TrendingTopic) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the monitoring service. source may be nil when runs
// are only triggered through Analyze (ingestion push mode).
func NewService(
	enricher *analysis.Enricher,
	tracker trend.Tracker,
	aggregator trend.Aggregator,
	store vector.Store,
	embedder signal.Embedder,
	eventBus *nats.Conn,
	source BatchSource,
	config Config,
	log *logrus.Logger,
) *Service {
	if config.EnrichWorkers <= 0 {
		config.EnrichWorkers = 4
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = 10
	}
	return &Service{
		enricher:   enricher,
		tracker:    tracker,
		aggregator: aggregator,
		store:      store,
		embedder:   embedder,
		eventBus:   eventBus,
		source:     source,
		config:     config,
		log:        log,
	}
}

// RegisterTrendHandler registers a callback invoked for every trending
// topic admitted by a run.
func (s *Service) RegisterTrendHandler(handler func(trend.TrendingTopic) error) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.trendHandlers = append(s.trendHandlers, handler)
}

// Analyze runs the full pipeline over one closed batch. Invalid documents
// reject the batch before any work happens; per-document extraction and
// upsert failures degrade per policy and are reported, not fatal.
func (s *Service) Analyze(ctx context.Context, batch []feed.Document) (*Report, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	runLog := s.log.WithFields(logrus.Fields{"run": runID, "documents": len(batch)})
	runLog.Info("analysis run started")

	s.enrichBatch(ctx, batch)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trends, err := s.tracker.UpdateAndScore(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("trend scoring: %w", err)
	}

	snapshot := s.aggregator.Summarize(batch, trends, s.config.PeriodLabel)

	report := &Report{
		RunID:       runID,
		Documents:   len(batch),
		Trends:      trends,
		Snapshot:    snapshot,
		CompletedAt: time.Now(),
	}

	s.persistBatch(ctx, batch, report)

	s.mu.Lock()
	s.lastTrends = trends
	s.lastSnapshot = &snapshot
	s.mu.Unlock()

	s.publishRunEvents(report)
	s.callTrendHandlers(trends)

	runLog.WithFields(logrus.Fields{
		"trends":  len(trends),
		"tension": snapshot.SocialTensionScore,
	}).Info("analysis run complete")

	return report, nil
}

// Trends returns the trending topics from the most recent run.
func (s *Service) Trends() []trend.TrendingTopic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]trend.TrendingTopic(nil), s.lastTrends...)
}

// Snapshot returns the most recent period snapshot, or nil before the
// first run.
func (s *Service) Snapshot() *trend.CollectiveSignalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSnapshot
}

// Search embeds the query text and returns the most similar stored
// documents, optionally filtered by topic.
func (s *Service) Search(ctx context.Context, query string, topK int, topics []string) ([]vector.Match, error) {
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.store.Query(ctx, embedding, topK, analysis.NormalizeTopics(topics))
}

// Start begins periodic analysis of batches pulled from the configured
// source. It is a no-op without a source.
func (s *Service) Start(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.scanLoop(ctx)
	return nil
}

// Stop halts periodic analysis and waits for in-flight runs, bounded by
// ctx.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) scanLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := s.source.NextBatch(ctx)
			if err != nil {
				s.log.WithError(err).Error("failed to fetch document batch")
				continue
			}
			if len(batch) == 0 {
				continue
			}
			if _, err := s.Analyze(ctx, batch); err != nil {
				s.log.WithError(err).Error("scheduled analysis run failed")
			}
		}
	}
}

// enrichBatch runs signal extraction over the batch with a bounded worker
// pool. Every document is fully enriched (or has its failures resolved to
// absent fields) before the run proceeds, so trend scoring never observes
// a partially-extracted document.
func (s *Service) enrichBatch(ctx context.Context, batch []feed.Document) {
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < s.config.EnrichWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := s.enricher.Enrich(ctx, &batch[i]); err != nil {
					s.log.WithError(err).WithField("document", batch[i].ID).
						Warn("enrichment aborted")
				}
			}
		}()
	}

	for i := range batch {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

// persistBatch upserts every embedded document. Documents without an
// embedding are skipped (their extraction failed); upsert failures are
// recorded per document and do not stop the rest of the batch.
func (s *Service) persistBatch(ctx context.Context, batch []feed.Document, report *Report) {
	for i := range batch {
		doc := &batch[i]
		if len(doc.Embedding) == 0 {
			report.SkippedUpsert = append(report.SkippedUpsert, doc.ID)
			continue
		}

		if err := s.upsertDocument(ctx, doc); err != nil {
			s.log.WithError(err).WithField("document", doc.ID).Error("vector upsert failed")
			report.FailedUpsert = append(report.FailedUpsert, doc.ID)
		}
	}
}

// upsertDocument stores one document's vector, bounded by the configured
// per-upsert deadline. The timeout context is released before the next
// document starts.
func (s *Service) upsertDocument(ctx context.Context, doc *feed.Document) error {
	if s.config.UpsertDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.UpsertDeadline)
		defer cancel()
	}

	return s.store.Upsert(ctx, vector.Record{
		ID:          doc.ID,
		SourceID:    doc.SourceID,
		Title:       doc.Title,
		Topics:      doc.Topics,
		Embedding:   doc.Embedding,
		PublishedAt: doc.PublishedAt,
	})
}

func (s *Service) publishRunEvents(report *Report) {
	if s.eventBus == nil {
		return
	}

	trendsPayload, err := json.Marshal(map[string]interface{}{
		"run_id": report.RunID,
		"trends": report.Trends,
	})
	if err == nil {
		topic := fmt.Sprintf("%s.trends.detected", s.config.EventsTopic)
		if err := s.eventBus.Publish(topic, trendsPayload); err != nil {
			s.log.WithError(err).Warn("failed to publish trends event")
		}
	}

	snapshotPayload, err := json.Marshal(map[string]interface{}{
		"run_id":   report.RunID,
		"snapshot": report.Snapshot,
	})
	if err == nil {
		topic := fmt.Sprintf("%s.snapshot.created", s.config.EventsTopic)
		if err := s.eventBus.Publish(topic, snapshotPayload); err != nil {
			s.log.WithError(err).Warn("failed to publish snapshot event")
		}
	}
}

func (s *Service) callTrendHandlers(trends []trend.TrendingTopic) {
	s.handlersMu.RLock()
	handlers := make([]func(trend.TrendingTopic) error, len(s.trendHandlers))
	copy(handlers, s.trendHandlers)
	s.handlersMu.RUnlock()

	for _, handler := range handlers {
		for i := range trends {
			if err := handler(trends[i]); err != nil {
				s.log.WithError(err).WithField("token", trends[i].Token).
					Warn("trend handler failed")
			}
		}
	}
}

// validateBatch rejects the batch if any document is invalid, naming every
// offender so the ingestion caller can fix them all at once.
func validateBatch(batch []feed.Document) error {
	var invalid []string
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			invalid = append(invalid, batch[i].ID)
			if batch[i].ID == "" {
				invalid[len(invalid)-1] = fmt.Sprintf("(index %d)", i)
			}
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: rejected documents: %s", feed.ErrInvalidDocument, strings.Join(invalid, ", "))
	}
	return nil
}
