package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Transformer turns a raw query message into an analysis result.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawMessage) (domain.AnalysisResult, error)
}

// BatchLoader writes multiple results to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.AnalysisResult) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-analyze-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	concurrency int
}

// New creates a Pipeline. concurrency bounds how many messages of one batch
// are analyzed at once; values below 1 mean sequential.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one
// result.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "concurrency", p.concurrency)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad analyzes the batch concurrently, loads the successes in
// source order, and commits offsets. Malformed messages are skipped and
// committed. Returns the number loaded and false if the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawMessage, backoff *time.Duration) (int, bool) {
	results := make([]domain.AnalysisResult, len(rawBatch))
	errs := make([]error, len(rawBatch))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range rawBatch {
		g.Go(func() error {
			results[i], errs[i] = p.transformer.Transform(ctx, rawBatch[i])
			return nil
		})
	}
	_ = g.Wait()

	outBatch := make([]domain.AnalysisResult, 0, len(rawBatch))
	successfulRaws := make([]domain.RawMessage, 0, len(rawBatch))
	for i, raw := range rawBatch {
		if errs[i] != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", errs[i],
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		outBatch = append(outBatch, results[i])
		successfulRaws = append(successfulRaws, raw)
	}

	if len(outBatch) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, outBatch); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outBatch))
		return 0, p.backoffOrStop(ctx, backoff)
	}

	p.metrics.MessagesProduced.Add(float64(len(outBatch)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	return len(outBatch), true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
