// Package analysis composes geocoding, indicator lookup, normalization and
// the fallback table into a single analyze operation that always produces a
// presentable result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

// DefaultStageTimeout bounds each upstream stage when Options leaves it unset.
const DefaultStageTimeout = 10 * time.Second

// Options tunes the Assembler.
type Options struct {
	StageTimeout time.Duration
	// LiveLookups false skips both upstream stages and serves the fallback
	// table with reason "bypassed".
	LiveLookups bool
}

type stage int

const (
	stageResolve stage = iota
	stageFetch
	stageNormalize
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageResolve:
		return "resolve"
	case stageFetch:
		return "fetch"
	case stageNormalize:
		return "normalize"
	default:
		return "done"
	}
}

// Assembler runs the resolve, fetch and normalize stages for one query.
type Assembler struct {
	resolver     domain.Resolver
	source       domain.IndicatorSource
	normalizer   *domain.Normalizer
	fallback     *domain.FallbackTable
	stageTimeout time.Duration
	live         bool
	seq          atomic.Uint64
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// New validates that the source, normalizer and fallback table agree on one
// schema.
func New(resolver domain.Resolver, source domain.IndicatorSource, normalizer *domain.Normalizer,
	fallback *domain.FallbackTable, opts Options, metrics *observability.Metrics, logger *slog.Logger,
) (*Assembler, error) {
	if resolver == nil || source == nil || normalizer == nil || fallback == nil {
		return nil, errors.New("assembler needs a resolver, source, normalizer and fallback table")
	}
	if source.Schema() != normalizer.Schema() {
		return nil, fmt.Errorf("source schema %s does not match normalizer schema %s", source.Schema(), normalizer.Schema())
	}
	if fallback.Schema() != normalizer.Schema() {
		return nil, fmt.Errorf("fallback table schema %s does not match normalizer schema %s", fallback.Schema(), normalizer.Schema())
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	return &Assembler{
		resolver:     resolver,
		source:       source,
		normalizer:   normalizer,
		fallback:     fallback,
		stageTimeout: opts.StageTimeout,
		live:         opts.LiveLookups,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Axes returns the labelled axis list matching every result's score order.
func (a *Assembler) Axes() []domain.Axis { return a.normalizer.Axes() }

// Schema reports the schema every result is scored in.
func (a *Assembler) Schema() domain.Schema { return a.normalizer.Schema() }

// CheckReadiness always succeeds. A constructed Assembler holds a loaded
// fallback table, so it can always answer.
func (a *Assembler) CheckReadiness(_ context.Context) error { return nil }

// Analyze resolves, fetches and normalizes q. It never fails: any upstream
// failure produces a FALLBACK result from the fallback table, keeping the
// geocoder's location when only the indicator fetch failed.
func (a *Assembler) Analyze(ctx context.Context, q domain.LocationQuery) domain.AnalysisResult {
	start := time.Now()
	res := domain.AnalysisResult{
		ID:     domain.NewAnalysisID(),
		Seq:    a.seq.Add(1),
		Query:  q.String(),
		Schema: a.normalizer.Schema(),
	}

	if !a.live {
		res = a.fallbackResult(res, q, nil, domain.ReasonBypassed)
		return a.finish(res, start, nil)
	}

	var (
		loc     domain.ResolvedLocation
		raw     domain.RawIndicatorRecord
		failure error
	)
	for st := stageResolve; st != stageDone; {
		switch st {
		case stageResolve:
			l, err := runStage(ctx, a.stageTimeout, "geocode", func(ctx context.Context) (domain.ResolvedLocation, error) {
				return a.resolver.Resolve(ctx, q)
			})
			if err != nil {
				failure = fmt.Errorf("resolve location: %w", err)
				res = a.fallbackResult(res, q, nil, domain.ReasonFor(err))
				st = stageDone
				continue
			}
			loc = l
			st = stageFetch

		case stageFetch:
			if !loc.HasCoordinates() {
				err := &domain.MalformedResponseError{Op: "geocode", Reason: "location has no coordinates"}
				failure = fmt.Errorf("fetch indicators: %w", err)
				res = a.fallbackResult(res, q, &loc, domain.ReasonFor(err))
				st = stageDone
				continue
			}
			r, err := runStage(ctx, a.stageTimeout, "indicators", func(ctx context.Context) (domain.RawIndicatorRecord, error) {
				return a.source.Fetch(ctx, loc.Geo.Lat, loc.Geo.Lon)
			})
			if err != nil {
				failure = fmt.Errorf("fetch indicators: %w", err)
				res = a.fallbackResult(res, q, &loc, domain.ReasonFor(err))
				st = stageDone
				continue
			}
			raw = r
			st = stageNormalize

		case stageNormalize:
			res = a.liveResult(res, q, loc, raw)
			st = stageDone
		}
	}
	return a.finish(res, start, failure)
}

func (a *Assembler) liveResult(res domain.AnalysisResult, q domain.LocationQuery, loc domain.ResolvedLocation, raw domain.RawIndicatorRecord) domain.AnalysisResult {
	if e, ok := a.fallback.Match(q.String()); ok {
		loc.CanonicalKey = e.Key
	}
	res.Location = loc
	res.Scores = a.normalizer.Normalize(raw)
	res.Headline = a.normalizer.Headline(raw)
	res.SourceMode = domain.SourceLive
	res.Provider = raw.Provider
	if res.Provider == "" {
		res.Provider = a.source.Name()
	}
	return res
}

// fallbackResult fills res from the fallback entry for q. When resolved is
// non-nil its name and coordinates replace the entry's for map centering.
func (a *Assembler) fallbackResult(res domain.AnalysisResult, q domain.LocationQuery, resolved *domain.ResolvedLocation, reason domain.FallbackReason) domain.AnalysisResult {
	entry := a.fallback.Lookup(q.String())

	loc := entry.Location()
	if resolved != nil && resolved.HasCoordinates() {
		loc.Geo = resolved.Geo
		if resolved.DisplayName != "" {
			loc.DisplayName = resolved.DisplayName
			loc.FullName = resolved.FullName
		}
	}

	res.Location = loc
	res.Scores = entry.Vector()
	res.SourceMode = domain.SourceFallback
	res.FallbackReason = reason
	res.FallbackEntry = entry.Name
	if len(entry.Raw.Values) > 0 {
		res.Headline = a.normalizer.Headline(entry.Raw)
	}
	return res
}

func (a *Assembler) finish(res domain.AnalysisResult, start time.Time, failure error) domain.AnalysisResult {
	res.AnalyzedAt = domain.Now()
	a.metrics.Analyses.WithLabelValues(string(res.SourceMode), string(res.FallbackReason)).Inc()
	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if res.SourceMode == domain.SourceFallback {
		a.logger.Warn("analysis used fallback table",
			"query", res.Query,
			"reason", res.FallbackReason,
			"entry", res.FallbackEntry,
			"error", failure,
		)
		return res
	}
	a.logger.Info("analysis complete",
		"query", res.Query,
		"location", res.Location.DisplayName,
		"provider", res.Provider,
		"seq", res.Seq,
	)
	return res
}

// runStage calls fn under its own timeout. Context expiry and panics are
// reported as typed errors so they take the fallback path.
func runStage[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (out T, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, fmt.Errorf("%s: panic: %v", op, r)
		}
	}()

	out, err = fn(ctx)
	if err != nil && domain.ReasonFor(err) == domain.ReasonUnknown && ctx.Err() != nil {
		err = &domain.TransportError{Op: op, Err: err}
	}
	return out, err
}
