package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// Analyzer runs one location analysis. *analysis.Assembler implements it.
type Analyzer interface {
	Analyze(ctx context.Context, q domain.LocationQuery) domain.AnalysisResult
}

// QueryTransformer implements Transformer by parsing a query message and
// running it through the Analyzer.
type QueryTransformer struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewTransformer creates a QueryTransformer.
func NewTransformer(analyzer Analyzer, logger *slog.Logger) *QueryTransformer {
	return &QueryTransformer{analyzer: analyzer, logger: logger}
}

// Transform fails only for unreadable or blank queries. Upstream failures
// surface as FALLBACK results, not errors.
func (t *QueryTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.AnalysisResult, error) {
	q, err := domain.ParseQueryMessage(raw)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	res := t.analyzer.Analyze(ctx, q)
	t.logger.Debug("batch query analyzed", "query", q.String(), "source_mode", res.SourceMode, "offset", raw.Offset)
	return res, nil
}
