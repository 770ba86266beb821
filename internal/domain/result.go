package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceMode says whether a result came from live providers or the fallback table.
type SourceMode string

const (
	SourceLive     SourceMode = "LIVE"
	SourceFallback SourceMode = "FALLBACK"
)

// AnalysisResult is the complete answer for one analyze action.
type AnalysisResult struct {
	ID             string                `json:"id"`
	Seq            uint64                `json:"seq"`
	Query          string                `json:"query"`
	Location       ResolvedLocation      `json:"location"`
	Scores         NormalizedScoreVector `json:"scores"`
	SourceMode     SourceMode            `json:"source_mode"`
	Schema         Schema                `json:"schema"`
	Headline       *Headline             `json:"headline,omitempty"`
	FallbackReason FallbackReason        `json:"fallback_reason,omitempty"`
	FallbackEntry  string                `json:"fallback_entry,omitempty"`
	Provider       string                `json:"provider,omitempty"`
	AnalyzedAt     time.Time             `json:"analyzed_at"`
}

// NewAnalysisID returns a fresh result identifier.
func NewAnalysisID() string {
	return uuid.NewString()
}

// IsLive reports whether the scores came from a live provider.
func (r AnalysisResult) IsLive() bool { return r.SourceMode == SourceLive }
