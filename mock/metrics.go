package mock

import (
	"time"

	"github.com/fwojciec/docmirror"
)

// Compile-time interface verification.
var (
	_ docmirror.Metrics        = (*Metrics)(nil)
	_ docmirror.TitleExtractor = (*TitleExtractor)(nil)
)

// Metrics is a mock implementation of docmirror.Metrics.
// Nil Fn fields are ignored.
type Metrics struct {
	PageProcessedFn func(outcome string)
	RetriedFn       func()
	RateLimitedFn   func(wait time.Duration)
	FallbackUsedFn  func(stage string)
	RunCompletedFn  func(duration time.Duration, files int)
}

func (m *Metrics) PageProcessed(outcome string) {
	if m.PageProcessedFn != nil {
		m.PageProcessedFn(outcome)
	}
}

func (m *Metrics) Retried() {
	if m.RetriedFn != nil {
		m.RetriedFn()
	}
}

func (m *Metrics) RateLimited(wait time.Duration) {
	if m.RateLimitedFn != nil {
		m.RateLimitedFn(wait)
	}
}

func (m *Metrics) FallbackUsed(stage string) {
	if m.FallbackUsedFn != nil {
		m.FallbackUsedFn(stage)
	}
}

func (m *Metrics) RunCompleted(duration time.Duration, files int) {
	if m.RunCompletedFn != nil {
		m.RunCompletedFn(duration, files)
	}
}

// TitleExtractor is a mock implementation of docmirror.TitleExtractor.
type TitleExtractor struct {
	TitleFn func(content string) string
}

func (e *TitleExtractor) Title(content string) string {
	return e.TitleFn(content)
}
