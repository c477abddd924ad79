package mirror

import (
	"time"

	"github.com/fwojciec/docmirror"
)

var _ docmirror.Metrics = nopMetrics{}

// nopMetrics is used when no docmirror.Metrics is configured.
type nopMetrics struct{}

func (nopMetrics) PageProcessed(string)            {}
func (nopMetrics) Retried()                        {}
func (nopMetrics) RateLimited(time.Duration)       {}
func (nopMetrics) FallbackUsed(string)             {}
func (nopMetrics) RunCompleted(time.Duration, int) {}
