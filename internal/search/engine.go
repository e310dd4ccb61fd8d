package search

import (
	"time"

	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/models"
)

// Engine runs Search and records how long it took and how much it found.
type Engine struct {
	metrics *metrics.Metrics
}

// NewEngine creates an engine. m may be nil.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{metrics: m}
}

// Search is the instrumented form of the package-level Search.
func (e *Engine) Search(records []models.TransactionRecord, query string) Result {
	if query == "" {
		return Search(records, query)
	}

	start := time.Now()
	res := Search(records, query)
	elapsed := time.Since(start)

	if e != nil && e.metrics != nil {
		e.metrics.SearchesTotal.Inc()
		e.metrics.SearchDuration.Observe(elapsed.Seconds())
		e.metrics.SearchMatches.Observe(float64(len(res.Matches)))
	}
	logging.L.Debug("search complete",
		zap.Int("records", len(records)),
		zap.Int("retained", len(res.Records)),
		zap.Int("matches", len(res.Matches)),
		zap.Duration("elapsed", elapsed))
	return res
}
