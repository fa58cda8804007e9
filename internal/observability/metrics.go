package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the crawler and the scorer.
// A nil *Metrics is valid and turns every recording method into a no-op,
// so tests can run components without a registry.
type Metrics struct {
	Registry           *prometheus.Registry
	PagesTotal         *prometheus.CounterVec
	PageFetchDuration  prometheus.Histogram
	ItemsScrapedTotal  prometheus.Counter
	ItemsDroppedTotal  prometheus.Counter
	BlockedTotal       prometheus.Counter
	CyclesTotal        *prometheus.CounterVec
	ScoresUpdatedTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enotrack_pages_total",
			Help: "Total catalog pages fetched, by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enotrack_page_fetch_duration_seconds",
			Help:    "Latency of catalog page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enotrack_items_scraped_total",
			Help: "Total listing items handed to the sink.",
		},
	)
	itemsDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enotrack_items_dropped_total",
			Help: "Total listing entries dropped during extraction.",
		},
	)
	blocked := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enotrack_blocked_total",
			Help: "Total blocking events observed.",
		},
	)
	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enotrack_cycles_total",
			Help: "Total crawl cycles, by result.",
		},
		[]string{"result"},
	)
	scoresUpdated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enotrack_scores_updated_total",
			Help: "Total convenience scores written back.",
		},
	)

	registry.MustRegister(pages, fetchDuration, itemsScraped, itemsDropped, blocked, cycles, scoresUpdated)

	return &Metrics{
		Registry:           registry,
		PagesTotal:         pages,
		PageFetchDuration:  fetchDuration,
		ItemsScrapedTotal:  itemsScraped,
		ItemsDroppedTotal:  itemsDropped,
		BlockedTotal:       blocked,
		CyclesTotal:        cycles,
		ScoresUpdatedTotal: scoresUpdated,
	}
}

// IncPage increments the page counter for an outcome label.
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// AddItems increments the scraped-items counter.
func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Add(float64(n))
}

// ObserveFetch records one page fetch's latency.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.PageFetchDuration.Observe(d.Seconds())
}

// IncDropped increments the dropped-items counter.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.ItemsDroppedTotal.Inc()
}

// IncBlocked increments the blocking-events counter.
func (m *Metrics) IncBlocked() {
	if m == nil {
		return
	}
	m.BlockedTotal.Inc()
}

// IncCycle increments the cycle counter for a result label
// (complete, blocked, error).
func (m *Metrics) IncCycle(result string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
}

// AddScores increments the scores-updated counter.
func (m *Metrics) AddScores(n int) {
	if m == nil {
		return
	}
	m.ScoresUpdatedTotal.Add(float64(n))
}

// Handler returns the Prometheus exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartServer serves the metrics endpoint in a background goroutine.
func (m *Metrics) StartServer(port int, path string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
