package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tool routing
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchbot_tool_invocations_total",
			Help: "Total tool invocations by the intent router",
		},
		[]string{"tool", "status"},
	)

	// Research pipeline
	ResearchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchbot_research_runs_total",
			Help: "Total research runs by depth and status",
		},
		[]string{"depth", "status"},
	)

	ResearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "researchbot_research_duration_seconds",
			Help:    "End-to-end research run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"depth"},
	)

	SourcesGathered = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "researchbot_sources_gathered",
			Help:    "Number of sources gathered per research run",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
		[]string{"source_type"},
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchbot_cache_hits_total",
			Help: "Cache hits by keyspace",
		},
		[]string{"keyspace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchbot_cache_misses_total",
			Help: "Cache misses by keyspace",
		},
		[]string{"keyspace"},
	)

	CacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchbot_cache_errors_total",
			Help: "Cache operations that failed and were soft-ignored",
		},
	)

	// Scraping
	ScrapeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchbot_scrape_failures_total",
			Help: "Page scrape failures by reason",
		},
		[]string{"reason"},
	)

	// Generation service
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchbot_generation_calls_total",
			Help: "Generation service calls by purpose and status",
		},
		[]string{"purpose", "status"},
	)

	GenerationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "researchbot_generation_latency_seconds",
			Help:    "Generation service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Conversation history
	HistoryCompactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchbot_history_compactions_total",
			Help: "Conversation histories compacted into a summary message",
		},
	)
)
