package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eloquence",
		Subsystem: "tts",
		Name:      "cache_hits_total",
		Help:      "Number of synthesis requests served from the cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eloquence",
		Subsystem: "tts",
		Name:      "cache_misses_total",
		Help:      "Number of synthesis requests that reached the engine.",
	})
	synthDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eloquence",
		Subsystem: "tts",
		Name:      "synthesis_duration_seconds",
		Help:      "Wall time of one synthesis engine round trip.",
		Buckets:   prometheus.DefBuckets,
	})
	interruptions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eloquence",
		Subsystem: "tts",
		Name:      "playback_interruptions_total",
		Help:      "Number of playbacks cut short by barge-in or cancel.",
	})
)
