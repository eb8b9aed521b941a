// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal   *prometheus.CounterVec
	moviesTotal  *prometheus.CounterVec
	reviewsTotal prometheus.Counter

	once sync.Once
)

// Init initializes the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "douban_pages_total",
				Help: "Total pages fetched, labeled by kind (listing or detail).",
			},
			[]string{"kind"},
		)
		moviesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "douban_movies_total",
				Help: "Total movies processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		reviewsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "douban_reviews_total",
				Help: "Total review rows extracted.",
			},
		)
	})
}

// ObservePage increments the page counter for the given kind.
func ObservePage(kind string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveMovie increments the movie counter for the given outcome
// (saved, skipped or failed).
func ObserveMovie(outcome string) {
	if moviesTotal != nil {
		moviesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveReviews adds extracted review rows to the counter.
func ObserveReviews(n int) {
	if reviewsTotal != nil && n > 0 {
		reviewsTotal.Add(float64(n))
	}
}

// Handler returns an http.Handler exposing the collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}
