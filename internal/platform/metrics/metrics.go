// Package metrics holds the Prometheus collectors for the synchronization
// core. They are registered on the default registry and served at /-/metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the toggle counters.
const (
	OutcomeApplied    = "applied"
	OutcomeRolledBack = "rolled_back"
	OutcomeDiscarded  = "discarded"
	OutcomeNoSession  = "no_session"
)

var (
	FavoriteTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotekeeper_favorite_toggles_total",
		Help: "Favorite toggles by direction and settled outcome.",
	}, []string{"direction", "outcome"})

	MembershipTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotekeeper_membership_toggles_total",
		Help: "Collection membership toggles by settled outcome.",
	}, []string{"outcome"})

	CascadeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotekeeper_cascade_failures_total",
		Help: "Un-favorites whose collection item cleanup failed and was left behind.",
	})

	CascadeRemovedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotekeeper_cascade_removed_items_total",
		Help: "Collection items removed because their quote was un-favorited.",
	})

	StaleCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotekeeper_stale_completions_total",
		Help: "Remote completions discarded because a newer operation superseded them.",
	}, []string{"kind"})

	FavoriteRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotekeeper_favorite_refreshes_total",
		Help: "Favorite set refreshes by result.",
	}, []string{"result"})

	AlertsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotekeeper_alerts_published_total",
		Help: "User-visible alerts by kind.",
	}, []string{"kind"})

	FavoritesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quotekeeper_favorites_tracked",
		Help: "Size of the in-memory favorite set for the current identity.",
	})
)
