// Package observability holds domain metrics and tracing setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// GraphToggles counts follow/like/retweet toggles by kind and outcome.
	GraphToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poststream_graph_toggles_total",
		Help: "Follow, like and retweet toggles by kind and outcome",
	}, []string{"kind", "outcome"})

	// FeedRequests counts feed assemblies, labelled by whether the viewer follows anyone.
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poststream_feed_requests_total",
		Help: "Feed assemblies by social graph state",
	}, []string{"graph"})

	// SearchRequests counts typeahead searches by kind and outcome.
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poststream_search_requests_total",
		Help: "Search requests by kind and outcome",
	}, []string{"kind", "outcome"})

	// PostsCreated counts newly created original posts.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poststream_posts_created_total",
		Help: "Total number of original posts created",
	})

	// EventPublishFailures counts domain events that could not be published.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poststream_event_publish_failures_total",
		Help: "Domain events that failed to publish, by sink",
	}, []string{"sink"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "poststream_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

const startKey = "observability:start"

// RegisterDatabaseMetrics installs GORM callbacks that time every statement.
func RegisterDatabaseMetrics(db *gorm.DB) error {
	cb := db.Callback()
	pairs := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, p := range pairs {
		op := p.op
		if err := p.before("observability:before_"+op, func(tx *gorm.DB) {
			tx.InstanceSet(startKey, time.Now())
		}); err != nil {
			return err
		}
		if err := p.after("observability:after_"+op, func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "unknown"
			}
			DatabaseQueryLatency.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
		}); err != nil {
			return err
		}
	}
	return nil
}
