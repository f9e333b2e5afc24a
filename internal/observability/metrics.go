package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research repository service.
// Counters and histograms are registered via promauto with the default registry.
type Metrics struct {
	// PapersCreated counts successful paper submissions.
	PapersCreated prometheus.Counter

	// PapersDeleted counts successful paper deletions.
	PapersDeleted prometheus.Counter

	// PaperStatusTransitions counts admin review decisions, labeled by target status.
	PaperStatusTransitions *prometheus.CounterVec

	// PaperListRequests counts listing queries, labeled by requester role.
	PaperListRequests *prometheus.CounterVec

	// PaperListDuration observes listing query duration in seconds.
	PaperListDuration prometheus.Histogram

	// KeywordsCreated counts keywords created through reconciliation.
	KeywordsCreated prometheus.Counter

	// KeywordAttachConflicts counts attachment inserts skipped because the
	// (paper, keyword) pair already existed.
	KeywordAttachConflicts prometheus.Counter

	// KeywordSearches counts fuzzy keyword search requests.
	KeywordSearches prometheus.Counter

	// FileStoreRequests counts pinning gateway calls, labeled by operation and outcome.
	FileStoreRequests *prometheus.CounterVec

	// FileStoreRequestDuration observes pinning gateway call duration in seconds,
	// labeled by operation.
	FileStoreRequestDuration *prometheus.HistogramVec

	// DonationsRecorded counts donation rows created from webhook events.
	DonationsRecorded prometheus.Counter

	// DonationsRejected counts webhook deliveries discarded for a bad signature.
	DonationsRejected prometheus.Counter

	// EventsPublished counts repository events published to Kafka, labeled by type.
	EventsPublished *prometheus.CounterVec

	// EventPublishFailures counts failed event publishes, labeled by type.
	EventPublishFailures *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		PapersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_created_total",
			Help:      "Total number of papers submitted successfully",
		}),
		PapersDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deleted_total",
			Help:      "Total number of papers deleted",
		}),
		PaperStatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paper_status_transitions_total",
			Help:      "Total number of admin review decisions by target status",
		}, []string{"status"}),
		PaperListRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paper_list_requests_total",
			Help:      "Total number of paper listing requests by requester role",
		}, []string{"role"}),
		PaperListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "paper_list_duration_seconds",
			Help:      "Duration of paper listing queries in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		KeywordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_created_total",
			Help:      "Total number of keywords created during reconciliation",
		}),
		KeywordAttachConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_attach_conflicts_total",
			Help:      "Total number of keyword attachments skipped as already present",
		}),
		KeywordSearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_searches_total",
			Help:      "Total number of fuzzy keyword searches",
		}),
		FileStoreRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filestore_requests_total",
			Help:      "Total number of pinning gateway calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		FileStoreRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filestore_request_duration_seconds",
			Help:      "Duration of pinning gateway calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DonationsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_recorded_total",
			Help:      "Total number of donations recorded from webhook events",
		}),
		DonationsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_rejected_total",
			Help:      "Total number of webhook deliveries rejected for a bad signature",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of repository events published by type",
		}, []string{"type"}),
		EventPublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Total number of failed event publishes by type",
		}, []string{"type"}),
	}
}
