package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RelationshipsCreated  prometheus.Counter
	InvitationsAccepted   prometheus.Counter
	InvitationsDeclined   prometheus.Counter
	RelationshipsDeleted  prometheus.Counter
	BlocksCreated         prometheus.Counter
	LedgerWrites          prometheus.Counter
	CommonBoundaryGained  prometheus.Counter
	CommonBoundaryLost    prometheus.Counter
	NotificationsEmitted  *prometheus.CounterVec
	NotificationsDropped  prometheus.Counter
	RequestDurationSecond *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RelationshipsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_relationships_created_total",
			Help: "Total number of invitations created",
		}),
		InvitationsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_invitations_accepted_total",
			Help: "Total number of invitations accepted",
		}),
		InvitationsDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_invitations_declined_total",
			Help: "Total number of invitations declined",
		}),
		RelationshipsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_relationships_deleted_total",
			Help: "Total number of relationships dissolved or blocked away",
		}),
		BlocksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_blocks_created_total",
			Help: "Total number of pairing blocks recorded",
		}),
		LedgerWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_ledger_writes_total",
			Help: "Total number of consent entry upserts",
		}),
		CommonBoundaryGained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_common_boundary_gained_total",
			Help: "Total number of boundaries that became common to both parties",
		}),
		CommonBoundaryLost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_common_boundary_lost_total",
			Help: "Total number of boundaries that stopped being common",
		}),
		NotificationsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tandem_notifications_emitted_total",
			Help: "Total number of notifications persisted, by kind",
		}, []string{"kind"}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tandem_notifications_dropped_total",
			Help: "Total number of notifications that failed to persist and were dropped",
		}),
		RequestDurationSecond: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tandem_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}
