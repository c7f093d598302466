// Package metrics holds the prometheus collectors shared by the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ReportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_reports_submitted_total",
	Help: "Reports submitted, by reason and target type.",
}, []string{"reason", "target_type"})

var ReportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_report_transitions_total",
	Help: "Report status transitions, by destination status.",
}, []string{"to"})

var StatusConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_status_conflicts_total",
	Help: "Compare-and-swap conflicts, by operation.",
}, []string{"operation"})

var ActionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_actions_applied_total",
	Help: "Moderation actions applied, by action type and source.",
}, []string{"action_type", "source"})

var ActionsRolledBack = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_actions_rolled_back_total",
	Help: "Moderation actions rolled back, by action type.",
}, []string{"action_type"})

var EscalationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_escalation_decisions_total",
	Help: "Escalation decisions, by consequence and whether a rule matched.",
}, []string{"consequence", "matched"})

var ReputationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_reputation_events_total",
	Help: "Reputation events applied, by actor class and event type.",
}, []string{"actor_class", "event_type"})

var EnforcementJobs = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_enforcement_jobs_total",
	Help: "Enforcement job attempts, by operation and outcome.",
}, []string{"operation", "outcome"})

var Referrals = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_court_referrals_total",
	Help: "Court referrals, by outcome (opened, guilty, not_guilty, dismissed, appeal_granted, expired, report_closed).",
}, []string{"outcome"})

var EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_bus_events_dropped_total",
	Help: "Events dropped for slow subscribers, by topic.",
}, []string{"topic"})

var RuleCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_rule_cache_lookups_total",
	Help: "Escalation rule cache lookups, by result (hit, miss).",
}, []string{"result"})

var FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "citywatch_staff_feed_connections",
	Help: "Open staff feed websocket connections on this instance.",
})

var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "citywatch_notifications_total",
	Help: "Outbound notifications, by channel (feed, user) and outcome (sent, dropped, failed).",
}, []string{"channel", "outcome"})

var HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "http_in_flight_requests",
	Help: "In-flight HTTP requests.",
})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "http_request_duration_seconds",
	Help:    "HTTP request latencies in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

var HTTPPanics = promauto.NewCounter(prometheus.CounterOpts{
	Name: "http_panics_recovered_total",
	Help: "Handler panics turned into 500 responses.",
})

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
