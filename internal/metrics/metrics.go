// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttendanceMarks counts mark attempts by result code ("ok" on success).
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackhub",
		Name:      "attendance_marks_total",
		Help:      "Attendance mark attempts by result.",
	}, []string{"result"})

	// RoleReconciliations counts reconciler outcomes.
	RoleReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackhub",
		Name:      "role_reconciliations_total",
		Help:      "Role validation outcomes: match, auto_fixed, fix_failed, error.",
	}, []string{"outcome"})

	// GuardDecisions counts route guard decisions by rule.
	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackhub",
		Name:      "guard_decisions_total",
		Help:      "Route access guard decisions by matching rule.",
	}, []string{"rule"})

	// RateLimited counts requests rejected by a limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackhub",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by rate limiting.",
	}, []string{"limiter"})

	// SummaryRefreshes counts worker summary refreshes by status.
	SummaryRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackhub",
		Name:      "summary_refreshes_total",
		Help:      "Attendance summary cache refreshes by status.",
	}, []string{"status"})
)
