package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesReceivedTotal counts inbound events per line and kind
	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineflow_messages_received_total",
		Help: "The total number of inbound messages",
	}, []string{"line", "kind"})

	// MessagesSentTotal counts outbound sends by kind (text, image) and status
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineflow_messages_sent_total",
		Help: "The total number of outbound messages by kind and status",
	}, []string{"kind", "status"})

	// AccountsCreatedTotal counts account creation attempts by outcome
	AccountsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineflow_accounts_created_total",
		Help: "The total number of account creation attempts by status",
	}, []string{"status"})

	// AccountCreationDuration observes the creator round trip
	AccountCreationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lineflow_account_creation_duration_seconds",
		Help:    "The account creation duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RemindersFiredTotal counts proof reminders actually sent
	RemindersFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineflow_reminders_fired_total",
		Help: "The total number of proof reminders sent",
	})

	// StateTransitionsTotal counts flow transitions by target state
	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineflow_state_transitions_total",
		Help: "The total number of session state transitions",
	}, []string{"state"})

	// HandlerPanicsTotal counts inbound events dropped by the recover guard
	HandlerPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineflow_handler_panics_total",
		Help: "The total number of recovered panics while handling messages",
	})

	// SessionsCleanedTotal counts sessions removed by the cleanup job
	SessionsCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineflow_sessions_cleaned_total",
		Help: "The total number of inactive sessions removed",
	})

	// Sessions is the number of stored sessions at the last cleanup run
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lineflow_sessions",
		Help: "The number of stored sessions",
	})

	// LinesReady is the number of lines currently accepting messages
	LinesReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lineflow_lines_ready",
		Help: "The number of lines in READY state",
	})

	// ClearanceNeedsRenewal is 1 while the anti-bot clearance is stale
	ClearanceNeedsRenewal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lineflow_clearance_needs_renewal",
		Help: "1 when the anti-bot clearance needs renewal",
	})
)
