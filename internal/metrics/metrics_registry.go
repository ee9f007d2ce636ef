package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var JoinsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "antiraid_joins_recorded_total",
	Help: "Number of member joins recorded by the velocity tracker",
})

var JoinStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "antiraid_join_store_errors_total",
	Help: "Join store operations that failed",
}, []string{"op"})

var RaidsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "antiraid_raids_detected_total",
	Help: "Raid responses started, by severity",
}, []string{"severity"})

var RaidsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "antiraid_raids_suppressed_total",
	Help: "Elevated detections ignored because a raid response was already active",
})

var ModActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "antiraid_mod_actions_total",
	Help: "Ban and kick calls issued, by action and result",
}, []string{"action", "result"})

var LockdownChannels = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "antiraid_lockdown_channels_total",
	Help: "Channel overwrite mutations, by operation and result",
}, []string{"op", "result"})

var PatternsFlagged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "antiraid_message_patterns_flagged_total",
	Help: "Message windows flagged as spam patterns",
})

var IncidentErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "antiraid_incident_persist_errors_total",
	Help: "Incidents that could not be persisted",
})

var AlertErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "antiraid_alert_errors_total",
	Help: "Alerts that could not be delivered",
})

var StreamErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "antiraid_incident_stream_errors_total",
	Help: "Incidents that could not be published to the incident stream",
})
