// Package observability aggregates runtime counters for the
// telemetry worker. Counters are atomic; no lock is taken on the hot
// paths that bump them.
package observability

import (
	"sync/atomic"
)

// Stats is a point-in-time snapshot of the messaging core.
type Stats struct {
	MessagesCommitted uint64 `json:"messages_committed"`
	EventsFanned      uint64 `json:"events_fanned"`
	EventsDropped     uint64 `json:"events_dropped"`
	SessionsConnected int64  `json:"sessions_connected"`
	JobsRunning       int64  `json:"jobs_running"`
}

type Monitoring struct {
	messagesCommitted atomic.Uint64
	eventsFanned      atomic.Uint64
	eventsDropped     atomic.Uint64
	sessionsConnected atomic.Int64
	jobsRunning       atomic.Int64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) MessageCommitted()    { m.messagesCommitted.Add(1) }
func (m *Monitoring) EventFanned()         { m.eventsFanned.Add(1) }
func (m *Monitoring) EventDropped()        { m.eventsDropped.Add(1) }
func (m *Monitoring) SessionConnected()    { m.sessionsConnected.Add(1) }
func (m *Monitoring) SessionDisconnected() { m.sessionsConnected.Add(-1) }
func (m *Monitoring) JobStarted()          { m.jobsRunning.Add(1) }
func (m *Monitoring) JobFinished()         { m.jobsRunning.Add(-1) }

func (m *Monitoring) Snapshot() Stats {
	return Stats{
		MessagesCommitted: m.messagesCommitted.Load(),
		EventsFanned:      m.eventsFanned.Load(),
		EventsDropped:     m.eventsDropped.Load(),
		SessionsConnected: m.sessionsConnected.Load(),
		JobsRunning:       m.jobsRunning.Load(),
	}
}
