package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/Ananth-NQI/lineflow-backend/internal/renewal"
)

// SystemStatus is the engine part of the admin status page
type SystemStatus struct {
	Clearance *renewal.Status `json:"clearance,omitempty"`
	Sessions  SessionCounts   `json:"sessions"`
	Reminders int             `json:"pending_reminders"`
	Engine    EngineInfo      `json:"engine"`
}

type SessionCounts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

type EngineInfo struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Status reports clearance freshness and session activity over the last hour
func (e *Engine) Status(ctx context.Context) (SystemStatus, error) {
	sessions, err := e.store.List(ctx)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("list sessions: %w", err)
	}

	now := e.now()
	out := SystemStatus{
		Reminders: e.reminders.Len(),
		Engine:    EngineInfo{Status: "RUNNING", Timestamp: now},
	}
	out.Sessions.Total = len(sessions)
	for _, s := range sessions {
		if now.Sub(s.Meta.LastActionAt) < time.Hour {
			out.Sessions.Active++
		}
	}
	out.Sessions.Inactive = out.Sessions.Total - out.Sessions.Active

	if e.renewal != nil {
		st := e.renewal.Check()
		out.Clearance = &st
	}
	return out, nil
}
