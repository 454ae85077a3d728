// Package renewal reports how fresh the externally renewed anti-bot
// clearance is. The verdict is advisory: callers log it, they do not block.
package renewal

import (
	"time"

	"github.com/Ananth-NQI/lineflow-backend/internal/config"
)

type Priority string

const (
	PriorityNone   Priority = "N/A"
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

const (
	ReasonValid            = "VALID"
	ReasonNoCookie         = "NO_COOKIE"
	ReasonNoUpdateRecord   = "NO_UPDATE_RECORD"
	ReasonInvalidTimestamp = "INVALID_TIMESTAMP"
	ReasonExpired          = "EXPIRED"
	ReasonPreventive       = "PREVENTIVE"
)

// Clearance normally lasts two hours
const (
	ExpiredAfter    = 90 * time.Minute
	PreventiveAfter = 60 * time.Minute
)

// Source provides the current clearance record
type Source interface {
	Clearance() config.Clearance
}

// Status is the verdict for one check
type Status struct {
	NeedsRenewal bool          `json:"needs_renewal"`
	Reason       string        `json:"reason"`
	Priority     Priority      `json:"priority"`
	HasCookie    bool          `json:"has_cookie"`
	LastUpdated  string        `json:"last_updated,omitempty"`
	Age          time.Duration `json:"age"`
}

// Urgent is the case the engine warns about before creating accounts
func (s Status) Urgent() bool {
	return s.NeedsRenewal && s.Priority == PriorityHigh
}

// Gate checks the clearance held by a Source
type Gate struct {
	source Source
	now    func() time.Time
}

func NewGate(source Source) *Gate {
	return &Gate{source: source, now: time.Now}
}

// Check evaluates the clearance staleness
func (g *Gate) Check() Status {
	c := g.source.Clearance()
	st := Status{
		HasCookie:   c.Cookie != "",
		LastUpdated: c.UpdatedAt,
		Priority:    PriorityNone,
	}

	if c.Cookie == "" {
		st.NeedsRenewal, st.Reason, st.Priority = true, ReasonNoCookie, PriorityHigh
		return st
	}
	if c.UpdatedAt == "" {
		st.NeedsRenewal, st.Reason, st.Priority = true, ReasonNoUpdateRecord, PriorityMedium
		return st
	}
	updated, err := time.Parse(time.RFC3339, c.UpdatedAt)
	if err != nil {
		st.NeedsRenewal, st.Reason, st.Priority = true, ReasonInvalidTimestamp, PriorityHigh
		return st
	}

	st.Age = g.now().Sub(updated)
	switch {
	case st.Age > ExpiredAfter:
		st.NeedsRenewal, st.Reason, st.Priority = true, ReasonExpired, PriorityHigh
	case st.Age > PreventiveAfter:
		st.NeedsRenewal, st.Reason, st.Priority = true, ReasonPreventive, PriorityLow
	default:
		st.Reason = ReasonValid
	}
	return st
}
