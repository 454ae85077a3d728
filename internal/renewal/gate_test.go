package renewal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/lineflow-backend/internal/config"
)

type staticSource config.Clearance

func (s staticSource) Clearance() config.Clearance { return config.Clearance(s) }

func TestGateCheck(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) string { return now.Add(-ago).Format(time.RFC3339) }

	cases := []struct {
		name     string
		src      staticSource
		reason   string
		priority Priority
		needs    bool
		urgent   bool
	}{
		{"no cookie", staticSource{}, ReasonNoCookie, PriorityHigh, true, true},
		{"no timestamp", staticSource{Cookie: "c"}, ReasonNoUpdateRecord, PriorityMedium, true, false},
		{"bad timestamp", staticSource{Cookie: "c", UpdatedAt: "ayer"}, ReasonInvalidTimestamp, PriorityHigh, true, true},
		{"expired", staticSource{Cookie: "c", UpdatedAt: at(2 * time.Hour)}, ReasonExpired, PriorityHigh, true, true},
		{"preventive", staticSource{Cookie: "c", UpdatedAt: at(70 * time.Minute)}, ReasonPreventive, PriorityLow, true, false},
		{"valid", staticSource{Cookie: "c", UpdatedAt: at(10 * time.Minute)}, ReasonValid, PriorityNone, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate(tc.src)
			g.now = func() time.Time { return now }

			st := g.Check()
			assert.Equal(t, tc.reason, st.Reason)
			assert.Equal(t, tc.priority, st.Priority)
			assert.Equal(t, tc.needs, st.NeedsRenewal)
			assert.Equal(t, tc.urgent, st.Urgent())
		})
	}
}
