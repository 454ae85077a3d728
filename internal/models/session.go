package models

import (
	"fmt"
	"time"
)

// State is the position of a contact inside the onboarding flow
type State string

const (
	StateEntry             State = "ENTRY"
	StateWaitName          State = "WAIT_NAME"
	StateCreatingAccount   State = "CREATING_ACCOUNT"
	StateWaitDepositChoice State = "WAIT_DEPOSIT_CHOICE"
	StateWaitProof         State = "WAIT_PROOF"
	StateCompleted         State = "COMPLETED"
)

// Menu options tracked in SessionData.UsedOptions
const (
	OptionInfo          = "INFO"
	OptionSupport       = "SUPPORT"
	OptionCreateAccount = "CREATE_ACCOUNT"
)

// ContactKey identifies one conversation: a contact on a given line
type ContactKey struct {
	LineID    string `json:"line_id"`
	ContactID string `json:"contact_id"`
}

func (k ContactKey) String() string {
	return fmt.Sprintf("%s::%s", k.LineID, k.ContactID)
}

// Session is the persisted conversation state for one (line, contact) pair
type Session struct {
	LineID    string      `json:"line_id"`
	ContactID string      `json:"contact_id"`
	State     State       `json:"state"`
	Data      SessionData `json:"data"`
	Meta      SessionMeta `json:"meta"`
	Completed bool        `json:"completed"`
}

// SessionData holds what the flow captured. Every field is optional.
type SessionData struct {
	Name              string          `json:"name,omitempty"`
	Username          string          `json:"username,omitempty"`
	UsedOptions       map[string]bool `json:"used_options,omitempty"`
	CreationRequests  int             `json:"creation_requests,omitempty"`
	DepositResponse   string          `json:"deposit_response,omitempty"` // "SI" or "NO"
	ProofReceived     bool            `json:"proof_received,omitempty"`
	Restored          bool            `json:"restored,omitempty"` // rebuilt from the ledger
	NameCapturedAt    *time.Time      `json:"name_captured_at,omitempty"`
	AccountCreatedAt  *time.Time      `json:"account_created_at,omitempty"`
	WaitingProofSince *time.Time      `json:"waiting_proof_since,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// SessionMeta is bookkeeping maintained by the engine and the store
type SessionMeta struct {
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastActionAt    time.Time `json:"last_action_at"` // zero means "no recent action"
	LastWelcomeAt   time.Time `json:"last_welcome_at,omitempty"`
	LastStateChange time.Time `json:"last_state_change,omitempty"`
	Attempts        int       `json:"attempts"`
	MessageCount    int       `json:"message_count"`
	PreviousState   State     `json:"previous_state,omitempty"`
}

// NewSession returns the default-shaped record for a key seen for the first time
func NewSession(lineID, contactID string, now time.Time) Session {
	return Session{
		LineID:    lineID,
		ContactID: contactID,
		State:     StateEntry,
		Meta: SessionMeta{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Key returns the identity of the session
func (s Session) Key() ContactKey {
	return ContactKey{LineID: s.LineID, ContactID: s.ContactID}
}

// InFlow reports whether the contact is answering a question the bot asked
func (s Session) InFlow() bool {
	switch s.State {
	case StateWaitName, StateWaitDepositChoice, StateWaitProof:
		return true
	}
	return false
}

// Clone returns a deep copy so transforms never alias the stored record
func (s Session) Clone() Session {
	out := s
	if s.Data.UsedOptions != nil {
		out.Data.UsedOptions = make(map[string]bool, len(s.Data.UsedOptions))
		for k, v := range s.Data.UsedOptions {
			out.Data.UsedOptions[k] = v
		}
	}
	out.Data.NameCapturedAt = cloneTime(s.Data.NameCapturedAt)
	out.Data.AccountCreatedAt = cloneTime(s.Data.AccountCreatedAt)
	out.Data.WaitingProofSince = cloneTime(s.Data.WaitingProofSince)
	out.Data.CompletedAt = cloneTime(s.Data.CompletedAt)
	return out
}

// WithState moves the session to next, remembering where it came from
func (s Session) WithState(next State, now time.Time) Session {
	s.Meta.PreviousState = s.State
	s.State = next
	s.Meta.LastStateChange = now
	return s
}

// MarkOption records that a menu option was shown to the contact
func (s Session) MarkOption(option string) Session {
	if s.Data.UsedOptions == nil {
		s.Data.UsedOptions = make(map[string]bool)
	}
	s.Data.UsedOptions[option] = true
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
