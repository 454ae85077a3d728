package models

import (
	"strings"
	"time"
)

// Message kinds reported by the transport
const (
	KindChat     = "chat"
	KindImage    = "image"
	KindDocument = "document"
	KindAudio    = "audio"
)

// InboundEvent is one message delivered by a line to the engine
type InboundEvent struct {
	EventID     string    `json:"event_id"`
	LineID      string    `json:"line_id"`
	ContactID   string    `json:"contact_id"`
	PhoneNumber string    `json:"phone_number,omitempty"` // resolved number when the contact id is opaque
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	HasMedia    bool      `json:"has_media"`
	MimeType    string    `json:"mime_type,omitempty"`
}

// Key returns the conversation this event belongs to
func (e InboundEvent) Key() ContactKey {
	return ContactKey{LineID: e.LineID, ContactID: e.ContactID}
}

// IsImage is true for photos and for images sent as documents
func (e InboundEvent) IsImage() bool {
	if e.Kind == KindImage {
		return true
	}
	return e.HasMedia && strings.HasPrefix(strings.ToLower(e.MimeType), "image/")
}

// Phone returns the best phone number known for the sender
func (e InboundEvent) Phone() string {
	if e.PhoneNumber != "" {
		return CleanPhone(e.PhoneNumber)
	}
	return CleanPhone(e.ContactID)
}

// CleanPhone strips transport decorations such as "whatsapp:" or "@c.us"
func CleanPhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "whatsapp:")
	if i := strings.Index(phone, "@"); i >= 0 {
		phone = phone[:i]
	}
	return phone
}
