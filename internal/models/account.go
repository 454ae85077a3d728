package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRecord is one ledger row: an account handed out to a contact
type AccountRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone" gorm:"index;size:64"` // cleaned, no transport suffix
	Username  string    `json:"username" gorm:"size:191"`
	Password  string    `json:"password"`
	LineID    string    `json:"line_id" gorm:"index;size:32"`
	Deposited bool      `json:"deposited" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AccountRecord) TableName() string {
	return "account_records"
}

// BeforeCreate assigns the row id and normalizes the phone
func (a *AccountRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Phone = CleanPhone(a.Phone)
	return nil
}

// AccountStats summarizes the ledger for the dashboard
type AccountStats struct {
	Total             int            `json:"total"`
	Today             int            `json:"today"`
	ThisWeek          int            `json:"this_week"`
	Deposited         int            `json:"deposited"`
	DepositedToday    int            `json:"deposited_today"`
	DepositedThisWeek int            `json:"deposited_this_week"`
	DepositRate       float64        `json:"deposit_rate"` // percent
	ByLine            map[string]int `json:"by_line"`
}
