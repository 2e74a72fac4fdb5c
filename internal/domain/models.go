// Package domain defines the persistence models for imported emails, their
// billing annotations and the stored OAuth credentials. These types are
// mapped with GORM and form the core data layer of the billing backend.
package domain

import "time"

// Credential slot names. Each slot holds at most one Credential.
const (
	SlotClio  = "clio"
	SlotGmail = "gmail"
)

// DefaultBillingHours is the quantity used for a record that carries no
// billing estimate of its own.
const DefaultBillingHours = 0.25

// Email represents a message imported from the mailbox together with its
// derived billing annotation and sync state.
//
// Fields:
//   - ID: auto-increment surrogate key.
//   - GmailID: externally issued message id (unique, upsert key on import).
//   - Summary / BillingHours / BillingDescription: nil until annotated.
//   - PushedToClio: set once the billing system accepted a time entry.
//     A pushed row always has a non-null Summary and BillingHours.
type Email struct {
	ID                 uint       `json:"id"                  gorm:"primaryKey;autoIncrement"`
	GmailID            string     `json:"gmail_id"            gorm:"type:varchar(255);not null;uniqueIndex:ux_emails_gmail_id"`
	ThreadID           string     `json:"thread_id"           gorm:"type:varchar(255)"`
	Subject            string     `json:"subject"             gorm:"type:text"`
	Sender             string     `json:"sender"              gorm:"type:text"`
	Recipient          string     `json:"recipient"           gorm:"type:text"`
	Body               string     `json:"body"                gorm:"type:text"`
	DateSent           *time.Time `json:"date_sent"           gorm:"index:idx_emails_date_sent"`
	Summary            *string    `json:"summary"             gorm:"type:text"`
	BillingHours       *float64   `json:"billing_hours"`
	BillingDescription *string    `json:"billing_description" gorm:"type:text"`
	PushedToClio       bool       `json:"pushed_to_clio"      gorm:"not null;default:false;index:idx_emails_pending"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Email.
func (Email) TableName() string { return "emails" }

// Quantity returns the billable hours submitted for this record.
func (e *Email) Quantity() float64 {
	if e.BillingHours == nil || *e.BillingHours == 0 {
		return DefaultBillingHours
	}
	return *e.BillingHours
}

// Credential is an OAuth token set stored under a named slot.
// ExpiresAt is optional and not enforced.
type Credential struct {
	Slot         string     `json:"slot"          gorm:"type:varchar(32);primaryKey"`
	AccessToken  string     `json:"-"             gorm:"type:text;not null"`
	RefreshToken string     `json:"-"             gorm:"type:text"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// InboundEmail is a message as yielded by the mailbox fetcher or captured by
// the browser extension, before it is stored.
type InboundEmail struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	Subject   string     `json:"subject"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Body      string     `json:"body"`
	DateSent  *time.Time `json:"date_sent"`
}

// Annotation is the billing summary produced for a single email.
type Annotation struct {
	Summary            string  `json:"summary"`
	BillingHours       float64 `json:"billing_hours"`
	BillingDescription string  `json:"billing_description"`
}
