package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SyncLock is a named lease serializing push passes across requests and
// processes. A row whose ExpiresAt is in the past may be taken over.
type SyncLock struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Holder    string    `gorm:"type:char(36);not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

// TableName implements the GORM tabler interface.
func (SyncLock) TableName() string { return "sync_locks" }

// SyncRun records the outcome of one push pass. When the pass was triggered
// with an Idempotency-Key, the key is stored so a retry can replay the
// result instead of pushing again.
type SyncRun struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	IdempotencyKey *string    `json:"idempotency_key" gorm:"type:varchar(255);uniqueIndex:ux_sync_runs_key"`
	Connected      bool       `json:"connected"       gorm:"not null"`
	Success        bool       `json:"success"         gorm:"not null"`
	PushedCount    int        `json:"pushed_count"    gorm:"not null;default:0"`
	Errors         StringList `json:"errors"          gorm:"type:text"`
	Message        string     `json:"message"         gorm:"type:text"`
	StartedAt      time.Time  `json:"started_at"      gorm:"index:idx_sync_runs_started"`
	FinishedAt     time.Time  `json:"finished_at"`
	KeyExpiresAt   *time.Time `json:"-"`
}

// TableName implements the GORM tabler interface.
func (SyncRun) TableName() string { return "sync_runs" }

// StringList is a []string persisted as a JSON array in a text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("domain: cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}
