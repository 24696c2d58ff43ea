package model

import "time"

// AuditLog is an append-only trail of administrative mutations. Writes are
// best effort and never mutated after insert.
type AuditLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    string    `gorm:"size:64;not null;index" json:"action"`  // create_user, update_user...
	Target    string    `gorm:"size:128;not null;index" json:"target"` // e.g. user:<uuid>, setting:<key>
	Details   string    `gorm:"size:1024" json:"details"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit"
}
