package model

import "time"

// DeviceAccessLog records which client devices were seen for a user. Rows are
// keyed by (user, user agent, source ip); repeated sightings bump AccessCount
// and LastSeenAt. Purely observational, never consulted for access control.
type DeviceAccessLog struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	UserID       uint      `gorm:"uniqueIndex:idx_device_identity;not null"`
	UserAgent    string    `gorm:"uniqueIndex:idx_device_identity;size:512;not null"`
	SourceIP     string    `gorm:"uniqueIndex:idx_device_identity;size:45;not null"` // IPv4/IPv6
	AccessedPath string    `gorm:"size:512"`                                         // last path seen from this device
	AccessCount  uint      `gorm:"default:1;not null"`
	FirstSeenAt  time.Time `gorm:"autoCreateTime"`
	LastSeenAt   time.Time
}

func (DeviceAccessLog) TableName() string {
	return "device_access_log"
}
