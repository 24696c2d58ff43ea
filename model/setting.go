package model

import "time"

// Setting is a global key/value pair for cross-cutting flags such as the
// initialization marker and the ingress port base.
type Setting struct {
	ID          uint   `gorm:"primarykey"`
	Key         string `gorm:"uniqueIndex;size:64;not null"`
	Value       string `gorm:"size:512;not null"`
	Description string `gorm:"size:256"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
