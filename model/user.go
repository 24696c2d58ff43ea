package model

import (
	"time"

	"gorm.io/gorm"
)

// User stores a registered tunnel identity. UUID is the credential presented
// to the tunnel listener, SecretPath is the capability token embedded in the
// user's URL. Both are generated at creation time and never change afterwards.
type User struct {
	ID         uint   `gorm:"primarykey"`
	UUID       string `gorm:"uniqueIndex;size:36;not null"`
	SecretPath string `gorm:"uniqueIndex;size:64;not null"`
	Email      string `gorm:"uniqueIndex;size:256;not null"`
	Level      int    `gorm:"default:0;not null"`
	Enabled    bool   `gorm:"default:true;not null"`
	Notes      string `gorm:"size:512"`
	PortIndex  uint   `gorm:"uniqueIndex;not null"` // persistent listener slot; listener port is base+PortIndex
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}
