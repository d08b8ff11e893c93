package db

import "time"

// CommandRecord is one command envelope the agent handled.
type CommandRecord struct {
	ID         uint   `gorm:"primaryKey"`
	CommandID  string `gorm:"size:36;uniqueIndex"`
	DeviceID   string `gorm:"size:191;index"`
	Source     string `gorm:"size:32"` // redis, inbox
	ActionPath string `gorm:"size:255"`
	Action     string `gorm:"size:128"`
	Payload    string `gorm:"type:text"`
	Result     string `gorm:"size:16;index"`
	Error      string `gorm:"size:512"`
	CreatedAt  time.Time
}

// DesiredSnapshot keeps an ingested desired-properties document together
// with the device state it produced.
type DesiredSnapshot struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  string `gorm:"size:191;index"`
	Document  string `gorm:"type:text"`
	Result    string `gorm:"size:16"`
	State     string `gorm:"type:text"`
	CreatedAt time.Time
}
