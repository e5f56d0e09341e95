package model

import "time"

// Room maps the rooms table owned by the provisioning surface. JoinCode is a
// 6-digit code handed to participants together with the shared password.
type Room struct {
	ID           int       `gorm:"not null"`
	RoomName     string    `gorm:"size:255;not null"`
	JoinCode     int       `gorm:"primaryKey"`
	Password     string    `gorm:"size:255;not null"`
	LastActivity time.Time `gorm:"index"`
}

func (Room) TableName() string {
	return "rooms"
}
