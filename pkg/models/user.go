package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password;type:varchar(255);not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
