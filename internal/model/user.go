package model

import (
	"strings"
	"time"
)

// User is a student record. History keeps student utterances only,
// newline-separated, oldest first; tutor replies are never persisted.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:80;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"column:password;size:255;not null" json:"-"`
	Name         string    `gorm:"type:text" json:"name"`
	Level        string    `gorm:"size:20;default:TB" json:"level"`
	History      string    `gorm:"type:text" json:"history"`
	Lydo         string    `gorm:"type:text" json:"lydo"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// HistoryLines splits the persisted history into student turns, oldest first.
func (u *User) HistoryLines() []string {
	if u.History == "" {
		return nil
	}
	return strings.Split(u.History, "\n")
}
