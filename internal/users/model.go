package users

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FullName     string    `gorm:"size:100;uniqueIndex:idx_users_full_name;not null" json:"full_name"`
	Email        string    `gorm:"size:100;uniqueIndex:idx_users_email;not null" json:"email"`
	Gender       string    `gorm:"size:10" json:"gender"`
	Phone        string    `gorm:"size:15" json:"phone"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
