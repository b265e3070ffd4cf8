package model

import "time"

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:64;not null" json:"email"`
	FullName  string    `gorm:"size:100;not null" json:"full_name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      Role      `gorm:"size:50;not null;default:User" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
