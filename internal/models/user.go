// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account in the Chirp application.
type User struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	Username   string    `gorm:"uniqueIndex;not null" bson:"username" json:"username"`
	Email      string    `gorm:"uniqueIndex;not null" bson:"email" json:"email"`
	Password   string    `gorm:"not null" bson:"password" json:"-"`
	Bio        string    `bson:"bio" json:"bio"`
	ProfilePic string    `bson:"profilePic" json:"profilePic"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewUser builds a user with normalized identity fields and a fresh id.
func NewUser(username, email, passwordHash, bio, profilePic string) *User {
	now := time.Now().UTC()
	return &User{
		ID:         uuid.NewString(),
		Username:   strings.TrimSpace(username),
		Email:      NormalizeEmail(email),
		Password:   passwordHash,
		Bio:        bio,
		ProfilePic: profilePic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// BeforeCreate assigns an id to users built without NewUser.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Summary returns the public projection used by enriched views.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserUpdate carries the mutable profile fields; nil fields are left unchanged.
type UserUpdate struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Bio        *string `json:"bio"`
	ProfilePic *string `json:"profilePic"`
}
