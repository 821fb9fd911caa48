package model

import (
	"errors"

	"github.com/google/jsonapi"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"workbridge/internal/misc"
)

type User struct {
	ID string `jsonapi:"primary,user" gorm:"primarykey"`
	// Telegram numeric ID of the account this user launched the mini-app with.
	// A user without one can never receive Telegram notifications.
	// Immutable once set.
	TelegramID *int64  `jsonapi:"attr,telegram_id,omitempty" gorm:"uniqueIndex"`
	Username   *string `jsonapi:"attr,username,omitempty"`
	// Role codes:
	// - executor : browses orders, applies to them
	// - employer : posts orders, picks executors
	Role       *string `jsonapi:"attr,role" gorm:"not null"`
	Rating     float64 `jsonapi:"attr,rating"`
	ViewsCount uint    `jsonapi:"attr,views_count"`
	IsAdmin    bool    `jsonapi:"attr,is_admin"`

	DBTime
}

func (user *User) JSONAPILinks() *jsonapi.Links {
	return &jsonapi.Links{
		"self": misc.APIAbsolutePath("/user/" + user.ID),
	}
}

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return nil
}

func (user *User) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("telegram_id") {
		return errors.New("telegram_id is immutable once set")
	}
	return nil
}

// display label used when this user appears as a message sender
func (user *User) Label() string {
	if user.Username != nil && *user.Username != "" {
		return "@" + *user.Username
	}
	return "a user"
}
