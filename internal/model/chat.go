package model

import (
	"time"

	"github.com/google/jsonapi"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"workbridge/internal/misc"
)

/*
 * A chat is the conversation record between an unordered pair of users.
 * Participant columns are stored in creation order; every lookup must match
 * the pair both ways round.
 */
type Chat struct {
	ID             string  `jsonapi:"primary,chat" gorm:"primarykey"`
	Participant1ID *string `gorm:"not null;index"`
	Participant1   *User   `jsonapi:"relation,participant1,omitempty"`
	Participant2ID *string `gorm:"not null;index"`
	Participant2   *User   `jsonapi:"relation,participant2,omitempty"`

	// Type codes: direct, order, service, ad, partnership
	Type      *string `jsonapi:"attr,type" gorm:"not null;default:'direct'"`
	RelatedID *string `jsonapi:"attr,related_id,omitempty"`
	Title     *string `jsonapi:"attr,title,omitempty"`

	LastMessageAt *time.Time     `jsonapi:"attr,last_message_at,omitempty"`
	Messages      []*ChatMessage `jsonapi:"relation,messages,omitempty"`

	DBTime
}

func (chat *Chat) JSONAPILinks() *jsonapi.Links {
	return &jsonapi.Links{
		"self": misc.APIAbsolutePath("/chat/" + chat.ID),
	}
}

func (chat *Chat) BeforeCreate(tx *gorm.DB) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	return nil
}

// the participant of the chat who is not the given user
func (chat *Chat) OtherParticipant(userID string) *string {
	if chat.Participant1ID != nil && *chat.Participant1ID == userID {
		return chat.Participant2ID
	}
	return chat.Participant1ID
}

/*
 * Chat message model. Rows are immutable once created; conversation order is
 * created_at ascending. A message surviving in this table is independent of
 * whether its Telegram notification ever went out.
 */
type ChatMessage struct {
	ID       string  `jsonapi:"primary,chat_message" gorm:"primarykey"`
	ChatID   *string `gorm:"not null;index"`
	Chat     *Chat   `jsonapi:"relation,chat,omitempty" gorm:"PRELOAD:false"`
	SenderID *string `gorm:"not null;index"`
	Sender   *User   `jsonapi:"relation,sender,omitempty" gorm:"PRELOAD:false"`

	Content *string `jsonapi:"attr,content" gorm:"not null"`
	// Kind codes: text, image, file
	Kind    *string `jsonapi:"attr,kind" gorm:"not null;default:'text'"`
	FileURL *string `jsonapi:"attr,file_url,omitempty"`
	// Source codes:
	// - webapp   : written in the mini-app chat view
	// - telegram : relayed in through the bot webhook
	Source            *string `jsonapi:"attr,source" gorm:"not null;default:'webapp'"`
	TelegramMessageID *int    `jsonapi:"attr,telegram_message_id,omitempty"`
	IsRead            bool    `jsonapi:"attr,is_read"`

	DBTime
}

func (message *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	return nil
}
