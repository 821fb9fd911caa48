package chatstore

import (
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"workbridge/internal/model"
	"workbridge/internal/relay"
)

// ErrEmptyContent rejects a message before anything touches the database.
var ErrEmptyContent = pkgerrors.New("message content must not be empty")

/*
 * Store is the durable record of chat messages plus the live-update hub.
 * Persisting a message and notifying about it are independent steps: the
 * store never knows or cares whether a Telegram push went out.
 */
type Store struct {
	db  *gorm.DB
	hub *Hub
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, hub: NewHub()}
}

// EnsureChat returns the chat for the unordered pair {a,b} with the given
// type and related resource, creating it when absent.
func (store *Store) EnsureChat(a string, b string, chatType string, relatedID *string, title *string) (*model.Chat, error) {
	chat := &model.Chat{}
	query := store.db.Where("type = ?", chatType).
		Where("(participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?)", a, b, b, a)
	if relatedID != nil {
		query = query.Where("related_id = ?", *relatedID)
	}
	err := query.First(chat).Error
	if err == nil {
		return chat, nil
	}
	if !pkgerrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(err, "looking up chat")
	}
	now := time.Now()
	chat = &model.Chat{
		Participant1ID: &a,
		Participant2ID: &b,
		Type:           &chatType,
		RelatedID:      relatedID,
		Title:          title,
		LastMessageAt:  &now,
	}
	if err := store.db.Create(chat).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "creating chat")
	}
	return chat, nil
}

func (store *Store) ChatByID(id string) (*model.Chat, error) {
	chat := &model.Chat{}
	if err := store.db.Preload("Participant1").Preload("Participant2").First(chat, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return chat, nil
}

// ChatsFor lists every chat the user takes part in, most recent activity
// first.
func (store *Store) ChatsFor(userID string) ([]*model.Chat, error) {
	var chats []*model.Chat
	err := store.db.Preload("Participant1").Preload("Participant2").
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&chats).Error
	return chats, err
}

// LatestChatFor returns the user's most recently active chat, used by the
// webhook intake when a bare text reply arrives without explicit context.
func (store *Store) LatestChatFor(userID string) (*model.Chat, error) {
	chat := &model.Chat{}
	err := store.db.Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("last_message_at DESC").
		First(chat).Error
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Append validates and persists one message, bumps the chat's last-activity
// mark and fans the message out to live subscribers. Validation failure
// happens before any database work.
func (store *Store) Append(chat *model.Chat, senderID string, content string, kind string, source string) (*model.ChatMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyContent
	}
	message := &model.ChatMessage{
		ChatID:   &chat.ID,
		SenderID: &senderID,
		Content:  &trimmed,
		Kind:     &kind,
		Source:   &source,
	}
	if err := store.db.Create(message).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "persisting message")
	}
	if err := store.db.Model(chat).Update("last_message_at", time.Now()).Error; err != nil {
		// the message itself is already durable, only the ordering hint failed
		return message, pkgerrors.Wrap(err, "updating chat activity")
	}
	store.hub.Publish(store.pairKeyOf(chat), message)
	return message, nil
}

// ListConversation returns every message exchanged between the unordered
// pair {a,b}, oldest first, across all their chats.
func (store *Store) ListConversation(a string, b string) ([]*model.ChatMessage, error) {
	var chatIDs []string
	err := store.db.Model(&model.Chat{}).
		Where("(participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?)", a, b, b, a).
		Pluck("id", &chatIDs).Error
	if err != nil {
		return nil, err
	}
	if len(chatIDs) == 0 {
		return []*model.ChatMessage{}, nil
	}
	var messages []*model.ChatMessage
	err = store.db.Where("chat_id IN ?", chatIDs).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// MessagesByChat returns the messages of one chat, oldest first.
func (store *Store) MessagesByChat(chatID string) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	err := store.db.Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead flags every message in the chat not sent by the reader as read.
func (store *Store) MarkRead(chatID string, readerID string) error {
	return store.db.Model(&model.ChatMessage{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, readerID, false).
		Update("is_read", true).Error
}

// Subscribe registers a live-update hook for the unordered pair {a,b}.
func (store *Store) Subscribe(a string, b string) (<-chan *model.ChatMessage, func()) {
	return store.hub.Subscribe(relay.PairKey(a, b))
}

func (store *Store) pairKeyOf(chat *model.Chat) string {
	var a, b string
	if chat.Participant1ID != nil {
		a = *chat.Participant1ID
	}
	if chat.Participant2ID != nil {
		b = *chat.Participant2ID
	}
	return relay.PairKey(a, b)
}
