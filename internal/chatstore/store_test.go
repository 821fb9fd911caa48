package chatstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workbridge/internal/model"
)

func testStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Chat{}, &model.ChatMessage{}))
	return New(db), db
}

func createUser(t *testing.T, db *gorm.DB, username string, telegramID int64) *model.User {
	t.Helper()
	role := "executor"
	user := &model.User{Username: &username, Role: &role}
	if telegramID != 0 {
		user.TelegramID = &telegramID
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestEnsureChat(t *testing.T) {
	store, db := testStore(t)
	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)

	first, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.NotNil(t, first.LastMessageAt)

	t.Run("same pair same chat", func(t *testing.T) {
		again, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})
	t.Run("reversed pair same chat", func(t *testing.T) {
		again, err := store.EnsureChat(bob.ID, alice.ID, "direct", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})
	t.Run("different type different chat", func(t *testing.T) {
		listingID := "listing-1"
		title := "Landing page"
		order, err := store.EnsureChat(alice.ID, bob.ID, "order", &listingID, &title)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, order.ID)
		require.NotNil(t, order.RelatedID)
		assert.Equal(t, listingID, *order.RelatedID)
	})
	t.Run("different related resource different chat", func(t *testing.T) {
		firstListing := "listing-1"
		secondListing := "listing-2"
		one, err := store.EnsureChat(alice.ID, bob.ID, "order", &firstListing, nil)
		require.NoError(t, err)
		two, err := store.EnsureChat(alice.ID, bob.ID, "order", &secondListing, nil)
		require.NoError(t, err)
		assert.NotEqual(t, one.ID, two.ID)
	})
}

func TestAppendAndListConversation(t *testing.T) {
	store, db := testStore(t)
	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)

	chat, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)

	_, err = store.Append(chat, alice.ID, "hello bob", "text", "webapp")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = store.Append(chat, bob.ID, "hi alice", "text", "telegram")
	require.NoError(t, err)

	messages, err := store.ListConversation(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello bob", *messages[0].Content)
	assert.Equal(t, "hi alice", *messages[1].Content)
	assert.Equal(t, "webapp", *messages[0].Source)
	assert.Equal(t, "telegram", *messages[1].Source)

	t.Run("pair order does not matter", func(t *testing.T) {
		reversed, err := store.ListConversation(bob.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, reversed, 2)
		assert.Equal(t, messages[0].ID, reversed[0].ID)
	})
	t.Run("strangers see nothing", func(t *testing.T) {
		carol := createUser(t, db, "carol", 300)
		messages, err := store.ListConversation(alice.ID, carol.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	// a nil database proves validation happens before any query
	store := New(nil)
	chat := &model.Chat{ID: "chat-1"}

	_, err := store.Append(chat, "user-1", "", "text", "webapp")
	assert.ErrorIs(t, err, ErrEmptyContent)
	_, err = store.Append(chat, "user-1", "   \n\t ", "text", "webapp")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestAppendTrimsContent(t *testing.T) {
	store, db := testStore(t)
	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)
	chat, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)

	message, err := store.Append(chat, alice.ID, "  hello  ", "text", "webapp")
	require.NoError(t, err)
	assert.Equal(t, "hello", *message.Content)
}

func TestAppendBumpsChatActivity(t *testing.T) {
	store, db := testStore(t)
	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)
	carol := createUser(t, db, "carol", 300)

	older, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)
	newer, err := store.EnsureChat(alice.ID, carol.ID, "direct", nil, nil)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = store.Append(older, bob.ID, "ping", "text", "webapp")
	require.NoError(t, err)

	latest, err := store.LatestChatFor(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, latest.ID)

	chats, err := store.ChatsFor(alice.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	assert.Equal(t, newer.ID, chats[1].ID)
}

func TestMarkRead(t *testing.T) {
	store, db := testStore(t)
	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)
	chat, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)

	_, err = store.Append(chat, alice.ID, "from alice", "text", "webapp")
	require.NoError(t, err)
	_, err = store.Append(chat, bob.ID, "from bob", "text", "webapp")
	require.NoError(t, err)

	require.NoError(t, store.MarkRead(chat.ID, bob.ID))

	messages, err := store.MessagesByChat(chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, message := range messages {
		if *message.SenderID == alice.ID {
			assert.True(t, message.IsRead, "the other side's message should be read")
		} else {
			assert.False(t, message.IsRead, "the reader's own message stays untouched")
		}
	}
}

func TestAppendFansOutToSubscribers(t *testing.T) {
	store, db := testStore(t)
	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)
	chat, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)

	events, cancel := store.Subscribe(bob.ID, alice.ID)
	defer cancel()

	sent, err := store.Append(chat, alice.ID, "live update", "text", "webapp")
	require.NoError(t, err)

	select {
	case received := <-events:
		assert.Equal(t, sent.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("no live update received")
	}
}
