package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workbridge/internal/chatstore"
	"workbridge/internal/model"
)

type apiCall struct {
	endpoint string
	params   url.Values
}

type fakeAPI struct {
	resp  tgbotapi.APIResponse
	err   error
	calls []apiCall
}

func (api *fakeAPI) MakeRequest(endpoint string, params url.Values) (tgbotapi.APIResponse, error) {
	api.calls = append(api.calls, apiCall{endpoint: endpoint, params: params})
	return api.resp, api.err
}

func (api *fakeAPI) sent(endpoint string) []apiCall {
	var matched []apiCall
	for _, call := range api.calls {
		if call.endpoint == endpoint {
			matched = append(matched, call)
		}
	}
	return matched
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Chat{}, &model.ChatMessage{}))
	return db
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

func postUpdate(t *testing.T, handler *Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/bot/webhook", handler.HandleWebhook)

	var payload []byte
	switch typed := body.(type) {
	case string:
		payload = []byte(typed)
	default:
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		payload = encoded
	}
	request := httptest.NewRequest(http.MethodPost, "/api/bot/webhook", bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func commandMessage(chatID int64, fromID int, text string, commandLength int) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: fromID, FirstName: "Ada"},
		Text: text,
		Entities: &[]tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: commandLength},
		},
	}
}

func TestClassifyUpdate(t *testing.T) {
	t.Run("callback query wins over its carrier message", func(t *testing.T) {
		update := &tgbotapi.Update{
			CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", Data: "profile"},
			Message:       &tgbotapi.Message{Text: "ignored"},
		}
		assert.Equal(t, updateCallback, classifyUpdate(update))
	})
	t.Run("command", func(t *testing.T) {
		update := &tgbotapi.Update{Message: commandMessage(1, 1, "/start", 6)}
		assert.Equal(t, updateCommand, classifyUpdate(update))
	})
	t.Run("plain text", func(t *testing.T) {
		update := &tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello"}}
		assert.Equal(t, updatePlain, classifyUpdate(update))
	})
	t.Run("textless message is ignored", func(t *testing.T) {
		update := &tgbotapi.Update{Message: &tgbotapi.Message{}}
		assert.Equal(t, updateIgnored, classifyUpdate(update))
	})
	t.Run("empty update is ignored", func(t *testing.T) {
		assert.Equal(t, updateIgnored, classifyUpdate(&tgbotapi.Update{}))
	})
}

func TestWebhookWithoutBotToken(t *testing.T) {
	handler := NewHandler(nil, nil, nil, "")
	recorder := postUpdate(t, handler, &tgbotapi.Update{})
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestWebhookMalformedBody(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	handler := NewHandler(api, nil, nil, "")
	recorder := postUpdate(t, handler, "{not json")
	// telegram retries non-200s, a broken update is acknowledged and dropped
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"ok":false`)
	assert.Empty(t, api.calls)
}

func TestWebhookStartCommand(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	handler := NewHandler(api, nil, nil, "https://app.example.com")

	recorder := postUpdate(t, handler, &tgbotapi.Update{Message: commandMessage(42, 7, "/start", 6)})
	assert.Equal(t, http.StatusOK, recorder.Code)

	sent := api.sent("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0].params.Get("chat_id"))
	assert.Contains(t, sent[0].params.Get("text"), "Welcome, Ada")

	markup := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(sent[0].params.Get("reply_markup")), &markup))
	rows := markup["inline_keyboard"].([]interface{})
	require.Len(t, rows, 2)
	open := rows[0].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "https://app.example.com", open["web_app"].(map[string]interface{})["url"])
	second := rows[1].([]interface{})
	assert.Equal(t, "profile", second[0].(map[string]interface{})["callback_data"])
	assert.Equal(t, "support", second[1].(map[string]interface{})["callback_data"])
}

func TestWebhookUnknownCommand(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	handler := NewHandler(api, nil, nil, "")

	postUpdate(t, handler, &tgbotapi.Update{Message: commandMessage(42, 7, "/frobnicate", 11)})
	sent := api.sent("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].params.Get("text"), "/help")
}

func TestWebhookProfileCallback(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	handler := NewHandler(api, nil, nil, "")

	postUpdate(t, handler, &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    "profile",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
	}})

	answers := api.sent("answerCallbackQuery")
	require.Len(t, answers, 1)
	assert.Equal(t, "cb-1", answers[0].params.Get("callback_query_id"))
	sent := api.sent("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].params.Get("text"), "profile")
}

func TestWebhookPlainMessageFromStranger(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	db := testDB(t)
	handler := NewHandler(api, chatstore.New(db), db, "")

	postUpdate(t, handler, &tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{ID: 999},
		Text: "hello?",
	}})

	sent := api.sent("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].params.Get("text"), "/start")
}

func TestWebhookPlainMessageLandsInLatestChat(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	db := testDB(t)
	store := chatstore.New(db)
	handler := NewHandler(api, store, db, "")

	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)
	chat, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)

	postUpdate(t, handler, &tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: 100},
		Text: "replying from telegram",
	}})

	messages, err := store.MessagesByChat(chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "replying from telegram", *messages[0].Content)
	assert.Equal(t, "telegram", *messages[0].Source)
	assert.Equal(t, alice.ID, *messages[0].SenderID)

	sent := api.sent("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].params.Get("text"), "Message sent")
}

func TestWebhookReplyButtonArmsTarget(t *testing.T) {
	api := &fakeAPI{resp: tgbotapi.APIResponse{Ok: true}}
	db := testDB(t)
	store := chatstore.New(db)
	handler := NewHandler(api, store, db, "")

	alice := createUser(t, db, "alice", 100)
	bob := createUser(t, db, "bob", 200)
	carol := createUser(t, db, "carol", 300)
	older, err := store.EnsureChat(alice.ID, bob.ID, "direct", nil, nil)
	require.NoError(t, err)
	_, err = store.EnsureChat(alice.ID, carol.ID, "direct", nil, nil)
	require.NoError(t, err)

	// the reply button targets the older chat, overriding recency
	postUpdate(t, handler, &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    "reply_" + older.ID,
		From:    &tgbotapi.User{ID: 100},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
	}})
	postUpdate(t, handler, &tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: 100},
		Text: "targeted reply",
	}})

	messages, err := store.MessagesByChat(older.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "targeted reply", *messages[0].Content)

	// the target is one-shot, the next message falls back to recency
	handler.mu.Lock()
	assert.Empty(t, handler.replyTargets)
	handler.mu.Unlock()
}
