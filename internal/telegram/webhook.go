package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"gorm.io/gorm"

	"workbridge/internal/chatstore"
	"workbridge/internal/model"
	"workbridge/internal/relay"
)

// this file contains everything regarding telegram webhook intake

// the shapes of updates we act on; anything else is acknowledged and dropped
type updateKind int

const (
	updateIgnored updateKind = iota
	updateCommand
	updateCallback
	updatePlain
)

func classifyUpdate(update *tgbotapi.Update) updateKind {
	switch {
	case update.CallbackQuery != nil:
		return updateCallback
	case update.Message != nil && update.Message.IsCommand():
		return updateCommand
	case update.Message != nil && update.Message.Text != "":
		return updatePlain
	default:
		return updateIgnored
	}
}

type Handler struct {
	api       relay.API
	store     *chatstore.Store
	db        *gorm.DB
	webappURL string

	// telegram user ID -> chat the next plain text message should land in
	mu           sync.Mutex
	replyTargets map[int64]string
}

func NewHandler(api relay.API, store *chatstore.Store, db *gorm.DB, webappURL string) *Handler {
	return &Handler{
		api:          api,
		store:        store,
		db:           db,
		webappURL:    strings.TrimRight(webappURL, "/"),
		replyTargets: make(map[int64]string),
	}
}

// HandleWebhook is the update intake. Telegram retries anything that is not
// a 200, so internal failures are acknowledged and only logged; a missing
// bot credential is the one configuration error worth reporting loudly.
func (handler *Handler) HandleWebhook(ctx *gin.Context) {
	if handler.api == nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "bot token not configured"})
		return
	}
	update := &tgbotapi.Update{}
	if err := ctx.ShouldBindJSON(update); err != nil {
		debugPrint("discarding malformed update: %s", err.Error())
		ctx.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}
	switch classifyUpdate(update) {
	case updateCommand:
		handler.handleCommand(update.Message)
	case updateCallback:
		handler.handleCallback(update.CallbackQuery)
	case updatePlain:
		handler.handlePlainMessage(update.Message)
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

func (handler *Handler) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		firstName := ""
		if message.From != nil {
			firstName = message.From.FirstName
		}
		handler.sendWelcome(chatID, firstName)
	case "help":
		handler.send(chatID, "This is the Workbridge marketplace bot.\n"+
			"Type /start to open the marketplace;\n"+
			"type /help to show this message again.", nil)
	default:
		handler.send(chatID, "Sorry we don't understand what you need :(\n"+
			"Maybe you can type /help for more information.", nil)
	}
}

func (handler *Handler) sendWelcome(chatID int64, firstName string) {
	greeting := "\U0001F680 Welcome"
	if firstName != "" {
		greeting += ", " + firstName
	}
	text := greeting + "!\n\n" +
		"This is a marketplace where:\n" +
		"\U0001F468‍\U0001F4BB executors find work\n" +
		"\U0001F9D1‍\U0001F4BC employers find specialists\n\n" +
		"Tap the button below to open the app:"
	markup := map[string]interface{}{
		"inline_keyboard": [][]map[string]interface{}{
			{{
				"text":    "\U0001F680 Open marketplace",
				"web_app": map[string]string{"url": handler.webappURL},
			}},
			{
				{"text": "\U0001F4CA My profile", "callback_data": "profile"},
				{"text": "\U0001F4AC Support", "callback_data": "support"},
			},
		},
	}
	handler.send(chatID, text, markup)
}

func (handler *Handler) handleCallback(callback *tgbotapi.CallbackQuery) {
	handler.answerCallback(callback.ID, "✅")
	if callback.Message == nil || callback.From == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	switch {
	case callback.Data == "profile":
		handler.send(chatID, "\U0001F464 Your profile is available inside the app", nil)
	case callback.Data == "support":
		handler.send(chatID, "\U0001F4AC For support, message the administrator", nil)
	case strings.HasPrefix(callback.Data, "reply_"):
		// the button carries the web chat this reply should land in
		target := strings.TrimPrefix(callback.Data, "reply_")
		handler.mu.Lock()
		handler.replyTargets[int64(callback.From.ID)] = target
		handler.mu.Unlock()
		handler.send(int64(callback.From.ID), "\U0001F4AC Write your reply as the next message:", nil)
	default:
		handler.send(chatID, "Unknown action", nil)
	}
}

// handlePlainMessage relays a bare text message back into the web chat: into
// the chat a reply button armed, or failing that the user's most recent one.
func (handler *Handler) handlePlainMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	senderTgID := int64(message.From.ID)
	user := &model.User{}
	if err := handler.db.Where("telegram_id = ?", senderTgID).First(user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			debugPrint("cannot load user for telegram id %d: %s", senderTgID, err.Error())
		}
		handler.send(message.Chat.ID, "We don't know you yet. Type /start to open the marketplace first.", nil)
		return
	}

	handler.mu.Lock()
	target, armed := handler.replyTargets[senderTgID]
	delete(handler.replyTargets, senderTgID)
	handler.mu.Unlock()

	var chat *model.Chat
	var err error
	if armed {
		chat, err = handler.store.ChatByID(target)
	} else {
		chat, err = handler.store.LatestChatFor(user.ID)
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			debugPrint("cannot load chat for user %s: %s", user.ID, err.Error())
		}
		handler.send(message.Chat.ID, "You have no open conversations to reply to.", nil)
		return
	}
	if _, err := handler.store.Append(chat, user.ID, message.Text, "text", "telegram"); err != nil {
		debugPrint("cannot relay message into chat %s: %s", chat.ID, err.Error())
		handler.send(message.Chat.ID, "Something went wrong, your message was not delivered.", nil)
		return
	}
	handler.send(message.Chat.ID, "✅ Message sent!", nil)
}

func (handler *Handler) send(chatID int64, text string, markup interface{}) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	if markup != nil {
		if encoded, err := json.Marshal(markup); err == nil {
			params.Set("reply_markup", string(encoded))
		}
	}
	if _, err := handler.api.MakeRequest("sendMessage", params); err != nil {
		debugPrint("cannot send message to chat %d - %s", chatID, err.Error())
	}
}

func (handler *Handler) answerCallback(callbackID string, text string) {
	params := url.Values{}
	params.Set("callback_query_id", callbackID)
	params.Set("text", text)
	if _, err := handler.api.MakeRequest("answerCallbackQuery", params); err != nil {
		debugPrint("cannot answer callback query - %s", err.Error())
	}
}

// this function prints a line of debug information to the default IO writer
// debugging status and DefaultWriter are inherited from gin
func debugPrint(format string, values ...interface{}) {
	if gin.IsDebugging() {
		if !strings.HasSuffix(format, "\n") {
			format += "\n"
		}
		fmt.Fprintf(gin.DefaultWriter, "[Telegram API] "+format, values...)
	}
}
