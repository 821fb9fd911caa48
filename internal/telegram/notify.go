package telegram

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workbridge/internal/model"
	"workbridge/internal/relay"
)

/*
 * The notify endpoints report their outcome in-band: the HTTP status is 200
 * whenever the request reached the pipeline at all, and the body's success
 * flag tells the caller whether a push actually went out. This keeps "the
 * notification was skipped" distinguishable from "the request was malformed".
 */

type notifyMessageRequest struct {
	ToID    string `json:"toId"`
	FromID  string `json:"fromId"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

type notifyRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type processMessageRequest struct {
	TelegramUserID int64  `json:"telegramUserId"`
	MessageText    string `json:"messageText"`
}

var notifyEmoji = map[string]string{
	"info":    "ℹ️",
	"success": "✅",
	"warning": "⚠️",
	"error":   "❌",
}

type NotifyHandler struct {
	notifier *relay.Notifier
	resolver *relay.Resolver
	relay    *relay.Relay
	db       *gorm.DB
}

func NewNotifyHandler(notifier *relay.Notifier, resolver *relay.Resolver, sender *relay.Relay, db *gorm.DB) *NotifyHandler {
	return &NotifyHandler{notifier: notifier, resolver: resolver, relay: sender, db: db}
}

// HandleNotifyMessage runs the full chat-notification pipeline for a message
// the web app just stored: gate, resolution, delivery, suppression.
func (handler *NotifyHandler) HandleNotifyMessage(ctx *gin.Context) {
	request := &notifyMessageRequest{}
	if err := ctx.ShouldBindJSON(request); err != nil || request.ToID == "" || request.Message == "" {
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": "malformed request"})
		return
	}
	if !handler.relay.Ready() {
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": "bot token not configured"})
		return
	}
	source := request.Source
	if source == "" {
		source = "chat"
	}
	result := handler.notifier.Notify(
		relay.PairKey(request.FromID, request.ToID),
		request.ToID,
		request.Message,
		relay.Context{
			SenderLabel: handler.senderLabel(request.FromID),
			Source:      source,
			ChatPath:    "/chat/" + request.FromID,
		})
	if !result.Success {
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": result.Error, "outcome": result.Outcome.String()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// senderLabel resolves the display label of the message author; the raw
// reference may live in either ID space.
func (handler *NotifyHandler) senderLabel(fromRef string) string {
	if fromRef == "" {
		return ""
	}
	user := &model.User{}
	ref := relay.ParseRef(fromRef)
	var err error
	if ref.Numeric {
		err = handler.db.Where("telegram_id = ?", ref.ChatID).First(user).Error
	} else {
		err = handler.db.First(user, "id = ?", ref.InternalID).Error
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			debugPrint("cannot load sender %s: %s", fromRef, err.Error())
		}
		return ""
	}
	return user.Label()
}

// HandleNotify pushes a one-off typed notification to a single recipient.
func (handler *NotifyHandler) HandleNotify(ctx *gin.Context) {
	request := &notifyRequest{}
	if err := ctx.ShouldBindJSON(request); err != nil || request.UserID == "" || request.Message == "" {
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": "malformed request"})
		return
	}
	if !handler.relay.Ready() {
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": "bot token not configured"})
		return
	}
	emoji, ok := notifyEmoji[request.Type]
	if !ok {
		emoji = "\U0001F4E2"
	}
	chatID, err := handler.resolver.Resolve(relay.ParseRef(request.UserID))
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": relay.ErrTextNoTelegramID})
		return
	}
	outcome, err := handler.relay.SendPlain(chatID, emoji+" "+request.Message)
	if outcome != relay.Delivered {
		if err != nil {
			debugPrint("telegram transport fault for chat %d: %s", chatID, err.Error())
		}
		ctx.JSON(http.StatusOK, gin.H{"success": false, "error": relay.ErrTextDeliveryFailed, "outcome": outcome.String()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// ProcessMessage lands a message typed in the Telegram chat with the bot
// into the author's most recent web conversation.
func ProcessMessage(handler *Handler) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		request := &processMessageRequest{}
		if err := ctx.ShouldBindJSON(request); err != nil || request.TelegramUserID == 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		if strings.TrimSpace(request.MessageText) == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "message text must not be empty"})
			return
		}
		user := &model.User{}
		if err := handler.db.Where("telegram_id = ?", request.TelegramUserID).First(user).Error; err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		chat, err := handler.store.LatestChatFor(user.ID)
		if err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "No active chat found"})
			return
		}
		if _, err := handler.store.Append(chat, user.ID, request.MessageText, "text", "telegram"); err != nil {
			ctx.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}
