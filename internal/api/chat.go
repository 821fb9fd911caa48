package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/jsonapi"
	"gorm.io/gorm"

	"workbridge/internal/chatstore"
	"workbridge/internal/misc"
	"workbridge/internal/model"
	"workbridge/internal/relay"
)

var chatTypes = map[string]struct{}{
	"direct":      {},
	"order":       {},
	"service":     {},
	"ad":          {},
	"partnership": {},
}

// ChatCreate returns the existing chat for the pair or creates a fresh one.
func ChatCreate(store *chatstore.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var user *model.User
		if userInterface, exists := ctx.Get("User"); !exists {
			misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to start a chat")
			return
		} else {
			user = userInterface.(*model.User)
		}
		chatRequest := &model.Chat{}
		if err := jsonapi.UnmarshalPayload(ctx.Request.Body, chatRequest); err != nil {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request: "+err.Error())
			return
		} else if chatRequest.Participant2 == nil || chatRequest.Participant2.ID == "" {
			// jsonapi only fills the relation object, never the FK column
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "the other participant MUST be provided")
			return
		} else if chatRequest.Participant2.ID == user.ID {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "you cannot open a chat with yourself")
			return
		}
		otherID := chatRequest.Participant2.ID
		chatType := "direct"
		if chatRequest.Type != nil {
			if _, ok := chatTypes[*chatRequest.Type]; !ok {
				misc.ReturnStandardError(ctx, http.StatusBadRequest, "illegal chat type")
				return
			}
			chatType = *chatRequest.Type
		}
		db := ctx.MustGet("DB").(*gorm.DB)
		if err := db.First(&model.User{}, "id = ?", otherID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			misc.ReturnStandardError(ctx, http.StatusNotFound, "the other participant does not exist")
			return
		} else if err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		chat, err := store.EnsureChat(user.ID, otherID, chatType, chatRequest.RelatedID, chatRequest.Title)
		if err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		ctx.Status(http.StatusCreated)
		if err := jsonapi.MarshalPayload(ctx.Writer, chat); err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
}

func ChatsGet(store *chatstore.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var user *model.User
		if userInterface, exists := ctx.Get("User"); !exists {
			misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to list chats")
			return
		} else {
			user = userInterface.(*model.User)
		}
		chats, err := store.ChatsFor(user.ID)
		if err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		ctx.Status(http.StatusOK)
		if err := jsonapi.MarshalPayload(ctx.Writer, chats); err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
}

// loadOwnChat fetches the chat and checks the requester is a participant.
func loadOwnChat(ctx *gin.Context, store *chatstore.Store) (*model.Chat, *model.User) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to access chats")
		return nil, nil
	} else {
		user = userInterface.(*model.User)
	}
	chat, err := store.ChatByID(ctx.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		misc.ReturnStandardError(ctx, http.StatusNotFound, "chat does not exist")
		return nil, nil
	} else if err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return nil, nil
	}
	if (chat.Participant1ID == nil || *chat.Participant1ID != user.ID) &&
		(chat.Participant2ID == nil || *chat.Participant2ID != user.ID) {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you are not a participant of this chat")
		return nil, nil
	}
	return chat, user
}

// ChatMessagesGet loads the conversation. Loading doubles as the reload
// signal that re-enables Telegram notification attempts for the pair.
func ChatMessagesGet(store *chatstore.Store, suppression *relay.SuppressionCache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		chat, user := loadOwnChat(ctx, store)
		if chat == nil {
			return
		}
		messages, err := store.MessagesByChat(chat.ID)
		if err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		if err := store.MarkRead(chat.ID, user.ID); err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		suppression.Reset(relay.PairKey(*chat.Participant1ID, *chat.Participant2ID))
		ctx.Status(http.StatusOK)
		if err := jsonapi.MarshalPayload(ctx.Writer, messages); err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
}

/*
 * ChatMessageCreate is the send pipeline. Persistence comes first and its
 * failure is the only thing the sender ever sees as an error; the Telegram
 * notification runs afterwards in the background and on any failure flips
 * the conversation's suppression flag instead of touching the response.
 */
func ChatMessageCreate(store *chatstore.Store, notifier *relay.Notifier) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		chat, user := loadOwnChat(ctx, store)
		if chat == nil {
			return
		}
		messageRequest := &model.ChatMessage{}
		if err := jsonapi.UnmarshalPayload(ctx.Request.Body, messageRequest); err != nil {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request: "+err.Error())
			return
		} else if messageRequest.Content == nil {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "content MUST be provided")
			return
		}
		kind := "text"
		if messageRequest.Kind != nil {
			if *messageRequest.Kind != "text" && *messageRequest.Kind != "image" && *messageRequest.Kind != "file" {
				misc.ReturnStandardError(ctx, http.StatusBadRequest, "illegal message kind")
				return
			}
			kind = *messageRequest.Kind
		}
		message, err := store.Append(chat, user.ID, *messageRequest.Content, kind, "webapp")
		if errors.Is(err, chatstore.ErrEmptyContent) {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "content must not be empty")
			return
		} else if err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		// the message is durable; notification succeeds or fails on its own
		go notifyRecipient(notifier, chat, user, *message.Content)
		ctx.Status(http.StatusCreated)
		if err := jsonapi.MarshalPayload(ctx.Writer, message); err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
}

func notifyRecipient(notifier *relay.Notifier, chat *model.Chat, sender *model.User, text string) {
	recipient := chat.OtherParticipant(sender.ID)
	if recipient == nil {
		return
	}
	source := "chat"
	if chat.Type != nil && *chat.Type != "direct" {
		source = *chat.Type
	}
	key := relay.PairKey(*chat.Participant1ID, *chat.Participant2ID)
	notifier.Notify(key, *recipient, text, relay.Context{
		SenderLabel: sender.Label(),
		Source:      source,
		ChatPath:    "/chat/" + sender.ID,
	})
}

// ChatEventsGet streams newly appended messages of the conversation as
// server-sent events until the client goes away.
func ChatEventsGet(store *chatstore.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		chat, _ := loadOwnChat(ctx, store)
		if chat == nil {
			return
		}
		events, cancel := store.Subscribe(*chat.Participant1ID, *chat.Participant2ID)
		defer cancel()
		ctx.Writer.Header().Set("Content-Type", "text/event-stream")
		ctx.Writer.Header().Set("Cache-Control", "no-cache")
		ctx.Writer.Header().Set("Connection", "keep-alive")
		ctx.Stream(func(w io.Writer) bool {
			select {
			case message, open := <-events:
				if !open {
					return false
				}
				ctx.SSEvent("message", message)
				return true
			case <-ctx.Request.Context().Done():
				return false
			}
		})
	}
}
