package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

var errNoBotAPI = errors.New("telegram bot api is not configured")

// Outcome of a single delivery attempt. API-level failures are values, never
// panics; only a transport fault is surfaced as an error next to the outcome.
type Outcome int

const (
	Delivered Outcome = iota
	// the recipient blocked the bot or never started a chat with it
	ChatNotFound
	Failed
)

func (outcome Outcome) String() string {
	switch outcome {
	case Delivered:
		return "delivered"
	case ChatNotFound:
		return "chat-not-found"
	default:
		return "failed"
	}
}

// Context carries the presentation bits of a chat notification: who wrote it,
// where it came from, and the web-chat path the inline button should open.
type Context struct {
	SenderLabel string
	Source      string
	ChatPath    string
}

// API is the slice of the Telegram bot client the relay needs. Satisfied by
// *tgbotapi.BotAPI.
type API interface {
	MakeRequest(endpoint string, params url.Values) (tgbotapi.APIResponse, error)
}

type Relay struct {
	api       API
	webappURL string
}

func NewRelay(api API, webappURL string) *Relay {
	return &Relay{api: api, webappURL: strings.TrimRight(webappURL, "/")}
}

// Ready reports whether a bot client is wired in. With no token configured
// every send degrades into a Failed outcome instead of panicking.
func (relay *Relay) Ready() bool {
	return relay.api != nil
}

// Send delivers one chat notification to a resolved Telegram chat ID and
// classifies the result. The returned error is non-nil only for transport
// faults; the Telegram API saying no is an Outcome, not an error.
func (relay *Relay) Send(chatID int64, text string, nctx Context) (Outcome, error) {
	if relay.api == nil {
		return Failed, errNoBotAPI
	}
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", relay.composeText(text, nctx))
	if markup := relay.composeMarkup(nctx); markup != "" {
		params.Set("reply_markup", markup)
	}
	resp, err := relay.api.MakeRequest("sendMessage", params)
	return classify(resp, err)
}

// SendPlain delivers a pre-formatted text without the chat-notification
// dressing, for the generic notify endpoint.
func (relay *Relay) SendPlain(chatID int64, text string) (Outcome, error) {
	if relay.api == nil {
		return Failed, errNoBotAPI
	}
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	resp, err := relay.api.MakeRequest("sendMessage", params)
	return classify(resp, err)
}

func (relay *Relay) composeText(text string, nctx Context) string {
	sender := nctx.SenderLabel
	if sender == "" {
		sender = "a user"
	}
	source := nctx.Source
	if source == "" {
		source = "chat"
	}
	return fmt.Sprintf("\U0001F4AC New message from %s:\n\n\"%s\"\n\n\U0001F4CD Source: %s\n\n\U0001F446 Reply in the web app",
		sender, text, source)
}

// inline keyboard with a single web_app button opening the conversation.
// Serialised by hand since the v4 client predates web_app buttons.
func (relay *Relay) composeMarkup(nctx Context) string {
	if relay.webappURL == "" || nctx.ChatPath == "" {
		return ""
	}
	markup := map[string]interface{}{
		"inline_keyboard": [][]map[string]interface{}{{{
			"text":    "\U0001F4AC Open chat",
			"web_app": map[string]string{"url": relay.webappURL + nctx.ChatPath},
		}}},
	}
	encoded, err := json.Marshal(markup)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func classify(resp tgbotapi.APIResponse, err error) (Outcome, error) {
	if resp.Ok {
		return Delivered, nil
	}
	if err != nil && resp.ErrorCode == 0 && resp.Description == "" {
		// nothing came back from the API at all
		return Failed, err
	}
	if resp.ErrorCode == 400 && strings.Contains(strings.ToLower(resp.Description), "chat not found") {
		return ChatNotFound, nil
	}
	return Failed, nil
}
