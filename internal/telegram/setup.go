package telegram

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

// HandleSetup registers the webhook with the Telegram Bot API so updates are
// pushed to this deployment. Runs against whatever domain is configured, so
// it is safe to call again after a redeploy.
func (handler *Handler) HandleSetup(ctx *gin.Context) {
	if handler.api == nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "bot token not configured"})
		return
	}
	webhookURL := viper.GetString("domain") + "/api/bot/webhook"
	params := url.Values{}
	params.Set("url", webhookURL)
	params.Set("allowed_updates", `["message","callback_query"]`)
	resp, err := handler.api.MakeRequest("setWebhook", params)
	if err != nil || !resp.Ok {
		description := ""
		if err != nil {
			description = err.Error()
		} else {
			description = resp.Description
		}
		debugPrint("setWebhook failed: %s", description)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "webhook registration failed"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "url": webhookURL})
}
