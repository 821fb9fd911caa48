package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workbridge/internal/misc"
	"workbridge/internal/model"
)

// Identity payload handed over by the Telegram mini-app host. We trust it as
// delivered; there is no further authentication in this system.
type TelegramIdentity struct {
	TelegramID int64  `header:"X-Telegram-ID" binding:"required"`
	Username   string `header:"X-Telegram-Username"`
}

// This is a middleware resolving the Telegram identity headers to a user
// record. The identity is always set; "User" is set only when the account
// exists, so creation endpoints can tell the difference.
func IdentityMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity := TelegramIdentity{}
		if err := ctx.ShouldBindHeader(&identity); err != nil || identity.TelegramID <= 0 {
			misc.ReturnStandardError(ctx, http.StatusUnauthorized, "telegram identity missing")
			return
		}
		ctx.Set("Identity", &identity)
		db := ctx.MustGet("DB").(*gorm.DB)
		user := model.User{}
		if err := db.Where("telegram_id = ?", identity.TelegramID).First(&user).Error; err == nil {
			ctx.Set("User", &user)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			// There is something wrong other than RecordNotFound (RNF means user has not been created)
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
}
