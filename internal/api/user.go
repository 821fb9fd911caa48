package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/jsonapi"
	"gorm.io/gorm"

	"workbridge/internal/middleware"
	"workbridge/internal/misc"
	"workbridge/internal/model"
)

func UserGetSelf(ctx *gin.Context) {
	userInterface, exists := ctx.Get("User")
	if !exists {
		// User has not been created, return 404 to tell client to run onboarding
		misc.ReturnStandardError(ctx, http.StatusNotFound, "user has not been created")
		return
	}
	user := userInterface.(*model.User)
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, user); err != nil {
		http.Error(ctx.Writer, err.Error(), http.StatusInternalServerError)
	}
}

// UserCreate registers the account on first mini-app launch. The Telegram ID
// comes from the trusted identity headers, never from the request body.
func UserCreate(ctx *gin.Context) {
	identity := ctx.MustGet("Identity").(*middleware.TelegramIdentity)
	if _, exists := ctx.Get("User"); exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "a user linked to this Telegram account has been created before")
		return
	}
	userRequest := &model.User{}
	if err := jsonapi.UnmarshalPayload(ctx.Request.Body, userRequest); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request: "+err.Error())
		return
	} else if userRequest.Role == nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "role MUST be provided")
		return
	} else if *userRequest.Role != "executor" && *userRequest.Role != "employer" {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "role must be either 'executor' or 'employer'")
		return
	}
	db := ctx.MustGet("DB").(*gorm.DB)
	// We only take the role of the request object; everything else comes from
	// the identity payload
	user := &model.User{
		TelegramID: &identity.TelegramID,
		Role:       userRequest.Role,
	}
	if identity.Username != "" {
		user.Username = &identity.Username
	}
	if err := db.Create(user).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Status(http.StatusCreated)
	if err := jsonapi.MarshalPayload(ctx.Writer, user); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func UserGet(ctx *gin.Context) {
	id := ctx.Param("id")
	user := &model.User{}
	db := ctx.MustGet("DB").(*gorm.DB)
	if err := db.First(user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			misc.ReturnStandardError(ctx, http.StatusNotFound, "user does not exist")
			return
		} else {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, user); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func UserUpdate(ctx *gin.Context) {
	userRequest := &model.User{}
	if err := jsonapi.UnmarshalPayload(ctx.Request.Body, userRequest); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request")
		return
	}
	userInterface, exists := ctx.Get("User")
	if !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you can only update your own data")
		return
	}
	user := userInterface.(*model.User)
	if userRequest.Role != nil && *userRequest.Role != "executor" && *userRequest.Role != "employer" {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "role must be either 'executor' or 'employer'")
		return
	}
	db := ctx.MustGet("DB").(*gorm.DB)
	// Only role and username may change; telegram_id is immutable
	if err := db.Model(user).Select([]string{"role", "username"}).Updates(userRequest).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, user); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func UserReviewsGet(ctx *gin.Context) {
	id := ctx.Param("id")
	db := ctx.MustGet("DB").(*gorm.DB)
	var reviews []*model.Review
	if err := db.Where("reviewed_id = ?", id).Order("created_at DESC").Find(&reviews).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, reviews); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}
