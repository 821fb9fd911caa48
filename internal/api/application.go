package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/jsonapi"
	"gorm.io/gorm"

	"workbridge/internal/chatstore"
	"workbridge/internal/misc"
	"workbridge/internal/model"
)

func ApplicationCreate(ctx *gin.Context) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to apply")
		return
	} else {
		user = userInterface.(*model.User)
	}
	applicationRequest := &model.Application{}
	if err := jsonapi.UnmarshalPayload(ctx.Request.Body, applicationRequest); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request: "+err.Error())
		return
	} else if applicationRequest.Listing == nil || applicationRequest.Listing.ID == "" {
		// jsonapi only fills the relation object, never the FK column
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "listing MUST be provided")
		return
	}
	db := ctx.MustGet("DB").(*gorm.DB)
	listing := &model.Listing{}
	if err := db.First(listing, "id = ?", applicationRequest.Listing.ID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		misc.ReturnStandardError(ctx, http.StatusNotFound, "listing does not exist")
		return
	} else if err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	} else if *listing.Type != "order" {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "only order listings take applications")
		return
	} else if *listing.Status != "active" {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "this listing no longer takes applications")
		return
	} else if *listing.OwnerID == user.ID {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you cannot apply to your own listing")
		return
	}
	if err := db.Where("listing_id = ? AND applicant_id = ?", listing.ID, user.ID).
		First(&model.Application{}).Error; err == nil {
		misc.ReturnStandardError(ctx, http.StatusConflict, "you have already applied to this listing")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	application := &model.Application{
		ListingID:   &listing.ID,
		ApplicantID: &user.ID,
		CoverLetter: applicationRequest.CoverLetter,
	}
	if err := db.Create(application).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	application.Listing = listing
	application.Applicant = user
	ctx.Status(http.StatusCreated)
	if err := jsonapi.MarshalPayload(ctx.Writer, application); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func ListingApplicationsGet(ctx *gin.Context) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to list applications")
		return
	} else {
		user = userInterface.(*model.User)
	}
	id := ctx.Param("id")
	db := ctx.MustGet("DB").(*gorm.DB)
	listing := &model.Listing{}
	if err := db.First(listing, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		misc.ReturnStandardError(ctx, http.StatusNotFound, "listing does not exist")
		return
	} else if err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	} else if *listing.OwnerID != user.ID {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "only the listing owner can see its applications")
		return
	}
	var applications []*model.Application
	if err := db.Preload("Applicant").Where("listing_id = ?", listing.ID).
		Order("created_at ASC").Find(&applications).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, applications); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

// ApplicationUpdate lets the listing owner accept or decline. Accepting opens
// the order chat between owner and applicant so they can talk right away.
func ApplicationUpdate(store *chatstore.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var user *model.User
		if userInterface, exists := ctx.Get("User"); !exists {
			misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to decide on applications")
			return
		} else {
			user = userInterface.(*model.User)
		}
		applicationRequest := &model.Application{}
		if err := jsonapi.UnmarshalPayload(ctx.Request.Body, applicationRequest); err != nil {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request")
			return
		} else if applicationRequest.Status == nil ||
			(*applicationRequest.Status != "accepted" && *applicationRequest.Status != "declined") {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "status must be either 'accepted' or 'declined'")
			return
		}
		id := ctx.Param("id")
		db := ctx.MustGet("DB").(*gorm.DB)
		application := &model.Application{}
		if err := db.Preload("Listing").First(application, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			misc.ReturnStandardError(ctx, http.StatusNotFound, "application does not exist")
			return
		} else if err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		} else if application.Listing == nil || *application.Listing.OwnerID != user.ID {
			misc.ReturnStandardError(ctx, http.StatusForbidden, "only the listing owner can decide on applications")
			return
		} else if *application.Status != "created" {
			misc.ReturnStandardError(ctx, http.StatusConflict, "this application has already been decided")
			return
		}
		// the order chat is opened before the status flips so that a chat
		// failure leaves the application decidable and the owner can retry
		var chat *model.Chat
		if *applicationRequest.Status == "accepted" {
			var err error
			chat, err = store.EnsureChat(user.ID, *application.ApplicantID, "order",
				application.ListingID, application.Listing.Title)
			if err != nil {
				misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if err := db.Model(application).Update("status", *applicationRequest.Status).Error; err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		if chat != nil {
			application.Listing.Owner = user
			ctx.Header("Location", misc.APIAbsolutePath("/chat/"+chat.ID))
		}
		ctx.Status(http.StatusOK)
		if err := jsonapi.MarshalPayload(ctx.Writer, application); err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
}

func ReviewCreate(ctx *gin.Context) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to leave a review")
		return
	} else {
		user = userInterface.(*model.User)
	}
	reviewRequest := &model.Review{}
	if err := jsonapi.UnmarshalPayload(ctx.Request.Body, reviewRequest); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request: "+err.Error())
		return
	} else if reviewRequest.Listing == nil || reviewRequest.Listing.ID == "" ||
		reviewRequest.Reviewed == nil || reviewRequest.Reviewed.ID == "" || reviewRequest.Rating == nil {
		// jsonapi only fills the relation objects, never the FK columns
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "listing, reviewed user and rating MUST be provided")
		return
	} else if *reviewRequest.Rating < 1 || *reviewRequest.Rating > 5 {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	} else if reviewRequest.Reviewed.ID == user.ID {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you cannot review yourself")
		return
	}
	db := ctx.MustGet("DB").(*gorm.DB)
	review := &model.Review{
		ListingID:  &reviewRequest.Listing.ID,
		ReviewerID: &user.ID,
		ReviewedID: &reviewRequest.Reviewed.ID,
		Rating:     reviewRequest.Rating,
		Comment:    reviewRequest.Comment,
	}
	if err := db.Create(review).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	// keep the reviewed user's aggregate rating current
	var average float64
	err := db.Model(&model.Review{}).Where("reviewed_id = ?", *review.ReviewedID).
		Select("AVG(rating)").Scan(&average).Error
	if err == nil {
		err = db.Model(&model.User{}).Where("id = ?", *review.ReviewedID).Update("rating", average).Error
	}
	if err != nil {
		// the review itself is durable, only the aggregate went stale
		debugPrint("cannot refresh aggregate rating for user %s: %s", *review.ReviewedID, err.Error())
	}
	ctx.Status(http.StatusCreated)
	if err := jsonapi.MarshalPayload(ctx.Writer, review); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

// this function prints a line of debug information to the default IO writer
// debugging status and DefaultWriter are inherited from gin
func debugPrint(format string, values ...interface{}) {
	if gin.IsDebugging() {
		if !strings.HasSuffix(format, "\n") {
			format += "\n"
		}
		fmt.Fprintf(gin.DefaultWriter, "[API] "+format, values...)
	}
}
