package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/jsonapi"
	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"

	"workbridge/internal/misc"
	"workbridge/internal/model"
)

var listingTypes = map[string]struct{}{
	"order":       {},
	"service":     {},
	"ad":          {},
	"course":      {},
	"traffic":     {},
	"partnership": {},
}

func ListingCreate(ctx *gin.Context) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to create a listing")
		return
	} else {
		user = userInterface.(*model.User)
	}
	listing := &model.Listing{}
	if err := jsonapi.UnmarshalPayload(ctx.Request.Body, listing); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request: "+err.Error())
		return
	} else if listing.Type == nil || listing.Title == nil || listing.Description == nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "not all fields required are provided")
		return
	} else if _, ok := listingTypes[*listing.Type]; !ok {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "illegal listing type")
		return
	} else if err := validateDetails(*listing.Type, listing.Details); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	listing.OwnerID = &user.ID
	listing.Owner = user
	db := ctx.MustGet("DB").(*gorm.DB)
	if err := db.Save(listing).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Writer.WriteHeader(http.StatusCreated)
	if err := jsonapi.MarshalPayload(ctx.Writer, listing); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

// validateDetails decodes the free-form details object into the struct for
// the listing type and checks the fields that type cannot do without.
func validateDetails(listingType string, details interface{}) error {
	switch listingType {
	case "order":
		decoded := &model.OrderDetails{}
		if details == nil || mapstructure.Decode(details, decoded) != nil || decoded.Budget <= 0 {
			return errors.New("order listings need a positive budget")
		}
	case "service":
		decoded := &model.ServiceDetails{}
		if details == nil || mapstructure.Decode(details, decoded) != nil || decoded.Price <= 0 {
			return errors.New("service listings need a positive price")
		}
	case "course":
		decoded := &model.CourseDetails{}
		if details == nil || mapstructure.Decode(details, decoded) != nil || decoded.Price <= 0 {
			return errors.New("course listings need a positive price")
		}
	case "ad":
		decoded := &model.AdDetails{}
		if details == nil || mapstructure.Decode(details, decoded) != nil || decoded.Link == "" {
			return errors.New("ad listings need a link")
		}
	case "traffic":
		decoded := &model.TrafficDetails{}
		if details == nil || mapstructure.Decode(details, decoded) != nil || decoded.Audience == "" {
			return errors.New("traffic listings need an audience description")
		}
	case "partnership":
		decoded := &model.PartnershipDetails{}
		if details == nil || mapstructure.Decode(details, decoded) != nil || decoded.Terms == "" {
			return errors.New("partnership listings need terms")
		}
	}
	return nil
}

func ListingGet(ctx *gin.Context) {
	id := ctx.Param("id")
	listing := &model.Listing{}
	db := ctx.MustGet("DB").(*gorm.DB)
	if err := db.Preload("Owner").First(listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			misc.ReturnStandardError(ctx, http.StatusNotFound, "listing does not exist")
			return
		} else {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
	}
	ctx.Writer.WriteHeader(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, listing); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func ListingsGet(ctx *gin.Context) {
	db := ctx.MustGet("DB").(*gorm.DB)
	query := db.Preload("Owner").Where("status = ?", "active").Order("created_at DESC")
	if listingType := ctx.Query("type"); listingType != "" {
		if _, ok := listingTypes[listingType]; !ok {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "illegal listing type")
			return
		}
		query = query.Where("type = ?", listingType)
	}
	if category := ctx.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	var listings []*model.Listing
	if err := query.Find(&listings).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, listings); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func ListingUpdate(ctx *gin.Context) {
	listingRequest := &model.Listing{}
	if err := jsonapi.UnmarshalPayload(ctx.Request.Body, listingRequest); err != nil {
		misc.ReturnStandardError(ctx, http.StatusBadRequest, "cannot unmarshal JSON of request")
		return
	}
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to update a listing")
		return
	} else {
		user = userInterface.(*model.User)
	}
	id := ctx.Param("id")
	listing := &model.Listing{}
	db := ctx.MustGet("DB").(*gorm.DB)
	if err := db.First(listing, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		misc.ReturnStandardError(ctx, http.StatusNotFound, "listing does not exist")
		return
	} else if err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	} else if *listing.OwnerID != user.ID {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you can only update your own listings")
		return
	}
	if listingRequest.Details != nil {
		if err := validateDetails(*listing.Type, listingRequest.Details); err != nil {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, err.Error())
			return
		}
		listing.Details = listingRequest.Details
	}
	if listingRequest.Title != nil {
		listing.Title = listingRequest.Title
	}
	if listingRequest.Description != nil {
		listing.Description = listingRequest.Description
	}
	if listingRequest.Category != nil {
		listing.Category = listingRequest.Category
	}
	if listingRequest.Status != nil {
		if *listingRequest.Status != "active" && *listingRequest.Status != "closed" && *listingRequest.Status != "archived" {
			misc.ReturnStandardError(ctx, http.StatusBadRequest, "illegal listing status")
			return
		}
		listing.Status = listingRequest.Status
	}
	if err := db.Save(listing).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Status(http.StatusOK)
	if err := jsonapi.MarshalPayload(ctx.Writer, listing); err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
}

func ListingDelete(ctx *gin.Context) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to delete a listing")
		return
	} else {
		user = userInterface.(*model.User)
	}
	id := ctx.Param("id")
	listing := &model.Listing{}
	db := ctx.MustGet("DB").(*gorm.DB)
	if err := db.First(listing, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		misc.ReturnStandardError(ctx, http.StatusNotFound, "listing does not exist")
	} else if err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
	} else if *listing.OwnerID != user.ID && !user.IsAdmin {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you can only delete your own listings")
	} else if err := db.Delete(listing).Error; err != nil {
		misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
	} else {
		ctx.Status(http.StatusNoContent)
	}
}
