package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workbridge/internal/misc"
	"workbridge/internal/model"
)

// StatsGet reports the admin dashboard counters.
func StatsGet(ctx *gin.Context) {
	var user *model.User
	if userInterface, exists := ctx.Get("User"); !exists {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "you have to be a registered user to read stats")
		return
	} else {
		user = userInterface.(*model.User)
	}
	if !user.IsAdmin {
		misc.ReturnStandardError(ctx, http.StatusForbidden, "stats are for admins only")
		return
	}
	db := ctx.MustGet("DB").(*gorm.DB)
	counters := map[string]int64{}
	counts := []struct {
		name  string
		model interface{}
	}{
		{"users", &model.User{}},
		{"listings", &model.Listing{}},
		{"applications", &model.Application{}},
		{"chats", &model.Chat{}},
		{"messages", &model.ChatMessage{}},
		{"reviews", &model.Review{}},
	}
	for _, count := range counts {
		var total int64
		if err := db.Model(count.model).Count(&total).Error; err != nil {
			misc.ReturnStandardError(ctx, http.StatusInternalServerError, err.Error())
			return
		}
		counters[count.name] = total
	}
	ctx.JSON(http.StatusOK, gin.H{"meta": counters})
}
