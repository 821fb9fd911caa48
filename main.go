package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"workbridge/internal/api"
	"workbridge/internal/chatstore"
	"workbridge/internal/middleware"
	"workbridge/internal/model"
	"workbridge/internal/relay"
	"workbridge/internal/telegram"
)

var startTime time.Time

func main() {
	startTime = time.Now()
	gin.ForceConsoleColor()

	viper.SetConfigName("workbridge.yaml")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath("/etc")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}

	// set debug mode for gin
	if viper.GetBool("debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// load essential interfaces (Telegram bot API, database)
	// Telegram Bot API; a missing or invalid token degrades the bot surface
	// instead of taking the whole service down
	var botAPI relay.API
	bot, err := tgbotapi.NewBotAPI(viper.GetString("external.telegram.key"))
	if err != nil {
		debugPrint("Telegram bot API unavailable, notifications disabled: %s", err.Error())
	} else {
		bot.Debug = viper.GetBool("debug")
		botAPI = bot
		debugPrint("Authorized on account %s", bot.Self.UserName)
	}
	// database
	db, err := gorm.Open(postgres.Open(viper.GetString("database")), &gorm.Config{})
	if err != nil {
		panic("Fail to connect to DB: " + err.Error())
	} else {
		debugPrint("Database connected")
	}
	if viper.GetBool("debug") {
		db = db.Debug()
	}
	tables := []interface{}{
		model.User{},
		model.Listing{},
		model.Application{},
		model.Review{},
		model.Chat{},
		model.ChatMessage{},
		model.File{},
	}
	if err := db.AutoMigrate(tables...); err != nil {
		panic("Failed to migrate tables: " + err.Error())
	} else {
		debugPrint("Database migrated")
	}

	// relay pipeline shared by the API send flow and the bot endpoints
	suppression := relay.NewSuppressionCache()
	gate := relay.NewGate(viper.GetStringSlice("external.telegram.denylist"))
	resolver := relay.NewResolver(relay.DBLookup{DB: db})
	sender := relay.NewRelay(botAPI, viper.GetString("webappURL"))
	notifier := relay.NewNotifier(gate, resolver, sender, suppression)
	store := chatstore.New(db)

	webhookHandler := telegram.NewHandler(botAPI, store, db, viper.GetString("webappURL"))
	notifyHandler := telegram.NewNotifyHandler(notifier, resolver, sender, db)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(middleware.OptionsMiddleware)
	router.Use(middleware.DatabaseMiddleware(db))

	// router group dealing with all API calls from the mini app front end
	apiRouter := router.Group(viper.GetString("apiRoot"))
	apiRouter.Use(middleware.APIMiddleware())
	{
		apiRouter.GET("/uptime", uptime)

		authed := apiRouter.Group("")
		authed.Use(middleware.IdentityMiddleware())
		{
			userRouter := authed.Group("/user")
			{
				userRouter.GET("", api.UserGetSelf)
				userRouter.POST("", api.UserCreate)
				userRouter.PATCH("", api.UserUpdate)
				userRouter.GET("/:id", api.UserGet)
				userRouter.GET("/:id/reviews", api.UserReviewsGet)
			}

			listingRouter := authed.Group("/listing")
			{
				listingRouter.POST("", api.ListingCreate)
				listingRouter.GET("/:id", api.ListingGet)
				listingRouter.PATCH("/:id", api.ListingUpdate)
				listingRouter.DELETE("/:id", api.ListingDelete)
				listingRouter.GET("/:id/applications", api.ListingApplicationsGet)
			}
			authed.GET("/listings", api.ListingsGet)

			applicationRouter := authed.Group("/application")
			{
				applicationRouter.POST("", api.ApplicationCreate)
				applicationRouter.PATCH("/:id", api.ApplicationUpdate(store))
			}
			authed.POST("/review", api.ReviewCreate)

			chatRouter := authed.Group("/chat")
			{
				chatRouter.POST("", api.ChatCreate(store))
				chatRouter.GET("/:id/messages", api.ChatMessagesGet(store, suppression))
				chatRouter.POST("/:id/message", api.ChatMessageCreate(store, notifier))
				chatRouter.GET("/:id/events", api.ChatEventsGet(store))
			}
			authed.GET("/chats", api.ChatsGet(store))

			fileRouter := authed.Group("/file")
			{
				fileRouter.POST("", api.FileCreate)
				fileRouter.PATCH("", api.FileUpdate)
				fileRouter.DELETE("/:id", api.FileDelete)
			}
			authed.GET("/files", api.FilesGet)

			authed.GET("/stats", api.StatsGet)
		}
	}

	// bot surface: webhook intake plus the internal notification endpoints
	botRouter := router.Group("/api/bot")
	{
		botRouter.POST("/webhook", webhookHandler.HandleWebhook)
		botRouter.POST("/setup", webhookHandler.HandleSetup)
		botRouter.POST("/notify-message", notifyHandler.HandleNotifyMessage)
		botRouter.POST("/process-message", telegram.ProcessMessage(webhookHandler))
	}
	router.POST("/api/notify", notifyHandler.HandleNotify)

	c := cron.New()
	// suppression entries are per session, stale ones get swept out
	c.AddFunc(viper.GetString("suppression.cron"), func() {
		evicted := suppression.Sweep(viper.GetDuration("suppression.ttl"))
		if evicted > 0 {
			debugPrint("Swept %d stale suppression entries", evicted)
		}
	})

	c.Start()
	// listen and serve on 0.0.0.0:8080 (for windows "localhost:8080")
	router.Run()
}

func uptime(ctx *gin.Context) {
	ctx.String(http.StatusOK, "{\"meta\":{\"uptime\": \""+fmt.Sprintf("%s", time.Since(startTime))+"\"}}")
}

// this function prints a line of debug information to the default IO writer
// debugging status and DefaultWriter are inherited from gin
func debugPrint(format string, values ...interface{}) {
	if gin.IsDebugging() {
		if !strings.HasSuffix(format, "\n") {
			format += "\n"
		}
		fmt.Fprintf(gin.DefaultWriter, "[WorkBridge] "+format, values...)
	}
}
