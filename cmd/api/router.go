package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"wav/internal/catalog"
	"wav/internal/config"
	"wav/internal/handlers"
	"wav/internal/middleware"
	"wav/internal/services"
	"wav/internal/validator"
)

// newRouter wires services and handlers onto a gin engine.
func newRouter(appConfig *config.Config, db *gorm.DB, provider catalog.Provider) *gin.Engine {
	// Initialize services
	auditService := services.NewAuditService(db)
	ledgerService := services.NewLedgerService(db)
	profileService := services.NewProfileService(db, ledgerService)
	acquisitionService := services.NewAcquisitionService(db, provider)
	tradeService := services.NewTradeService(db, ledgerService)
	leaderboardService := services.NewLeaderboardService(db, ledgerService, appConfig.LeaderboardConcurrency)
	gameService := services.NewGameService(ledgerService, acquisitionService, provider)
	dailyStatService := services.NewDailyStatService(db)

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(profileService, ledgerService, auditService)
	unboxHandler := handlers.NewUnboxHandler(acquisitionService, auditService)
	tradeHandler := handlers.NewTradeHandler(tradeService, profileService, auditService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	gameHandler := handlers.NewGameHandler(gameService, auditService)
	statsHandler := handlers.NewStatsHandler(dailyStatService)

	validator.Register()

	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Scheduler routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/daily-stats", statsHandler.RecordDailyStats)

	// Authenticated, possibly without a profile yet
	authenticated := v1.Group("/")
	authenticated.Use(middleware.AuthMiddleware(appConfig.AuthJWTSecret, appConfig.AuthJWTIssuer))
	authenticated.POST("/profile", profileHandler.Register)

	// Routes that need a registered profile
	player := authenticated.Group("/")
	player.Use(middleware.RequireProfile(profileService))

	player.GET("/profile", profileHandler.GetProfile)
	player.PUT("/profile/privacy", profileHandler.UpdatePrivacy)
	player.PUT("/profile/preferences", profileHandler.UpdatePreferences)
	player.POST("/profile/recompute", profileHandler.Recompute)
	player.GET("/users/:username/deck", profileHandler.GetDeck)

	player.POST("/unbox", unboxHandler.Unbox)

	trades := player.Group("/trades")
	trades.POST("", tradeHandler.CreateTrade)
	trades.GET("", tradeHandler.ListTrades)
	trades.GET("/:id", tradeHandler.GetTrade)
	trades.POST("/:id/accept", tradeHandler.AcceptTrade)
	trades.POST("/:id/decline", tradeHandler.DeclineTrade)
	trades.POST("/:id/cancel", tradeHandler.CancelTrade)

	player.GET("/leaderboard", leaderboardHandler.GetLeaderboard)

	games := player.Group("/games")
	games.POST("/stake", gameHandler.Stake)
	games.POST("/:outcome", gameHandler.Settle)

	player.GET("/stats/history", statsHandler.GetHistory)

	return router
}
