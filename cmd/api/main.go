package main

import (
	"fmt"

	"wav/internal/catalog"
	"wav/internal/config"
	"wav/internal/database"
	"wav/internal/logger"

	_ "wav/internal/docs" // Import swagger docs
)

// @title           WAV API
// @version         1.0
// @description     WAV is a music card game: unbox song cards, grow their energy over time, trade with other players and stake them at blackjack.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the identity provider's JWT.

func main() {
	appConfig, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger.Init(appConfig.Env)
	defer logger.Sync()

	if err := run(appConfig); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run(appConfig *config.Config) error {
	log := logger.Get()

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	if appConfig.CatalogClientID == "" || appConfig.CatalogClientSecret == "" {
		log.Warn("catalog credentials are not set; unbox and game wins will fail with PROVIDER_UNAVAILABLE")
	}
	provider := catalog.NewHTTPProvider(catalog.HTTPConfig{
		BaseURL:      appConfig.CatalogBaseURL,
		TokenURL:     appConfig.CatalogTokenURL,
		ClientID:     appConfig.CatalogClientID,
		ClientSecret: appConfig.CatalogClientSecret,
		Market:       appConfig.CatalogMarket,
		Timeout:      appConfig.RequestTimeout,
	})

	router := newRouter(appConfig, dbManager.DB(), provider)

	log.Infof("Starting WAV server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
