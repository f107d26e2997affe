package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/janitor"
	"github.com/CLDWare/labtrack-backend/internal/lifecycle"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// Runs one full cleaning pass and exits. Useful from cron when the
// server itself is not running.
func main() {
	// Initialize logger with the updated configuration
	logger.Init()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, proceeding with environment variables")
	}

	// Force reload configuration after .env is loaded
	config.ForceReload()

	// Load configuration
	cfg := config.Get()

	// Initialise Database
	db, err := models.InitialiseDatabase(cfg.Database.Path)
	if err != nil {
		logger.Err(err)
		os.Exit(1)
	}

	manager := lifecycle.NewManager(cfg, db, lifecycle.Hooks{})

	jan := janitor.NewJanitor(cfg, db, manager, true)

	jan.RunFull()
}
