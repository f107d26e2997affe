package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// Seeds a fresh database with the default purposes, a couple of lab
// machines and an admin account. Safe to run twice; existing rows are
// left alone.
func main() {
	logger.Init()

	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, proceeding with environment variables")
	}
	config.ForceReload()
	cfg := config.Get()

	db, err := models.InitialiseDatabase(cfg.Database.Path)
	if err != nil {
		logger.Err(err)
		os.Exit(1)
	}

	ctx := context.Background()

	for _, name := range []string{"Internet", "Class", "Offline"} {
		purpose := models.Purpose{Name: name, Active: true}
		if err := gorm.G[models.Purpose](db).Create(ctx, &purpose); err != nil {
			logger.Info(fmt.Sprintf("purpose %q already present", name))
		}
	}

	seedLabs := []models.Lab{
		{ComputerID: "lab-a-01", Name: "Lab A", Status: false},
		{ComputerID: "lab-b-01", Name: "Lab B", Status: false},
	}
	for i := range seedLabs {
		if err := gorm.G[models.Lab](db).Create(ctx, &seedLabs[i]); err != nil {
			logger.Info(fmt.Sprintf("lab %q already present", seedLabs[i].ComputerID))
		}
	}

	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		logger.Info("SEED_ADMIN_PASSWORD not set, skipping admin account")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Err(err)
		os.Exit(1)
	}

	admin := models.User{
		AdmissionNumber: "admin",
		Name:            "Administrator",
		Class:           "-",
		PasswordHash:    string(hash),
		Role:            models.RoleAdmin,
		Email:           os.Getenv("SEED_ADMIN_EMAIL"),
	}
	if err := gorm.G[models.User](db).Create(ctx, &admin); err != nil {
		logger.Info("admin account already present")
		return
	}
	logger.Info("admin account created")
}
