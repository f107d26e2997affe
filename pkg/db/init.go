package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func InitialiseDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %s", err.Error())
	}

	if err := db.AutoMigrate(&User{}, &Session{}, &Lab{}, &Credit{}, &Print{}, &Purpose{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %s", err.Error())
	}

	// At most one active session per user, enforced at storage level so
	// concurrent start calls cannot both slip past the application check.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
		ON sessions(user_id) WHERE end_time IS NULL AND deleted_at IS NULL`).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create active session index: %s", err.Error())
	}

	err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_admission_number
		ON sessions(admission_number)`).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create admission number index: %s", err.Error())
	}

	return db, nil
}
