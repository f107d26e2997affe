package janitor

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/lifecycle"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// Janitor force-ends sessions whose kiosk stopped heartbeating and
// periodically purges soft-deleted rows.
type Janitor struct {
	cfg              *config.Config
	database         *gorm.DB
	manager          *lifecycle.Manager
	announceNoAction bool
	cancel           context.CancelFunc
}

func NewJanitor(cfg *config.Config, db *gorm.DB, manager *lifecycle.Manager, announceNoAction bool) *Janitor {
	return &Janitor{
		cfg:              cfg,
		database:         db,
		manager:          manager,
		announceNoAction: announceNoAction,
	}
}

func (jan *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	jan.cancel = cancel

	go func() {
		checkTicker := time.NewTicker(jan.cfg.Janitor.CheckInterval)
		defer checkTicker.Stop()
		fullTicker := time.NewTicker(jan.cfg.Janitor.FullCleanInterval)
		defer fullTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-checkTicker.C:
				jan.RunShort()
			case <-fullTicker.C:
				jan.RunFull()
			}
		}
	}()
}

func (jan *Janitor) Stop() {
	if jan.cancel != nil {
		jan.cancel()
		jan.cancel = nil
	}
}

func (jan *Janitor) RunShort() {
	jan.ReapIdleSessions()
}

func (jan *Janitor) RunFull() {
	logger.Info("Janitor: Running full cleaning sequence.")
	jan.RunShort()

	jan.DeepCleanDatabase(nil)
}

// ReapIdleSessions force-ends active sessions whose last heartbeat is
// older than the idle timeout. An online session is billed up to its
// last heartbeat, never up to now.
func (jan *Janitor) ReapIdleSessions() {
	ctx := context.Background()
	cutoff := time.Now().Add(-jan.cfg.Janitor.IdleTimeout)

	reaped, err := jan.manager.ReapIdle(ctx, cutoff)
	if err != nil {
		logger.Err(fmt.Sprintf("Janitor: error while reaping idle sessions: %s", err.Error()))
		return
	}
	if jan.announceNoAction || len(reaped) != 0 {
		logger.Info(fmt.Sprintf("Janitor: force-ended %d idle sessions", len(reaped)))
	}
}

// DeepCleanDatabase forces gorm to delete all "deleted" entries
func (jan *Janitor) DeepCleanDatabase(deepcleanModels *[]any) {
	if deepcleanModels == nil {
		deepcleanModels = &[]any{
			models.User{},
			models.Session{},
			models.Lab{},
			models.Credit{},
			models.Print{},
			models.Purpose{},
		}
	}
	for _, deepcleanModel := range *deepcleanModels {
		result := jan.database.Unscoped().Where("deleted_at IS NOT NULL").Delete(deepcleanModel)
		if result.Error != nil {
			logger.Err(fmt.Sprintf("Janitor: Error while deepcleaning model %T: %s", deepcleanModel, result.Error.Error()))
		} else {
			if jan.announceNoAction || result.RowsAffected != 0 {
				logger.Info(fmt.Sprintf("Janitor: Deleted %d rows from model %T", result.RowsAffected, deepcleanModel))
			}
		}
	}
}
