// Package labs tracks the busy/free flag per lab and the machines
// assigned to each lab name.
package labs

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/internal/faults"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

// Registry is the lab registry backed by the shared database.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Register records a machine under a lab name. Idempotent: a machine
// already registered under the same name only refreshes its last-active
// timestamp; a machine registered under a different name is reassigned.
// Returns the effective lab name.
func (reg *Registry) Register(ctx context.Context, computerId, labName string) (string, error) {
	if computerId == "" || labName == "" {
		return "", faults.InvalidInput("computerId and labName are required")
	}

	lab, err := gorm.G[models.Lab](reg.db).Where("computer_id = ?", computerId).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		lab = models.Lab{
			ComputerID: computerId,
			Name:       labName,
			LastActive: time.Now(),
		}
		if err := gorm.G[models.Lab](reg.db).Create(ctx, &lab); err != nil {
			return "", err
		}
		return lab.Name, nil
	}
	if err != nil {
		return "", err
	}

	updates := map[string]any{"last_active": time.Now()}
	if lab.Name != labName {
		updates["name"] = labName
		lab.Name = labName
	}
	if err := reg.db.WithContext(ctx).Model(&models.Lab{}).Where("id = ?", lab.ID).Updates(updates).Error; err != nil {
		return "", err
	}
	return lab.Name, nil
}

// GetMachine looks a lab up by the machine identifier.
func (reg *Registry) GetMachine(ctx context.Context, computerId string) (models.Lab, error) {
	lab, err := gorm.G[models.Lab](reg.db).Where("computer_id = ?", computerId).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Lab{}, faults.NotFound("no machine with id %q", computerId)
	}
	return lab, err
}

// Status looks a lab up by name. With several machines sharing a name the
// lab counts as busy when any of its rows is busy.
func (reg *Registry) Status(ctx context.Context, labName string) (models.Lab, error) {
	lab, err := gorm.G[models.Lab](reg.db).Where("name = ?", labName).Order("status DESC").First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Lab{}, faults.NotFound("no lab named %q", labName)
	}
	return lab, err
}

// All returns every registered machine with its status.
func (reg *Registry) All(ctx context.Context) ([]models.Lab, error) {
	return gorm.G[models.Lab](reg.db).Order("name ASC, computer_id ASC").Find(ctx)
}

// SetStatus is the admin override for a lab's busy flag.
func (reg *Registry) SetStatus(ctx context.Context, labName string, status bool) (models.Lab, error) {
	result := reg.db.WithContext(ctx).Model(&models.Lab{}).
		Where("name = ?", labName).
		Updates(map[string]any{"status": status, "last_active": time.Now()})
	if result.Error != nil {
		return models.Lab{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Lab{}, faults.NotFound("no lab named %q", labName)
	}
	return reg.Status(ctx, labName)
}

// Claim flips a free lab to busy inside the caller's transaction. Unless
// force is set, a lab that is already busy rejects the claim with
// Conflict. The UPDATE is conditional on the current status so two
// concurrent claims cannot both win.
func Claim(tx *gorm.DB, labName string, force bool) error {
	query := tx.Model(&models.Lab{}).Where("name = ?", labName)
	if !force {
		query = query.Where("status = ?", false).
			Where("NOT EXISTS (SELECT 1 FROM labs busy WHERE busy.name = ? AND busy.status = ? AND busy.deleted_at IS NULL)",
				labName, true)
	}
	result := query.Updates(map[string]any{"status": true, "last_active": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Lab{}).Where("name = ?", labName).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return faults.NotFound("no lab named %q", labName)
		}
		return faults.Conflict("lab %q is already active", labName)
	}
	return nil
}

// Release flips a lab back to free inside the caller's transaction.
func Release(tx *gorm.DB, labName string) error {
	result := tx.Model(&models.Lab{}).Where("name = ?", labName).
		Updates(map[string]any{"status": false, "last_active": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return faults.NotFound("no lab named %q", labName)
	}
	return nil
}
