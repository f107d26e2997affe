// Package ledger maintains the per-user running totals and the
// append-only credit and print records behind them. Every mutation
// applies the reconciliation rule: subtract the old contribution before
// adding the new one, in the same transaction as the record change.
package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/faults"
	"github.com/CLDWare/labtrack-backend/internal/fees"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

// Ledger owns the credit and print records and the user aggregates they
// roll up into.
type Ledger struct {
	db               *gorm.DB
	printFeeUserPage float64
	printFeeLabPage  float64
}

func NewLedger(cfg *config.Config, db *gorm.DB) *Ledger {
	return &Ledger{
		db:               db,
		printFeeUserPage: cfg.Billing.PrintFeeUserPage,
		printFeeLabPage:  cfg.Billing.PrintFeeLabPage,
	}
}

// PrintAmount derives the charge for a print job. The per-page rate
// depends on who supplied the paper.
func (l *Ledger) PrintAmount(pages int, pageByUser bool) float64 {
	rate := l.printFeeLabPage
	if pageByUser {
		rate = l.printFeeUserPage
	}
	return fees.RoundTwo(float64(pages) * rate)
}

func userByID(tx *gorm.DB, id uint) (models.User, error) {
	var user models.User
	if err := tx.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, faults.NotFound("no user with id %d", id)
		}
		return models.User{}, err
	}
	return user, nil
}

// Pagination shared by the record listings.
type Page struct {
	Number int
	Limit  int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	return p
}

func totalPages(total int64, limit int) int {
	return int(math.Ceil(float64(total) / float64(limit)))
}

// DateRange bounds a stats query. Either side may be nil.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r DateRange) apply(query *gorm.DB) *gorm.DB {
	if r.Start != nil {
		query = query.Where("date >= ?", *r.Start)
	}
	if r.End != nil {
		query = query.Where("date <= ?", *r.End)
	}
	return query
}

// DeleteUserCascade removes a user together with every session, credit
// and print record owned by them. Admin-only at the API layer.
func (l *Ledger) DeleteUserCascade(ctx context.Context, userID uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := userByID(tx, userID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Credit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Print{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}
