package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/internal/faults"
	"github.com/CLDWare/labtrack-backend/internal/fees"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

// CreditPatch is the closed set of updatable credit fields. Nil means
// leave the field alone.
type CreditPatch struct {
	Amount *float64
	Notes  *string
}

// CreditStats aggregates credit records over a date range.
type CreditStats struct {
	TotalCredits  float64 `json:"totalCredits"`
	AverageCredit float64 `json:"averageCredit"`
	Count         int64   `json:"count"`
}

// AddCredit records a balance top-up and applies it to the user's credit
// and net balances.
func (l *Ledger) AddCredit(ctx context.Context, userID uint, amount float64, notes string) (models.Credit, error) {
	if amount == 0 {
		return models.Credit{}, faults.InvalidInput("credit amount is required")
	}
	amount = fees.RoundTwo(amount)

	credit := models.Credit{
		UserID: userID,
		Amount: amount,
		Date:   time.Now(),
		Notes:  notes,
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := userByID(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Create(&credit).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"credit_balance": fees.RoundTwo(user.CreditBalance + amount),
			"net_balance":    fees.RoundTwo(user.NetBalance + amount),
		}).Error
	})
	return credit, err
}

// UpdateCredit edits a credit record, re-adjusting the user's balances by
// subtracting the previous amount before adding the new one.
func (l *Ledger) UpdateCredit(ctx context.Context, creditID uint, patch CreditPatch) (models.Credit, error) {
	var credit models.Credit
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&credit, creditID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no credit with id %d", creditID)
		}
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if patch.Notes != nil {
			credit.Notes = *patch.Notes
			updates["notes"] = *patch.Notes
		}
		if patch.Amount != nil {
			prev := credit.Amount
			next := fees.RoundTwo(*patch.Amount)

			user, err := userByID(tx, credit.UserID)
			if err != nil {
				return err
			}
			err = tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
				"credit_balance": fees.RoundTwo(user.CreditBalance - prev + next),
				"net_balance":    fees.RoundTwo(user.NetBalance - prev + next),
			}).Error
			if err != nil {
				return err
			}
			credit.Amount = next
			updates["amount"] = next
		}
		if len(updates) == 0 {
			return faults.InvalidInput("no updatable credit fields given")
		}
		return tx.Model(&models.Credit{}).Where("id = ?", creditID).Updates(updates).Error
	})
	return credit, err
}

// DeleteCredit reverses the record's contribution to the user's balances
// and removes it.
func (l *Ledger) DeleteCredit(ctx context.Context, creditID uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credit models.Credit
		err := tx.First(&credit, creditID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no credit with id %d", creditID)
		}
		if err != nil {
			return err
		}

		user, err := userByID(tx, credit.UserID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"credit_balance": fees.RoundTwo(user.CreditBalance - credit.Amount),
			"net_balance":    fees.RoundTwo(user.NetBalance - credit.Amount),
		}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Credit{}, creditID).Error
	})
}

// Credits lists credit records newest-first, optionally filtered to one
// user, with the total page count.
func (l *Ledger) Credits(ctx context.Context, userID uint, page Page) ([]models.Credit, int, error) {
	page = page.normalize()

	query := l.db.WithContext(ctx).Model(&models.Credit{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var credits []models.Credit
	err := query.Order("date DESC").
		Limit(page.Limit).
		Offset((page.Number - 1) * page.Limit).
		Preload("User").
		Find(&credits).Error
	if err != nil {
		return nil, 0, err
	}
	return credits, totalPages(total, page.Limit), nil
}

// AllCredits lists every credit record newest-first.
func (l *Ledger) AllCredits(ctx context.Context) ([]models.Credit, error) {
	var credits []models.Credit
	err := l.db.WithContext(ctx).Order("date DESC").Preload("User").Find(&credits).Error
	return credits, err
}

// CreditStatistics aggregates credits in the range. An empty range result
// reports zeros rather than an error.
func (l *Ledger) CreditStatistics(ctx context.Context, dateRange DateRange) (CreditStats, error) {
	var stats CreditStats
	query := dateRange.apply(l.db.WithContext(ctx).Model(&models.Credit{}))
	err := query.Select(
		"COALESCE(SUM(amount), 0) AS total_credits",
		"COALESCE(AVG(amount), 0) AS average_credit",
		"COUNT(*) AS count",
	).Scan(&stats).Error
	if err != nil {
		return CreditStats{}, err
	}
	stats.TotalCredits = fees.RoundTwo(stats.TotalCredits)
	stats.AverageCredit = fees.RoundTwo(stats.AverageCredit)
	return stats, nil
}
