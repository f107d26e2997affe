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

// PrintPatch is the closed set of updatable print fields.
type PrintPatch struct {
	Pages      *int
	PageByUser *bool
}

// PrintStats aggregates print records over a date range.
type PrintStats struct {
	TotalPages   int64   `json:"totalPages"`
	TotalAmount  float64 `json:"totalAmount"`
	AveragePages float64 `json:"averagePages"`
	Count        int64   `json:"count"`
}

// AddPrint records a print job, derives its charge from the page count
// and paper source, and applies it to the user's totals.
func (l *Ledger) AddPrint(ctx context.Context, userID uint, pages int, pageByUser bool) (models.Print, error) {
	if pages <= 0 {
		return models.Print{}, faults.InvalidInput("page count must be positive")
	}

	amount := l.PrintAmount(pages, pageByUser)
	print := models.Print{
		UserID:     userID,
		Pages:      pages,
		Amount:     amount,
		Date:       time.Now(),
		PageByUser: pageByUser,
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := userByID(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Create(&print).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"total_print":     user.TotalPrint + pages,
			"total_print_fee": fees.RoundTwo(user.TotalPrintFee + amount),
			"net_balance":     fees.RoundTwo(user.NetBalance - amount),
		}).Error
	})
	return print, err
}

// UpdatePrint edits a print record and re-adjusts the user's totals by
// subtracting the record's previous contribution before adding the new.
func (l *Ledger) UpdatePrint(ctx context.Context, printID uint, patch PrintPatch) (models.Print, error) {
	var print models.Print
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&print, printID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no print with id %d", printID)
		}
		if err != nil {
			return err
		}
		if patch.Pages == nil && patch.PageByUser == nil {
			return faults.InvalidInput("no updatable print fields given")
		}

		prevPages, prevAmount := print.Pages, print.Amount
		if patch.Pages != nil {
			if *patch.Pages <= 0 {
				return faults.InvalidInput("page count must be positive")
			}
			print.Pages = *patch.Pages
		}
		if patch.PageByUser != nil {
			print.PageByUser = *patch.PageByUser
		}
		print.Amount = l.PrintAmount(print.Pages, print.PageByUser)

		user, err := userByID(tx, print.UserID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"total_print":     user.TotalPrint - prevPages + print.Pages,
			"total_print_fee": fees.RoundTwo(user.TotalPrintFee - prevAmount + print.Amount),
			"net_balance":     fees.RoundTwo(user.NetBalance + prevAmount - print.Amount),
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.Print{}).Where("id = ?", printID).Updates(map[string]any{
			"pages":        print.Pages,
			"amount":       print.Amount,
			"page_by_user": print.PageByUser,
		}).Error
	})
	return print, err
}

// DeletePrint reverses the record's contribution to the user's totals
// and removes it.
func (l *Ledger) DeletePrint(ctx context.Context, printID uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var print models.Print
		err := tx.First(&print, printID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no print with id %d", printID)
		}
		if err != nil {
			return err
		}

		user, err := userByID(tx, print.UserID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"total_print":     user.TotalPrint - print.Pages,
			"total_print_fee": fees.RoundTwo(user.TotalPrintFee - print.Amount),
			"net_balance":     fees.RoundTwo(user.NetBalance + print.Amount),
		}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Print{}, printID).Error
	})
}

// Prints lists print records newest-first, optionally filtered to one
// user, with the total page count.
func (l *Ledger) Prints(ctx context.Context, userID uint, page Page) ([]models.Print, int, error) {
	page = page.normalize()

	query := l.db.WithContext(ctx).Model(&models.Print{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var prints []models.Print
	err := query.Order("date DESC").
		Limit(page.Limit).
		Offset((page.Number - 1) * page.Limit).
		Preload("User").
		Find(&prints).Error
	if err != nil {
		return nil, 0, err
	}
	return prints, totalPages(total, page.Limit), nil
}

// AllPrints lists every print record newest-first.
func (l *Ledger) AllPrints(ctx context.Context) ([]models.Print, error) {
	var prints []models.Print
	err := l.db.WithContext(ctx).Order("date DESC").Preload("User").Find(&prints).Error
	return prints, err
}

// PrintStatistics aggregates prints in the range, zeros on empty.
func (l *Ledger) PrintStatistics(ctx context.Context, dateRange DateRange) (PrintStats, error) {
	var stats PrintStats
	query := dateRange.apply(l.db.WithContext(ctx).Model(&models.Print{}))
	err := query.Select(
		"COALESCE(SUM(pages), 0) AS total_pages",
		"COALESCE(SUM(amount), 0) AS total_amount",
		"COALESCE(AVG(pages), 0) AS average_pages",
		"COUNT(*) AS count",
	).Scan(&stats).Error
	if err != nil {
		return PrintStats{}, err
	}
	stats.TotalAmount = fees.RoundTwo(stats.TotalAmount)
	stats.AveragePages = fees.RoundTwo(stats.AveragePages)
	return stats, nil
}
