package lifecycle

import (
	"context"
	"math"
	"time"

	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

// ListFilter narrows and paginates session listings.
type ListFilter struct {
	Search    string // matched against the admission number snapshot
	UserID    uint
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// List returns sessions newest-first with the filter applied, plus the
// total page count for the filter.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]models.Session, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	query := m.db.WithContext(ctx).Model(&models.Session{})
	if filter.Search != "" {
		query = query.Where("admission_number LIKE ?", "%"+filter.Search+"%")
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.StartDate != nil {
		query = query.Where("start_time >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("start_time <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.Session
	err := query.Order("start_time DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	return sessions, totalPages, nil
}

// All returns every session newest-first, unpaginated.
func (m *Manager) All(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := m.db.WithContext(ctx).Order("start_time DESC").Find(&sessions).Error
	return sessions, err
}
