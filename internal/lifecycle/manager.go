// Package lifecycle implements the session state machine: a session is
// created active (no end time), accrues a provisional fee on every
// heartbeat, and on end folds its final fee into the owning user's
// ledger while releasing the lab.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/faults"
	"github.com/CLDWare/labtrack-backend/internal/fees"
	"github.com/CLDWare/labtrack-backend/internal/labs"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

// Hooks are best-effort callbacks fired after a state transition has
// committed. They must never block or fail the transition; failures are
// the hook implementation's problem to log.
type Hooks struct {
	NetworkUp        func()
	NetworkDown      func()
	LabStatusChanged func(labName string, busy bool)
}

func (h Hooks) networkUp() {
	if h.NetworkUp != nil {
		go h.NetworkUp()
	}
}

func (h Hooks) networkDown() {
	if h.NetworkDown != nil {
		go h.NetworkDown()
	}
}

func (h Hooks) labStatusChanged(labName string, busy bool) {
	if h.LabStatusChanged != nil {
		h.LabStatusChanged(labName, busy)
	}
}

// Manager orchestrates session transitions against the session store,
// the user ledger and the lab registry.
type Manager struct {
	db     *gorm.DB
	policy fees.Policy
	hooks  Hooks
	now    func() time.Time
}

func NewManager(cfg *config.Config, db *gorm.DB, hooks Hooks) *Manager {
	return &Manager{
		db: db,
		policy: fees.Policy{
			UnitSeconds:     cfg.Billing.UnitSeconds,
			FeePerUnit:      cfg.Billing.FeePerUnit,
			MinimumFee:      cfg.Billing.MinimumFee,
			MaxBillableTime: cfg.Billing.MaxBillableTime,
		},
		hooks: hooks,
		now:   time.Now,
	}
}

// StartInput carries the parameters of a session start.
type StartInput struct {
	UserID  uint
	LabID   string
	Purpose string
	Online  bool
	// Admin callers bypass the lab-busy check.
	Admin bool
}

// Start opens a session for the user. Fails with Conflict when the user
// already holds an active session or (for non-admin callers) when the lab
// is busy. Both invariants are enforced by the storage layer: the partial
// unique index on active sessions and a conditional UPDATE on the lab row.
func (m *Manager) Start(ctx context.Context, in StartInput) (models.Session, error) {
	if in.LabID == "" || in.Purpose == "" {
		return models.Session{}, faults.InvalidInput("labId and purpose are required")
	}

	now := m.now()
	session := models.Session{
		UserID:           in.UserID,
		LabID:            in.LabID,
		Purpose:          in.Purpose,
		Online:           in.Online,
		StartTime:        now,
		LastActivityTime: now,
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, in.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return faults.NotFound("no user with id %d", in.UserID)
			}
			return err
		}
		session.AdmissionNumber = user.AdmissionNumber

		if err := labs.Claim(tx, in.LabID, in.Admin); err != nil {
			return err
		}

		if err := tx.Create(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return faults.Conflict("active session already exists for user %d", in.UserID)
			}
			return err
		}

		return tx.Model(&models.User{}).Where("id = ?", in.UserID).
			Updates(map[string]any{"last_login_at": now, "last_login_lab": in.LabID}).Error
	})
	if err != nil {
		return models.Session{}, err
	}

	m.hooks.labStatusChanged(in.LabID, true)
	if !in.Online {
		m.hooks.networkDown()
	}
	return session, nil
}

// Heartbeat recomputes the active session's provisional duration and fee.
// It touches neither the user ledger nor the lab; the fee stays
// provisional until the session ends.
func (m *Manager) Heartbeat(ctx context.Context, userID uint) (models.Session, error) {
	session, err := m.ActiveSession(ctx, userID)
	if err != nil {
		return models.Session{}, err
	}

	now := m.now()
	session.Duration = now.Sub(session.StartTime).Milliseconds()
	if session.Duration < 0 {
		session.Duration = 0
	}
	session.UsageFee = 0
	if session.Online {
		session.UsageFee = m.policy.UsageFee(session.StartTime, now)
	}
	session.LastActivityTime = now

	err = m.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND end_time IS NULL", session.ID).
		Updates(map[string]any{
			"duration":           session.Duration,
			"usage_fee":          session.UsageFee,
			"last_activity_time": now,
		}).Error
	if err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// End closes the caller's active session, folds the final fee into the
// user ledger and frees the lab, all in one transaction.
func (m *Manager) End(ctx context.Context, userID uint) (models.Session, error) {
	var session models.Session
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND end_time IS NULL", userID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no active session for user %d", userID)
		}
		if err != nil {
			return err
		}
		return m.finalize(tx, &session, m.now())
	})
	if err != nil {
		return models.Session{}, err
	}

	m.hooks.labStatusChanged(session.LabID, false)
	m.hooks.networkUp()
	return session, nil
}

// ForceEnd closes an arbitrary session by id. A billed session is ended
// at its last heartbeat so the user is not charged for time after the
// kiosk went away; a non-billed session posts a zero fee either way.
func (m *Manager) ForceEnd(ctx context.Context, sessionID uint) (models.Session, error) {
	var session models.Session
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&session, sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no session with id %d", sessionID)
		}
		if err != nil {
			return err
		}
		if session.EndTime != nil {
			return faults.Conflict("session %d already ended", sessionID)
		}

		endAt := m.now()
		if session.Online && !session.LastActivityTime.IsZero() && session.LastActivityTime.After(session.StartTime) {
			endAt = session.LastActivityTime
		}
		return m.finalize(tx, &session, endAt)
	})
	if err != nil {
		return models.Session{}, err
	}

	m.hooks.labStatusChanged(session.LabID, false)
	m.hooks.networkUp()
	return session, nil
}

// finalize stamps the end time, computes the definitive fee, folds it
// into the user ledger and releases the lab. Runs inside the caller's
// transaction.
func (m *Manager) finalize(tx *gorm.DB, session *models.Session, endAt time.Time) error {
	duration := endAt.Sub(session.StartTime).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	fee := 0.0
	if session.Online {
		fee = m.policy.UsageFee(session.StartTime, endAt)
	}

	// end_time IS NULL guards against a concurrent end of the same row.
	result := tx.Model(&models.Session{}).
		Where("id = ? AND end_time IS NULL", session.ID).
		Updates(map[string]any{
			"end_time":  endAt,
			"duration":  duration,
			"usage_fee": fee,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return faults.Conflict("session %d already ended", session.ID)
	}
	session.EndTime = &endAt
	session.Duration = duration
	session.UsageFee = fee

	var user models.User
	if err := tx.First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no user with id %d", session.UserID)
		}
		return err
	}
	err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"total_usage":     user.TotalUsage + duration,
		"total_usage_fee": fees.RoundTwo(user.TotalUsageFee + fee),
		"net_balance":     fees.RoundTwo(user.NetBalance - fee),
	}).Error
	if err != nil {
		return err
	}

	return labs.Release(tx, session.LabID)
}

// AdjustMode selects the bulk fee adjustment applied by AdjustFees.
type AdjustMode string

const (
	AdjustRemove AdjustMode = "remove" // set the fee to zero
	AdjustHalve  AdjustMode = "halve"  // cut the fee in half
)

// AdjustResult reports the outcome for one session in a bulk adjustment.
type AdjustResult struct {
	SessionID uint   `json:"sessionId"`
	Err       string `json:"error,omitempty"`
}

// AdjustFees applies the adjustment to each session independently, one
// transaction per session, so a bad row never aborts the rest of the
// batch. The returned slice holds one entry per requested id.
func (m *Manager) AdjustFees(ctx context.Context, sessionIDs []uint, mode AdjustMode) ([]AdjustResult, error) {
	if mode != AdjustRemove && mode != AdjustHalve {
		return nil, faults.InvalidInput("unknown adjustment mode %q", mode)
	}
	if len(sessionIDs) == 0 {
		return nil, faults.InvalidInput("no session ids given")
	}

	results := make([]AdjustResult, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		res := AdjustResult{SessionID: id}
		if err := m.adjustOne(ctx, id, mode); err != nil {
			res.Err = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *Manager) adjustOne(ctx context.Context, sessionID uint, mode AdjustMode) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		err := tx.First(&session, sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.NotFound("no session with id %d", sessionID)
		}
		if err != nil {
			return err
		}

		newFee := 0.0
		if mode == AdjustHalve {
			newFee = fees.RoundTwo(session.UsageFee * 0.5)
		}
		delta := fees.RoundTwo(session.UsageFee - newFee)
		if delta == 0 {
			return nil
		}

		err = tx.Model(&models.Session{}).Where("id = ?", sessionID).
			Update("usage_fee", newFee).Error
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.First(&user, session.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return faults.NotFound("no user with id %d", session.UserID)
			}
			return err
		}
		// The fee shrinks, so the net balance grows by the same delta.
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"total_usage_fee": fees.RoundTwo(user.TotalUsageFee - delta),
			"net_balance":     fees.RoundTwo(user.NetBalance + delta),
		}).Error
	})
}

// ActiveSession returns the user's active session, if any.
func (m *Manager) ActiveSession(ctx context.Context, userID uint) (models.Session, error) {
	var session models.Session
	err := m.db.WithContext(ctx).Where("user_id = ? AND end_time IS NULL", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Session{}, faults.NotFound("no active session for user %d", userID)
	}
	return session, err
}

// ReapIdle force-ends every active session whose last heartbeat is older
// than the cutoff. Used by the janitor. Returns the ids it closed.
func (m *Manager) ReapIdle(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var stale []models.Session
	err := m.db.WithContext(ctx).
		Where("end_time IS NULL AND last_activity_time < ?", cutoff).
		Find(&stale).Error
	if err != nil {
		return nil, err
	}

	reaped := make([]uint, 0, len(stale))
	for _, session := range stale {
		if _, err := m.ForceEnd(ctx, session.ID); err != nil {
			// Another path may have closed it in the meantime.
			if errors.Is(err, faults.ErrConflict) {
				continue
			}
			return reaped, err
		}
		reaped = append(reaped, session.ID)
	}
	return reaped, nil
}
