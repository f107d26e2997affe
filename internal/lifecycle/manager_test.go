package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/faults"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

var testDBCounter int

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	// A named shared-cache memory database so every pooled connection
	// sees the same data, unique per test for isolation.
	testDBCounter++
	dsn := fmt.Sprintf("file:lifecycle%d?mode=memory&cache=shared", testDBCounter)
	db, err := models.InitialiseDatabase(dsn)
	if err != nil {
		t.Fatalf("initialise database: %v", err)
	}

	return NewManager(config.Get(), db, Hooks{})
}

func seedUser(t *testing.T, m *Manager, admissionNumber string) models.User {
	t.Helper()
	user := models.User{AdmissionNumber: admissionNumber, Name: "Test User", Class: "4A"}
	if err := m.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedLab(t *testing.T, m *Manager, computerId, name string) models.Lab {
	t.Helper()
	lab := models.Lab{ComputerID: computerId, Name: name}
	if err := m.db.Create(&lab).Error; err != nil {
		t.Fatalf("seed lab: %v", err)
	}
	return lab
}

func (m *Manager) userByIDForTest(t *testing.T, id uint) models.User {
	t.Helper()
	var user models.User
	if err := m.db.First(&user, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user
}

func TestStart_SecondStartConflicts(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	seedLab(t, m, "pc-02", "Lab B")
	ctx := context.Background()

	if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true}); err != nil {
		t.Fatalf("first start: %v", err)
	}

	// Admin bypasses the lab-busy check, so only the one-active-session
	// invariant can reject this.
	_, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab B", Purpose: "Internet", Online: true, Admin: true})
	if !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict on second start, got %v", err)
	}
}

func TestStart_BusyLabConflicts(t *testing.T) {
	m := newTestManager(t)
	first := seedUser(t, m, "2024001")
	second := seedUser(t, m, "2024002")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	if _, err := m.Start(ctx, StartInput{UserID: first.ID, LabID: "Lab A", Purpose: "Internet", Online: true}); err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err := m.Start(ctx, StartInput{UserID: second.ID, LabID: "Lab A", Purpose: "Internet", Online: true})
	if !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict on busy lab, got %v", err)
	}
}

func TestStart_UnknownUserOrLab(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	if _, err := m.Start(ctx, StartInput{UserID: 9999, LabID: "Lab A", Purpose: "Internet", Online: true}); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("unknown user: expected not found, got %v", err)
	}
	if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab Z", Purpose: "Internet", Online: true}); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("unknown lab: expected not found, got %v", err)
	}
	if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "", Purpose: "Internet", Online: true}); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("empty lab: expected invalid input, got %v", err)
	}
}

func TestEnd_FeePerBillingUnit(t *testing.T) {
	tests := []struct {
		name        string
		elapsed     time.Duration
		wantFee     float64
		wantDuration int64
	}{
		{"65 seconds rounds up to 11 units", 65 * time.Second, 0.11, 65000},
		{"130 seconds rounds up to 22 units", 130 * time.Second, 0.22, 130000},
		{"exactly one unit", 6 * time.Second, 0.01, 6000},
		{"zero elapsed still bills the minimum", 0, 0.01, 0},
		{"capped at one hour", 2 * time.Hour, 6.00, 7200000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			user := seedUser(t, m, "2024001")
			seedLab(t, m, "pc-01", "Lab A")
			ctx := context.Background()

			start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
			m.now = func() time.Time { return start }

			if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true}); err != nil {
				t.Fatalf("start: %v", err)
			}

			m.now = func() time.Time { return start.Add(tt.elapsed) }
			session, err := m.End(ctx, user.ID)
			if err != nil {
				t.Fatalf("end: %v", err)
			}

			if session.UsageFee != tt.wantFee {
				t.Errorf("fee = %v, want %v", session.UsageFee, tt.wantFee)
			}
			if session.Duration != tt.wantDuration {
				t.Errorf("duration = %v ms, want %v ms", session.Duration, tt.wantDuration)
			}

			after := m.userByIDForTest(t, user.ID)
			if after.TotalUsageFee != tt.wantFee {
				t.Errorf("user total usage fee = %v, want %v", after.TotalUsageFee, tt.wantFee)
			}
			if after.NetBalance != -tt.wantFee {
				t.Errorf("user net balance = %v, want %v", after.NetBalance, -tt.wantFee)
			}
			if after.TotalUsage != session.Duration {
				t.Errorf("user total usage = %v, want %v", after.TotalUsage, session.Duration)
			}
		})
	}
}

func TestEnd_OfflineSessionBillsZero(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Offline", Online: false}); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.now = func() time.Time { return start.Add(45 * time.Minute) }
	session, err := m.End(ctx, user.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}

	if session.UsageFee != 0 {
		t.Errorf("offline fee = %v, want 0", session.UsageFee)
	}
	if session.Duration != int64(45*time.Minute/time.Millisecond) {
		t.Errorf("duration = %v", session.Duration)
	}

	after := m.userByIDForTest(t, user.ID)
	if after.NetBalance != 0 || after.TotalUsageFee != 0 {
		t.Errorf("offline session touched the ledger: fee %v balance %v", after.TotalUsageFee, after.NetBalance)
	}
}

func TestEnd_ReleasesLab(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	var lab models.Lab
	m.db.Where("name = ?", "Lab A").First(&lab)
	if !lab.Status {
		t.Fatal("lab should be busy after start")
	}

	if _, err := m.End(ctx, user.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	m.db.Where("name = ?", "Lab A").First(&lab)
	if lab.Status {
		t.Error("lab should be free after end")
	}
}

func TestEnd_NoActiveSession(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")

	if _, err := m.End(context.Background(), user.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHeartbeat_UpdatesProvisionalFeeOnly(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	if _, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.now = func() time.Time { return start.Add(65 * time.Second) }
	session, err := m.Heartbeat(ctx, user.ID)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	if session.UsageFee != 0.11 {
		t.Errorf("provisional fee = %v, want 0.11", session.UsageFee)
	}
	if !session.LastActivityTime.Equal(start.Add(65 * time.Second)) {
		t.Errorf("last activity = %v", session.LastActivityTime)
	}

	// The ledger must stay untouched until the session ends.
	after := m.userByIDForTest(t, user.ID)
	if after.TotalUsageFee != 0 || after.NetBalance != 0 {
		t.Errorf("heartbeat touched the ledger: fee %v balance %v", after.TotalUsageFee, after.NetBalance)
	}
}

func TestForceEnd_BillsToLastHeartbeat(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	session, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	m.now = func() time.Time { return start.Add(60 * time.Second) }
	if _, err := m.Heartbeat(ctx, user.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	// The kiosk goes silent; the force-end happens much later but the
	// fee covers only the time up to the last heartbeat.
	m.now = func() time.Time { return start.Add(30 * time.Minute) }
	ended, err := m.ForceEnd(ctx, session.ID)
	if err != nil {
		t.Fatalf("force end: %v", err)
	}

	if ended.UsageFee != 0.10 {
		t.Errorf("fee = %v, want 0.10", ended.UsageFee)
	}
	if ended.Duration != 60000 {
		t.Errorf("duration = %v, want 60000", ended.Duration)
	}
}

func TestForceEnd_AlreadyEnded(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	session, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.End(ctx, user.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	if _, err := m.ForceEnd(ctx, session.ID); !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAdjustFees(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "2024001")
	seedLab(t, m, "pc-01", "Lab A")
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	session, err := m.Start(ctx, StartInput{UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	m.now = func() time.Time { return start.Add(130 * time.Second) }
	if _, err := m.End(ctx, user.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	// fee is now 0.22, net balance -0.22

	results, err := m.AdjustFees(ctx, []uint{session.ID, 9999}, AdjustHalve)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err != "" {
		t.Errorf("first session should succeed, got %q", results[0].Err)
	}
	if results[1].Err == "" {
		t.Error("unknown session should report an error")
	}

	var halved models.Session
	m.db.First(&halved, session.ID)
	if halved.UsageFee != 0.11 {
		t.Errorf("halved fee = %v, want 0.11", halved.UsageFee)
	}
	after := m.userByIDForTest(t, user.ID)
	if after.TotalUsageFee != 0.11 {
		t.Errorf("user total usage fee = %v, want 0.11", after.TotalUsageFee)
	}
	if after.NetBalance != -0.11 {
		t.Errorf("user net balance = %v, want -0.11", after.NetBalance)
	}

	if _, err := m.AdjustFees(ctx, []uint{session.ID}, AdjustRemove); err != nil {
		t.Fatalf("remove: %v", err)
	}
	m.db.First(&halved, session.ID)
	if halved.UsageFee != 0 {
		t.Errorf("removed fee = %v, want 0", halved.UsageFee)
	}
	after = m.userByIDForTest(t, user.ID)
	if after.TotalUsageFee != 0 || after.NetBalance != 0 {
		t.Errorf("ledger not reconciled: fee %v balance %v", after.TotalUsageFee, after.NetBalance)
	}

	if _, err := m.AdjustFees(ctx, []uint{session.ID}, AdjustMode("triple")); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("unknown mode: expected invalid input, got %v", err)
	}
	if _, err := m.AdjustFees(ctx, nil, AdjustRemove); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("empty batch: expected invalid input, got %v", err)
	}
}

func TestReapIdle(t *testing.T) {
	m := newTestManager(t)
	stale := seedUser(t, m, "2024001")
	fresh := seedUser(t, m, "2024002")
	seedLab(t, m, "pc-01", "Lab A")
	seedLab(t, m, "pc-02", "Lab B")
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	staleSession, err := m.Start(ctx, StartInput{UserID: stale.ID, LabID: "Lab A", Purpose: "Internet", Online: true})
	if err != nil {
		t.Fatalf("start stale: %v", err)
	}

	m.now = func() time.Time { return start.Add(10 * time.Minute) }
	if _, err := m.Start(ctx, StartInput{UserID: fresh.ID, LabID: "Lab B", Purpose: "Internet", Online: true}); err != nil {
		t.Fatalf("start fresh: %v", err)
	}

	reaped, err := m.ReapIdle(ctx, start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reaped) != 1 || reaped[0] != staleSession.ID {
		t.Fatalf("reaped = %v, want [%d]", reaped, staleSession.ID)
	}

	// The stale session is closed and its lab freed; the fresh one
	// keeps running.
	var lab models.Lab
	m.db.Where("name = ?", "Lab A").First(&lab)
	if lab.Status {
		t.Error("Lab A should be free after reaping")
	}
	if _, err := m.ActiveSession(ctx, fresh.ID); err != nil {
		t.Errorf("fresh session should survive: %v", err)
	}
	if _, err := m.ActiveSession(ctx, stale.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("stale session should be gone, got %v", err)
	}
}
