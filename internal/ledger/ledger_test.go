package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/faults"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
)

var testDBCounter int

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:ledger%d?mode=memory&cache=shared", testDBCounter)
	db, err := models.InitialiseDatabase(dsn)
	if err != nil {
		t.Fatalf("initialise database: %v", err)
	}

	return NewLedger(config.Get(), db)
}

func seedUser(t *testing.T, l *Ledger, admissionNumber string) models.User {
	t.Helper()
	user := models.User{AdmissionNumber: admissionNumber, Name: "Test User", Class: "4A"}
	if err := l.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func loadUser(t *testing.T, l *Ledger, id uint) models.User {
	t.Helper()
	var user models.User
	if err := l.db.First(&user, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user
}

func TestAddCredit(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	credit, err := l.AddCredit(ctx, user.ID, 5.005, "term top-up")
	if err != nil {
		t.Fatalf("add credit: %v", err)
	}
	if credit.Amount != 5.01 {
		t.Errorf("amount = %v, want 5.01 after rounding", credit.Amount)
	}

	after := loadUser(t, l, user.ID)
	if after.CreditBalance != 5.01 {
		t.Errorf("credit balance = %v, want 5.01", after.CreditBalance)
	}
	if after.NetBalance != 5.01 {
		t.Errorf("net balance = %v, want 5.01", after.NetBalance)
	}

	if _, err := l.AddCredit(ctx, user.ID, 0, ""); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("zero amount: expected invalid input, got %v", err)
	}
	if _, err := l.AddCredit(ctx, 9999, 1, ""); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("unknown user: expected not found, got %v", err)
	}
}

func TestUpdateCredit_ReappliesDelta(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	credit, err := l.AddCredit(ctx, user.ID, 10, "")
	if err != nil {
		t.Fatalf("add credit: %v", err)
	}

	newAmount := 4.0
	updated, err := l.UpdateCredit(ctx, credit.ID, CreditPatch{Amount: &newAmount})
	if err != nil {
		t.Fatalf("update credit: %v", err)
	}
	if updated.Amount != 4 {
		t.Errorf("amount = %v, want 4", updated.Amount)
	}

	// The old amount is subtracted before the new one is added, so the
	// balances reflect only the corrected record.
	after := loadUser(t, l, user.ID)
	if after.CreditBalance != 4 {
		t.Errorf("credit balance = %v, want 4", after.CreditBalance)
	}
	if after.NetBalance != 4 {
		t.Errorf("net balance = %v, want 4", after.NetBalance)
	}

	if _, err := l.UpdateCredit(ctx, credit.ID, CreditPatch{}); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("empty patch: expected invalid input, got %v", err)
	}
	if _, err := l.UpdateCredit(ctx, 9999, CreditPatch{Amount: &newAmount}); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("unknown credit: expected not found, got %v", err)
	}
}

func TestDeleteCredit_ReversesBalances(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	credit, err := l.AddCredit(ctx, user.ID, 7.5, "")
	if err != nil {
		t.Fatalf("add credit: %v", err)
	}
	if err := l.DeleteCredit(ctx, credit.ID); err != nil {
		t.Fatalf("delete credit: %v", err)
	}

	after := loadUser(t, l, user.ID)
	if after.CreditBalance != 0 || after.NetBalance != 0 {
		t.Errorf("balances not reversed: credit %v net %v", after.CreditBalance, after.NetBalance)
	}

	if err := l.DeleteCredit(ctx, credit.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("double delete: expected not found, got %v", err)
	}
}

func TestAddPrint_ChargePerPaperSource(t *testing.T) {
	tests := []struct {
		name       string
		pages      int
		pageByUser bool
		wantAmount float64
	}{
		{"lab paper costs double", 3, false, 6},
		{"user paper costs single", 3, true, 3},
		{"single page lab paper", 1, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			user := seedUser(t, l, "2024001")

			print, err := l.AddPrint(context.Background(), user.ID, tt.pages, tt.pageByUser)
			if err != nil {
				t.Fatalf("add print: %v", err)
			}
			if print.Amount != tt.wantAmount {
				t.Errorf("amount = %v, want %v", print.Amount, tt.wantAmount)
			}

			after := loadUser(t, l, user.ID)
			if after.TotalPrint != tt.pages {
				t.Errorf("total print = %v, want %v", after.TotalPrint, tt.pages)
			}
			if after.TotalPrintFee != tt.wantAmount {
				t.Errorf("total print fee = %v, want %v", after.TotalPrintFee, tt.wantAmount)
			}
			if after.NetBalance != -tt.wantAmount {
				t.Errorf("net balance = %v, want %v", after.NetBalance, -tt.wantAmount)
			}
		})
	}
}

func TestAddPrint_RejectsNonPositivePages(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")

	if _, err := l.AddPrint(context.Background(), user.ID, 0, false); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestUpdatePrint_RecomputesCharge(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	print, err := l.AddPrint(ctx, user.ID, 4, false) // 8.00 on lab paper
	if err != nil {
		t.Fatalf("add print: %v", err)
	}

	pages := 2
	pageByUser := true
	updated, err := l.UpdatePrint(ctx, print.ID, PrintPatch{Pages: &pages, PageByUser: &pageByUser})
	if err != nil {
		t.Fatalf("update print: %v", err)
	}
	if updated.Amount != 2 {
		t.Errorf("amount = %v, want 2", updated.Amount)
	}

	after := loadUser(t, l, user.ID)
	if after.TotalPrint != 2 {
		t.Errorf("total print = %v, want 2", after.TotalPrint)
	}
	if after.TotalPrintFee != 2 {
		t.Errorf("total print fee = %v, want 2", after.TotalPrintFee)
	}
	if after.NetBalance != -2 {
		t.Errorf("net balance = %v, want -2", after.NetBalance)
	}
}

func TestDeletePrint_ReversesTotals(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	print, err := l.AddPrint(ctx, user.ID, 5, false)
	if err != nil {
		t.Fatalf("add print: %v", err)
	}
	if err := l.DeletePrint(ctx, print.ID); err != nil {
		t.Fatalf("delete print: %v", err)
	}

	after := loadUser(t, l, user.ID)
	if after.TotalPrint != 0 || after.TotalPrintFee != 0 || after.NetBalance != 0 {
		t.Errorf("totals not reversed: pages %v fee %v net %v", after.TotalPrint, after.TotalPrintFee, after.NetBalance)
	}
}

func TestStatistics_EmptyRangeReportsZeros(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	creditStats, err := l.CreditStatistics(ctx, DateRange{})
	if err != nil {
		t.Fatalf("credit stats: %v", err)
	}
	if creditStats.TotalCredits != 0 || creditStats.AverageCredit != 0 || creditStats.Count != 0 {
		t.Errorf("credit stats on empty table = %+v, want zeros", creditStats)
	}

	printStats, err := l.PrintStatistics(ctx, DateRange{})
	if err != nil {
		t.Fatalf("print stats: %v", err)
	}
	if printStats.TotalPages != 0 || printStats.TotalAmount != 0 || printStats.Count != 0 {
		t.Errorf("print stats on empty table = %+v, want zeros", printStats)
	}
}

func TestNetBalanceCombinesAllThreeStreams(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	if _, err := l.AddCredit(ctx, user.ID, 10, ""); err != nil {
		t.Fatalf("add credit: %v", err)
	}
	if _, err := l.AddPrint(ctx, user.ID, 2, false); err != nil { // 4.00
		t.Fatalf("add print: %v", err)
	}

	after := loadUser(t, l, user.ID)
	if after.NetBalance != 6 {
		t.Errorf("net balance = %v, want 6", after.NetBalance)
	}
}

func TestDeleteUserCascade(t *testing.T) {
	l := newTestLedger(t)
	user := seedUser(t, l, "2024001")
	ctx := context.Background()

	if _, err := l.AddCredit(ctx, user.ID, 5, ""); err != nil {
		t.Fatalf("add credit: %v", err)
	}
	if _, err := l.AddPrint(ctx, user.ID, 1, true); err != nil {
		t.Fatalf("add print: %v", err)
	}

	if err := l.DeleteUserCascade(ctx, user.ID); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}

	var count int64
	l.db.Model(&models.Credit{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d credits survived the cascade", count)
	}
	l.db.Model(&models.Print{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d prints survived the cascade", count)
	}
	if err := l.db.First(&models.User{}, user.ID).Error; err == nil {
		t.Error("user survived the cascade")
	}

	if err := l.DeleteUserCascade(ctx, user.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("deleting a deleted user: expected not found, got %v", err)
	}
}
