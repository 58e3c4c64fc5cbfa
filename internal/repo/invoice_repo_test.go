package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

func sameWorkshop(inv *domain.Invoice) DuplicateCheck {
	return func(existing []domain.Invoice) *domain.Invoice {
		for i := range existing {
			if existing[i].WorkshopName == inv.WorkshopName {
				return &existing[i]
			}
		}
		return nil
	}
}

func newInvoice(vehicleID string, mileage int) *domain.Invoice {
	return &domain.Invoice{
		VehicleID: vehicleID, WorkshopName: "Autohaus Nord", Date: "2024-05-02",
		TotalAmount: 410.5, Currency: "EUR", MileageAtService: mileage,
		Items: datatypes.NewJSONSlice([]domain.LineItem{
			{Description: "Oil change", Category: domain.CategoryOilChange, Amount: 120},
			{Description: "Brake pads", Category: domain.CategoryBrakes, Amount: 290.5},
		}),
	}
}

func entriesFor(inv *domain.Invoice) []domain.MaintenanceEntry {
	out := make([]domain.MaintenanceEntry, 0, len(inv.Items))
	for _, it := range inv.Items {
		out = append(out, domain.MaintenanceEntry{Type: it.Category, Description: it.Description, DoneAt: inv.Date, MileageAtService: inv.MileageAtService, Status: domain.StatusDone})
	}
	return out
}

func TestInsertInvoice_DuplicateWritesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	v := seedVehicle(t, db, 50000)

	first := newInvoice(v.ID, 52000)
	conflict, err := InsertInvoice(ctx, db, InvoiceWrite{Invoice: first, Entries: entriesFor(first)}, sameWorkshop(first))
	if err != nil || conflict != nil {
		t.Fatalf("first insert: conflict=%v err=%v", conflict, err)
	}

	second := newInvoice(v.ID, 52000)
	conflict, err = InsertInvoice(ctx, db, InvoiceWrite{Invoice: second, Entries: entriesFor(second)}, sameWorkshop(second))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if conflict == nil || conflict.ID != first.ID {
		t.Fatalf("want conflict with %s, got %+v", first.ID, conflict)
	}

	invs, _ := ListInvoicesByVehicle(ctx, db, v.ID)
	if len(invs) != 1 {
		t.Fatalf("want 1 invoice, got %d", len(invs))
	}
	ms, _ := ListMaintenanceByVehicle(ctx, db, v.ID)
	if len(ms) != 2 {
		t.Fatalf("want 2 maintenance entries, got %d", len(ms))
	}
	for _, m := range ms {
		if m.InvoiceID == nil || *m.InvoiceID != first.ID {
			t.Fatalf("entry not linked to invoice: %+v", m)
		}
	}
}

func TestInsertInvoice_UnknownVehicle(t *testing.T) {
	db := newTestDB(t)
	inv := newInvoice("missing", 1)
	if _, err := InsertInvoice(context.Background(), db, InvoiceWrite{Invoice: inv}, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMileage_NeverDecreases(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	v := seedVehicle(t, db, 60000)

	if err := InsertMaintenance(ctx, db, &domain.MaintenanceEntry{VehicleID: v.ID, Type: domain.CategoryTires, DoneAt: "2024-01-01", MileageAtService: 55000, Status: domain.StatusDone}); err != nil {
		t.Fatalf("InsertMaintenance: %v", err)
	}
	got, _ := GetVehicle(ctx, db, v.ID)
	if got.Mileage != 60000 {
		t.Fatalf("lower mileage changed vehicle: %d", got.Mileage)
	}

	inv := newInvoice(v.ID, 61500)
	if _, err := InsertInvoice(ctx, db, InvoiceWrite{Invoice: inv}, nil); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	got, _ = GetVehicle(ctx, db, v.ID)
	if got.Mileage != 61500 {
		t.Fatalf("mileage = %d, want 61500", got.Mileage)
	}

	var invCount int64
	db.Model(&domain.Invoice{}).Count(&invCount)
	if invCount != 1 {
		t.Fatalf("standalone maintenance must not create invoices, got %d", invCount)
	}
}

func TestDeleteInvoice_CascadesEntries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	v := seedVehicle(t, db, 1000)
	inv := newInvoice(v.ID, 1200)
	if _, err := InsertInvoice(ctx, db, InvoiceWrite{Invoice: inv, Entries: entriesFor(inv)}, nil); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	_ = InsertMaintenance(ctx, db, &domain.MaintenanceEntry{VehicleID: v.ID, Type: domain.CategoryGlass, Status: domain.StatusDone})

	n, err := DeleteInvoice(ctx, db, inv.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteInvoice = %d, %v", n, err)
	}
	ms, _ := ListMaintenanceByVehicle(ctx, db, v.ID)
	if len(ms) != 1 || ms[0].Type != domain.CategoryGlass {
		t.Fatalf("standalone entry should survive: %+v", ms)
	}
	if _, err := DeleteInvoice(ctx, db, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestDeleteVehicle_ReturnsCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	v := seedVehicle(t, db, 1000)
	inv := newInvoice(v.ID, 1200)
	_, _ = InsertInvoice(ctx, db, InvoiceWrite{Invoice: inv, Entries: entriesFor(inv)}, nil)
	_ = InsertMaintenance(ctx, db, &domain.MaintenanceEntry{VehicleID: v.ID, Type: domain.CategoryGlass, Status: domain.StatusDone})

	c, err := DeleteVehicle(ctx, db, v.ID)
	if err != nil {
		t.Fatalf("DeleteVehicle: %v", err)
	}
	if c.Vehicles != 1 || c.Invoices != 1 || c.Maintenances != 3 {
		t.Fatalf("counts = %+v", c)
	}
	if _, err := DeleteVehicle(ctx, db, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateVehicle_AndSchedule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	v := seedVehicle(t, db, 1000)

	got, err := UpdateVehicle(ctx, db, v.ID, map[string]any{"license_plate": "SG 218574"})
	if err != nil || got.LicensePlate != "SG 218574" {
		t.Fatalf("UpdateVehicle = %+v, %v", got, err)
	}
	if _, err := UpdateVehicle(ctx, db, "nope", map[string]any{"year": 2000}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	items := []domain.ScheduleItem{{Type: domain.CategoryOilChange, Label: "Oil", IntervalKm: 25000, IntervalMonths: 24}}
	if err := SetCustomSchedule(ctx, db, v.ID, items); err != nil {
		t.Fatalf("SetCustomSchedule: %v", err)
	}
	got, _ = GetVehicle(ctx, db, v.ID)
	if !got.HasCustomSchedule() || got.CustomSchedule[0].IntervalKm != 25000 {
		t.Fatalf("schedule = %+v", got.CustomSchedule)
	}
}

func TestOCR_AppendOnly(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	if _, ok, err := s.GetOCR(ctx, "h1"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if err := s.PutOCR(ctx, "h1", "first"); err != nil {
		t.Fatalf("PutOCR: %v", err)
	}
	if err := s.PutOCR(ctx, "h1", "second"); err != nil {
		t.Fatalf("PutOCR again: %v", err)
	}
	text, ok, err := s.GetOCR(ctx, "h1")
	if err != nil || !ok || text != "first" {
		t.Fatalf("GetOCR = %q %v %v", text, ok, err)
	}
	entries, err := s.ListOCR(ctx, []string{"h1", "h2"})
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListOCR = %v %v", entries, err)
	}
}
