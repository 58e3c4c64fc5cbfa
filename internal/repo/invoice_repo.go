package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// DuplicateCheck inspects the invoices already stored for the same vehicle
// and date and returns the conflicting one, or nil.
type DuplicateCheck func(existing []domain.Invoice) *domain.Invoice

// InvoiceWrite bundles everything one add-invoice call persists.
type InvoiceWrite struct {
	Invoice *domain.Invoice
	Entries []domain.MaintenanceEntry
}

// InsertInvoice runs check against same-day invoices of the vehicle and, when
// it reports no conflict, inserts the invoice, its maintenance entries and
// advances the vehicle mileage, all in one transaction. On conflict nothing
// is written and the existing invoice is returned.
func InsertInvoice(ctx context.Context, db *gorm.DB, w InvoiceWrite, check DuplicateCheck) (conflict *domain.Invoice, err error) {
	inv := w.Invoice
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := GetVehicle(ctx, tx, inv.VehicleID); err != nil {
			return err
		}
		if check != nil {
			var sameDay []domain.Invoice
			if err := tx.Omit("image_data").
				Where("vehicle_id = ? AND date = ?", inv.VehicleID, inv.Date).
				Find(&sameDay).Error; err != nil {
				return err
			}
			if dup := check(sameDay); dup != nil {
				conflict = dup
				return nil
			}
		}
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		for i := range w.Entries {
			e := &w.Entries[i]
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			e.VehicleID = inv.VehicleID
			e.InvoiceID = &inv.ID
		}
		if len(w.Entries) > 0 {
			if err := tx.Create(&w.Entries).Error; err != nil {
				return err
			}
		}
		_, err := AdvanceMileage(ctx, tx, inv.VehicleID, inv.MileageAtService)
		return err
	})
	return conflict, err
}

// GetInvoice fetches an invoice including its stored image bytes.
func GetInvoice(ctx context.Context, db *gorm.DB, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoicesByVehicle returns a vehicle's invoices, newest first, without
// image bytes.
func ListInvoicesByVehicle(ctx context.Context, db *gorm.DB, vehicleID string) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := db.WithContext(ctx).
		Omit("image_data").
		Where("vehicle_id = ?", vehicleID).
		Order("date DESC, created_at DESC").
		Find(&out).Error
	return out, err
}

// ListInvoicesWithOCR returns all invoices linked to cached OCR text.
func ListInvoicesWithOCR(ctx context.Context, db *gorm.DB) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := db.WithContext(ctx).
		Omit("image_data").
		Where("ocr_cache_id IS NOT NULL AND ocr_cache_id <> ''").
		Order("date DESC").
		Find(&out).Error
	return out, err
}

// DeleteInvoice removes an invoice and its derived maintenance entries and
// returns the number of entries removed.
func DeleteInvoice(ctx context.Context, db *gorm.DB, id string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("invoice_id = ?", id).Delete(&domain.MaintenanceEntry{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		res = tx.Where("id = ?", id).Delete(&domain.Invoice{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return n, err
}

// InsertMaintenance stores a standalone maintenance entry (no invoice) and
// advances the vehicle mileage in one transaction.
func InsertMaintenance(ctx context.Context, db *gorm.DB, e *domain.MaintenanceEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := GetVehicle(ctx, tx, e.VehicleID); err != nil {
			return err
		}
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		_, err := AdvanceMileage(ctx, tx, e.VehicleID, e.MileageAtService)
		return err
	})
}

// ListMaintenanceByVehicle returns a vehicle's maintenance history, newest first.
func ListMaintenanceByVehicle(ctx context.Context, db *gorm.DB, vehicleID string) ([]domain.MaintenanceEntry, error) {
	var out []domain.MaintenanceEntry
	err := db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("done_at DESC, mileage_at_service DESC").
		Find(&out).Error
	return out, err
}
