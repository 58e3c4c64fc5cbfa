package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// DeleteCounts reports how many rows a cascading delete removed.
type DeleteCounts struct {
	Vehicles     int64 `json:"vehicles"`
	Invoices     int64 `json:"invoices"`
	Maintenances int64 `json:"maintenances"`
}

// CreateVehicle inserts v, assigning an id when missing.
func CreateVehicle(ctx context.Context, db *gorm.DB, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(v).Error
}

// ListVehicles returns every vehicle, oldest first.
func ListVehicles(ctx context.Context, db *gorm.DB) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// GetVehicle fetches a vehicle by id.
func GetVehicle(ctx context.Context, db *gorm.DB, id string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVehicle applies a column patch and returns the updated row.
func UpdateVehicle(ctx context.Context, db *gorm.DB, id string, patch map[string]any) (*domain.Vehicle, error) {
	var out *domain.Vehicle
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Vehicle{}).Where("id = ?", id).Updates(patch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		v, err := GetVehicle(ctx, tx, id)
		out = v
		return err
	})
	return out, err
}

// SetCustomSchedule stores a vehicle-specific interval table.
func SetCustomSchedule(ctx context.Context, db *gorm.DB, id string, items []domain.ScheduleItem) error {
	res := db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Where("id = ?", id).
		Update("custom_schedule", datatypes.NewJSONSlice(items))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceMileage raises the vehicle's mileage to m when m is larger and
// reports whether a change happened. Mileage is never lowered.
func AdvanceMileage(ctx context.Context, db *gorm.DB, id string, m int) (bool, error) {
	if m <= 0 {
		return false, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Where("id = ? AND mileage < ?", id, m).
		Updates(map[string]any{"mileage": m, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// DeleteVehicle removes a vehicle with its invoices and maintenance entries
// in one transaction.
func DeleteVehicle(ctx context.Context, db *gorm.DB, id string) (DeleteCounts, error) {
	var c DeleteCounts
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("vehicle_id = ?", id).Delete(&domain.MaintenanceEntry{})
		if res.Error != nil {
			return res.Error
		}
		c.Maintenances = res.RowsAffected

		res = tx.Where("vehicle_id = ?", id).Delete(&domain.Invoice{})
		if res.Error != nil {
			return res.Error
		}
		c.Invoices = res.RowsAffected

		res = tx.Where("id = ?", id).Delete(&domain.Vehicle{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		c.Vehicles = res.RowsAffected
		return nil
	})
	if err != nil {
		return DeleteCounts{}, err
	}
	return c, nil
}
