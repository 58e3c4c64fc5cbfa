package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// Store binds the free repository functions to one *gorm.DB so they can be
// handed to layers that work against interfaces (the assistant's document
// store and the OCR cache's persistent tier).
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

func (s *Store) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return ListVehicles(ctx, s.DB)
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	return GetVehicle(ctx, s.DB, id)
}

func (s *Store) CreateVehicle(ctx context.Context, v *domain.Vehicle) error {
	return CreateVehicle(ctx, s.DB, v)
}

func (s *Store) UpdateVehicle(ctx context.Context, id string, patch map[string]any) (*domain.Vehicle, error) {
	return UpdateVehicle(ctx, s.DB, id, patch)
}

func (s *Store) DeleteVehicle(ctx context.Context, id string) (DeleteCounts, error) {
	return DeleteVehicle(ctx, s.DB, id)
}

func (s *Store) SetSchedule(ctx context.Context, vehicleID string, items []domain.ScheduleItem) error {
	return SetCustomSchedule(ctx, s.DB, vehicleID, items)
}

func (s *Store) InsertInvoice(ctx context.Context, w InvoiceWrite, check DuplicateCheck) (*domain.Invoice, error) {
	return InsertInvoice(ctx, s.DB, w, check)
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return GetInvoice(ctx, s.DB, id)
}

func (s *Store) ListInvoices(ctx context.Context, vehicleID string) ([]domain.Invoice, error) {
	return ListInvoicesByVehicle(ctx, s.DB, vehicleID)
}

func (s *Store) ListInvoicesWithOCR(ctx context.Context) ([]domain.Invoice, error) {
	return ListInvoicesWithOCR(ctx, s.DB)
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) (int64, error) {
	return DeleteInvoice(ctx, s.DB, id)
}

func (s *Store) InsertMaintenance(ctx context.Context, e *domain.MaintenanceEntry) error {
	return InsertMaintenance(ctx, s.DB, e)
}

func (s *Store) ListMaintenance(ctx context.Context, vehicleID string) ([]domain.MaintenanceEntry, error) {
	return ListMaintenanceByVehicle(ctx, s.DB, vehicleID)
}

// GetOCR reports ok=false on a cache miss rather than an error.
func (s *Store) GetOCR(ctx context.Context, hash string) (string, bool, error) {
	text, err := GetOCR(ctx, s.DB, hash)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (s *Store) PutOCR(ctx context.Context, hash, markdown string) error {
	return PutOCR(ctx, s.DB, hash, markdown)
}

func (s *Store) ListOCR(ctx context.Context, hashes []string) ([]domain.OCRCacheEntry, error) {
	return ListOCR(ctx, s.DB, hashes)
}
