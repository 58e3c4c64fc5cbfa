package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/storage"
)

// VehicleService backs the read-only vehicle and invoice endpoints. All
// writes happen through tools.
type VehicleService struct {
	Store  DocumentStore
	Images storage.ImageStore
	Now    func() time.Time
}

// NewVehicleService returns a VehicleService. images defaults to inline storage.
func NewVehicleService(store DocumentStore, images storage.ImageStore) *VehicleService {
	if images == nil {
		images = storage.DBImageStore{}
	}
	return &VehicleService{Store: store, Images: images, Now: time.Now}
}

// List returns every vehicle.
func (s *VehicleService) List(ctx context.Context) ([]VehicleSummary, error) {
	ctx, span := otel.Tracer("services/VehicleService").Start(ctx, "List")
	defer span.End()

	vs, err := s.Store.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]VehicleSummary, 0, len(vs))
	for _, v := range vs {
		out = append(out, summarizeVehicle(v))
	}
	return out, nil
}

// MaintenanceStatus evaluates the schedule of one vehicle.
func (s *VehicleService) MaintenanceStatus(ctx context.Context, vehicleID string) (MaintenanceStatus, error) {
	ctx, span := otel.Tracer("services/VehicleService").Start(ctx, "MaintenanceStatus",
		trace.WithAttributes(attribute.String("vehicle.id", vehicleID)))
	defer span.End()

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	st, err := vehicleStatus(ctx, s.Store, vehicleID, now)
	if errors.Is(err, repo.ErrNotFound) {
		return MaintenanceStatus{}, ErrVehicleNotFound
	}
	return st, err
}

// InvoiceImage returns the stored normalized image of an invoice.
func (s *VehicleService) InvoiceImage(ctx context.Context, invoiceID string) ([]byte, string, error) {
	ctx, span := otel.Tracer("services/VehicleService").Start(ctx, "InvoiceImage",
		trace.WithAttributes(attribute.String("invoice.id", invoiceID)))
	defer span.End()

	inv, err := s.Store.GetInvoice(ctx, invoiceID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, "", ErrInvoiceNotFound
	}
	if err != nil {
		return nil, "", err
	}
	data, mime, err := s.Images.Get(ctx, inv)
	if errors.Is(err, storage.ErrNoImage) {
		return nil, "", ErrNoImage
	}
	return data, mime, err
}
