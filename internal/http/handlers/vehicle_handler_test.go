package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
)

func TestListVehicles(t *testing.T) {
	env := newTestEnv(t)
	env.vehicles.list = []services.VehicleSummary{{ID: "v1", Make: "BMW", Model: "320d", Year: 2019, Mileage: 84000}}

	w := env.do(t, http.MethodGet, "/vehicles", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ListVehiclesResponse
	decode(t, w, &resp)
	if len(resp.Vehicles) != 1 || resp.Vehicles[0].Name() != "BMW 320d" {
		t.Fatalf("unexpected vehicles: %+v", resp.Vehicles)
	}

	etag := w.Header().Get("ETag")
	if w := env.do(t, http.MethodGet, "/vehicles", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}

	if err := env.db.Create(&domain.Vehicle{ID: uuid.NewString(), Make: "Audi", Model: "A4", Year: 2020}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if w := env.do(t, http.MethodGet, "/vehicles", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusOK {
		t.Fatalf("ETag must change with the fleet, got %d", w.Code)
	}

	env.vehicles.err = errors.New("db down")
	if w := env.do(t, http.MethodGet, "/vehicles", nil, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
}

func TestMaintenanceStatus(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	env.vehicles.status[id] = services.MaintenanceStatus{VehicleID: id, Vehicle: "Porsche 911", Mileage: 42000}

	w := env.do(t, http.MethodGet, "/vehicles/"+id+"/maintenance-status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var st services.MaintenanceStatus
	decode(t, w, &st)
	if st.Vehicle != "Porsche 911" || st.Mileage != 42000 {
		t.Fatalf("unexpected status: %+v", st)
	}

	if w := env.do(t, http.MethodGet, "/vehicles/"+uuid.NewString()+"/maintenance-status", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown vehicle: %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/vehicles/abc/maintenance-status", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
}

func TestInvoiceImage(t *testing.T) {
	env := newTestEnv(t)
	withImage, withoutImage := uuid.NewString(), uuid.NewString()
	env.vehicles.images[withImage] = []byte{0xff, 0xd8, 0xff}
	env.vehicles.images[withoutImage] = nil

	w := env.do(t, http.MethodGet, "/invoices/"+withImage+"/image", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" || w.Body.Len() != 3 {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
	if w.Header().Get("Cache-Control") != "private, max-age=86400" {
		t.Fatalf("cache-control = %q", w.Header().Get("Cache-Control"))
	}
	etag := w.Header().Get("ETag")
	if w := env.do(t, http.MethodGet, "/invoices/"+withImage+"/image", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}

	for _, id := range []string{withoutImage, uuid.NewString()} {
		if w := env.do(t, http.MethodGet, "/invoices/"+id+"/image", nil, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s: want 404, got %d", id, w.Code)
		}
	}
}
