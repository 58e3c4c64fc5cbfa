package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
)

// ListVehiclesResponse lists the fleet.
type ListVehiclesResponse struct {
	Vehicles []services.VehicleSummary `json:"vehicles"`
}

// ListVehicles godoc
// @ID          listVehicles
// @Summary     List vehicles
// @Description Supports a weak ETag via If-None-Match.
// @Tags        Vehicles
// @Produce     json
// @Param       If-None-Match  header  string  false "Previously returned ETag"
// @Success     200  {object}  handlers.ListVehiclesResponse
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /vehicles [get]
func (h *Handlers) ListVehicles(c *gin.Context) {
	ctx := c.Request.Context()
	if h.db != nil {
		if n, latest, err := repo.VehiclesStats(ctx, h.db); err == nil {
			if notModified(c, weakETag("vehicles", n, latest)) {
				return
			}
		}
	}
	vs, err := h.vehicles.List(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListVehiclesResponse{Vehicles: vs})
}

// MaintenanceStatus godoc
// @ID          maintenanceStatus
// @Summary     Maintenance status of a vehicle
// @Description Every schedule entry with its last service and its ok / due_soon / overdue status.
// @Tags        Vehicles
// @Produce     json
// @Param       id  path  string  true  "Vehicle ID"  format(uuid)
// @Success     200  {object}  services.MaintenanceStatus
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /vehicles/{id}/maintenance-status [get]
func (h *Handlers) MaintenanceStatus(c *gin.Context) {
	id, valid := parseUUIDParam(c, "id", "vehicle")
	if !valid {
		return
	}
	st, err := h.vehicles.MaintenanceStatus(c.Request.Context(), id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, st)
	case errors.Is(err, services.ErrVehicleNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "vehicle not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// InvoiceImage godoc
// @ID          invoiceImage
// @Summary     Stored invoice image
// @Description The normalized JPEG kept for an invoice that was recorded from a photo.
// @Tags        Vehicles
// @Produce     jpeg
// @Param       id  path  string  true  "Invoice ID"  format(uuid)
// @Success     200  {file}    binary
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /invoices/{id}/image [get]
func (h *Handlers) InvoiceImage(c *gin.Context) {
	id, valid := parseUUIDParam(c, "id", "invoice")
	if !valid {
		return
	}
	data, mime, err := h.vehicles.InvoiceImage(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrInvoiceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "invoice not found")
		return
	case errors.Is(err, services.ErrNoImage):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "invoice has no image")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	// stored images never change once written
	if notModified(c, fmt.Sprintf(`"invoice-%s-%d"`, id, len(data))) {
		return
	}
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, mime, data)
}
