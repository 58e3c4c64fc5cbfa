package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/rules"
	"github.com/tbourn/go-vehicle-assistant/internal/schedule"
)

var vinRE = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// normalizeVIN uppercases and strips separators. A non-empty value that is
// not a 17 character VIN (a license plate, typically) is rejected.
func normalizeVIN(s string) (string, bool) {
	v := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s)))
	if v == "" {
		return "", true
	}
	return v, vinRE.MatchString(v)
}

func vehicleIDParam() map[string]any {
	return nonEmpty("Vehicle id from the vehicle list")
}

func (r *Registry) registerVehicleTools() {
	r.add(&Tool{
		Name:        ToolListVehicles,
		Description: "Lists all vehicles.",
		Params:      object(map[string]any{}),
		Run:         r.listVehicles,
	})
	r.add(&Tool{
		Name:        ToolAddVehicle,
		Description: "Adds a vehicle. Ask for missing required fields (make, model, year).",
		Params: object(map[string]any{
			"make":          nonEmpty("Make, e.g. BMW, Audi, VW"),
			"model":         nonEmpty("Model, e.g. 320d, A4, Golf"),
			"year":          integer("Model year", 1900),
			"mileage":       integer("Current mileage in km", 0),
			"license_plate": str("License plate"),
			"vin":           str("Vehicle identification number, exactly 17 characters"),
		}, "make", "model", "year"),
		Run: r.addVehicle,
	})
	r.add(&Tool{
		Name:        ToolUpdateVehicle,
		Description: "Updates vehicle fields. Only the given fields change.",
		Params: object(map[string]any{
			"vehicle_id":    vehicleIDParam(),
			"make":          nonEmpty("New make"),
			"model":         nonEmpty("New model"),
			"year":          integer("New model year", 1900),
			"mileage":       integer("New mileage in km", 0),
			"license_plate": str("New license plate"),
			"vin":           str("New VIN"),
		}, "vehicle_id"),
		Run: r.updateVehicle,
	})
	r.add(&Tool{
		Name:        ToolDeleteVehicle,
		Description: "Deletes a vehicle together with all of its invoices and maintenance entries.",
		Params:      object(map[string]any{"vehicle_id": vehicleIDParam()}, "vehicle_id"),
		Run:         r.deleteVehicle,
	})
	r.add(&Tool{
		Name:        ToolGetVehicle,
		Description: "Shows a vehicle with its invoices and maintenance history.",
		Params:      object(map[string]any{"vehicle_id": vehicleIDParam()}, "vehicle_id"),
		Run:         r.getVehicle,
	})
	r.add(&Tool{
		Name:        ToolMaintenanceStatus,
		Description: "Checks which maintenance items of a vehicle are done, due or overdue.",
		Params:      object(map[string]any{"vehicle_id": vehicleIDParam()}, "vehicle_id"),
		Run:         r.maintenanceStatus,
	})
	r.add(&Tool{
		Name:        ToolSetSchedule,
		Description: "Stores the manufacturer maintenance intervals of a vehicle, read from its service book.",
		Params: object(map[string]any{
			"vehicle_id": vehicleIDParam(),
			"schedule": array(object(map[string]any{
				"type":            categoryEnum("Maintenance category"),
				"label":           nonEmpty(`Description, e.g. "Engine oil + filter"`),
				"interval_km":     integer("Interval in km (0 when time based only)", 0),
				"interval_months": integer("Interval in months (0 when mileage based only)", 0),
			}, "type", "label", "interval_km", "interval_months"), "Intervals from the service book", 1),
		}, "vehicle_id", "schedule"),
		Run: r.setSchedule,
	})
}

func (r *Registry) listVehicles(ctx context.Context, _ *Env, _ json.RawMessage) (domain.ToolResult, error) {
	vs, err := r.Store.ListVehicles(ctx)
	if err != nil {
		return domain.ToolResult{}, err
	}
	list := VehicleList{Vehicles: make([]VehicleSummary, 0, len(vs))}
	for _, v := range vs {
		list.Vehicles = append(list.Vehicles, summarizeVehicle(v))
	}
	return succeeded(domain.KindVehicleList, list, "%d vehicle(s)", len(vs)), nil
}

type vehicleArgs struct {
	VehicleID    string       `json:"vehicle_id"`
	Make         *string      `json:"make"`
	Model        *string      `json:"model"`
	Year         *wholeNumber `json:"year"`
	Mileage      *wholeNumber `json:"mileage"`
	LicensePlate *string      `json:"license_plate"`
	VIN          *string      `json:"vin"`
}

func (r *Registry) addVehicle(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a vehicleArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	v := &domain.Vehicle{
		Make:  strings.TrimSpace(deref(a.Make)),
		Model: strings.TrimSpace(deref(a.Model)),
		Year:  int(derefNum(a.Year)),
	}
	v.Mileage = int(derefNum(a.Mileage))
	v.LicensePlate = strings.TrimSpace(deref(a.LicensePlate))
	vin, valid := normalizeVIN(deref(a.VIN))
	if !valid {
		return invalid("%q is not a VIN (17 characters); license plates go into license_plate", deref(a.VIN)), nil
	}
	v.VIN = vin

	if err := r.Store.CreateVehicle(ctx, v); err != nil {
		return domain.ToolResult{}, err
	}
	return succeeded(domain.KindVehicleCreated, summarizeVehicle(*v), "Vehicle added: %s %s", v.Make, v.Model), nil
}

func (r *Registry) updateVehicle(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a vehicleArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	before, err := r.Store.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}

	patch := map[string]any{}
	var changes []FieldChange
	set := func(column string, from, to any) {
		patch[column] = to
		changes = append(changes, FieldChange{Field: column, Before: from, After: to})
	}
	if a.Make != nil {
		set("make", before.Make, strings.TrimSpace(*a.Make))
	}
	if a.Model != nil {
		set("model", before.Model, strings.TrimSpace(*a.Model))
	}
	if a.Year != nil {
		set("year", before.Year, int(*a.Year))
	}
	if a.Mileage != nil {
		set("mileage", before.Mileage, int(*a.Mileage))
	}
	if a.LicensePlate != nil {
		set("license_plate", before.LicensePlate, strings.TrimSpace(*a.LicensePlate))
	}
	if a.VIN != nil {
		vin, valid := normalizeVIN(*a.VIN)
		if !valid {
			return invalid("%q is not a VIN (17 characters)", *a.VIN), nil
		}
		set("vin", before.VIN, vin)
	}
	if len(patch) == 0 {
		return invalid("no fields to update"), nil
	}

	after, err := r.Store.UpdateVehicle(ctx, a.VehicleID, patch)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	data := FieldsChanged{VehicleID: after.ID, Vehicle: after.Make + " " + after.Model, Changes: changes}
	return succeeded(domain.KindFieldsChanged, data, "%s updated", data.Vehicle), nil
}

type vehicleIDArgs struct {
	VehicleID string `json:"vehicle_id"`
}

func (r *Registry) deleteVehicle(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a vehicleIDArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	v, err := r.Store.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	invoices, err := r.Store.ListInvoices(ctx, v.ID)
	if err != nil {
		return domain.ToolResult{}, err
	}

	counts, err := r.Store.DeleteVehicle(ctx, v.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	for i := range invoices {
		r.dropImage(ctx, &invoices[i])
	}

	data := RecordsDeleted{Record: "vehicle", Name: v.Make + " " + v.Model, Invoices: counts.Invoices, Maintenances: counts.Maintenances}
	return succeeded(domain.KindRecordsDeleted, data, "Vehicle deleted: %s", data.Name), nil
}

func (r *Registry) getVehicle(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a vehicleIDArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	v, err := r.Store.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	invoices, err := r.Store.ListInvoices(ctx, v.ID)
	if err != nil {
		return domain.ToolResult{}, err
	}
	history, err := r.Store.ListMaintenance(ctx, v.ID)
	if err != nil {
		return domain.ToolResult{}, err
	}

	d := VehicleDetails{
		Vehicle:     summarizeVehicle(*v),
		Invoices:    make([]InvoiceSummary, 0, len(invoices)),
		Maintenance: make([]MaintenanceSummary, 0, len(history)),
	}
	for _, inv := range invoices {
		d.Invoices = append(d.Invoices, summarizeInvoice(inv))
	}
	for _, m := range history {
		d.Maintenance = append(d.Maintenance, summarizeMaintenance(m))
	}
	return succeeded(domain.KindVehicleDetails, d, "%s %s (%d)", v.Make, v.Model, v.Year), nil
}

func (r *Registry) maintenanceStatus(ctx context.Context, env *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a vehicleIDArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	st, err := vehicleStatus(ctx, r.Store, a.VehicleID, env.Now)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	return succeeded(domain.KindMaintenanceStatus, st, "%s: %d overdue, %d due",
		st.Vehicle, st.Count(domain.StatusOverdue), st.Count(domain.StatusDue)), nil
}

// vehicleStatus runs the scheduler for one vehicle.
func vehicleStatus(ctx context.Context, store DocumentStore, vehicleID string, now time.Time) (MaintenanceStatus, error) {
	v, err := store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return MaintenanceStatus{}, err
	}
	history, err := store.ListMaintenance(ctx, v.ID)
	if err != nil {
		return MaintenanceStatus{}, err
	}
	items, source := schedule.Resolve(v.CustomSchedule, v.Make)
	return MaintenanceStatus{
		VehicleID:         v.ID,
		Vehicle:           v.Make + " " + v.Model,
		Mileage:           v.Mileage,
		Source:            source,
		HasCustomSchedule: v.HasCustomSchedule(),
		Entries:           schedule.DueStatus(now, v.Mileage, history, items),
	}, nil
}

type scheduleArgs struct {
	VehicleID string `json:"vehicle_id"`
	Schedule  []struct {
		Type           string      `json:"type"`
		Label          string      `json:"label"`
		IntervalKm     wholeNumber `json:"interval_km"`
		IntervalMonths wholeNumber `json:"interval_months"`
	} `json:"schedule"`
}

func (r *Registry) setSchedule(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a scheduleArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	items := make([]domain.ScheduleItem, 0, len(a.Schedule))
	for _, s := range a.Schedule {
		if s.IntervalKm <= 0 && s.IntervalMonths <= 0 {
			return invalid("%q needs a km or a month interval", s.Label), nil
		}
		items = append(items, domain.ScheduleItem{
			Type:           rules.NormalizeCategory(s.Type),
			Label:          strings.TrimSpace(s.Label),
			IntervalKm:     int(s.IntervalKm),
			IntervalMonths: int(s.IntervalMonths),
		})
	}

	v, err := r.Store.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	if err := r.Store.SetSchedule(ctx, v.ID, items); err != nil {
		return domain.ToolResult{}, err
	}
	data := ScheduleSet{VehicleID: v.ID, Vehicle: v.Make + " " + v.Model, Items: scheduleLines(items)}
	return succeeded(domain.KindScheduleSet, data, "Maintenance schedule for %s saved (%d items)", data.Vehicle, len(items)), nil
}

// dropImage removes a stored object after its invoice is gone. Failures
// leave an orphan object and are only logged.
func (r *Registry) dropImage(ctx context.Context, inv *domain.Invoice) {
	if inv.ImageKey == "" {
		return
	}
	if err := r.Images.Delete(ctx, inv); err != nil {
		log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("image delete failed")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefNum(n *wholeNumber) wholeNumber {
	if n == nil {
		return 0
	}
	return *n
}
