package services

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/schedule"
	"github.com/tbourn/go-vehicle-assistant/internal/search"
)

// Tool result payloads. Each kind has exactly one payload type; clients
// render them as cards.

type VehicleSummary struct {
	ID                string `json:"id"`
	Make              string `json:"make"`
	Model             string `json:"model"`
	Year              int    `json:"year"`
	Mileage           int    `json:"mileage"`
	LicensePlate      string `json:"license_plate,omitempty"`
	VIN               string `json:"vin,omitempty"`
	HasCustomSchedule bool   `json:"has_custom_schedule"`
}

func summarizeVehicle(v domain.Vehicle) VehicleSummary {
	return VehicleSummary{
		ID:                v.ID,
		Make:              v.Make,
		Model:             v.Model,
		Year:              v.Year,
		Mileage:           v.Mileage,
		LicensePlate:      v.LicensePlate,
		VIN:               v.VIN,
		HasCustomSchedule: v.HasCustomSchedule(),
	}
}

func (v VehicleSummary) Name() string { return v.Make + " " + v.Model }

type VehicleList struct {
	Vehicles []VehicleSummary `json:"vehicles"`
}

type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

type FieldsChanged struct {
	VehicleID string        `json:"vehicle_id"`
	Vehicle   string        `json:"vehicle"`
	Changes   []FieldChange `json:"changes"`
}

type RecordsDeleted struct {
	Record       string `json:"record"` // vehicle | invoice
	Name         string `json:"name"`
	Invoices     int64  `json:"invoices"`
	Maintenances int64  `json:"maintenances"`
}

type InvoiceSummary struct {
	ID               string            `json:"id"`
	VehicleID        string            `json:"vehicle_id"`
	WorkshopName     string            `json:"workshop_name"`
	Date             string            `json:"date"`
	TotalAmount      float64           `json:"total_amount"`
	Currency         string            `json:"currency"`
	MileageAtService int               `json:"mileage_at_service"`
	Items            []domain.LineItem `json:"items"`
	HasImage         bool              `json:"has_image"`
	HasOCRText       bool              `json:"has_ocr_text"`
}

func summarizeInvoice(inv domain.Invoice) InvoiceSummary {
	return InvoiceSummary{
		ID:               inv.ID,
		VehicleID:        inv.VehicleID,
		WorkshopName:     inv.WorkshopName,
		Date:             inv.Date,
		TotalAmount:      inv.TotalAmount,
		Currency:         inv.Currency,
		MileageAtService: inv.MileageAtService,
		Items:            inv.Items,
		HasImage:         inv.HasImage(),
		HasOCRText:       inv.OCRCacheID != nil && *inv.OCRCacheID != "",
	}
}

type MaintenanceSummary struct {
	ID               string          `json:"id"`
	VehicleID        string          `json:"vehicle_id"`
	Vehicle          string          `json:"vehicle,omitempty"`
	Type             domain.Category `json:"type"`
	Description      string          `json:"description"`
	DoneAt           string          `json:"done_at"`
	MileageAtService int             `json:"mileage_at_service"`
	FromInvoice      bool            `json:"from_invoice"`
}

func summarizeMaintenance(m domain.MaintenanceEntry) MaintenanceSummary {
	return MaintenanceSummary{
		ID:               m.ID,
		VehicleID:        m.VehicleID,
		Type:             m.Type,
		Description:      m.Description,
		DoneAt:           m.DoneAt,
		MileageAtService: m.MileageAtService,
		FromInvoice:      m.InvoiceID != nil,
	}
}

type VehicleDetails struct {
	Vehicle     VehicleSummary       `json:"vehicle"`
	Invoices    []InvoiceSummary     `json:"invoices"`
	Maintenance []MaintenanceSummary `json:"maintenance"`
}

type MaintenanceStatus struct {
	VehicleID         string           `json:"vehicle_id"`
	Vehicle           string           `json:"vehicle"`
	Mileage           int              `json:"mileage"`
	Source            schedule.Source  `json:"source"`
	HasCustomSchedule bool             `json:"has_custom_schedule"`
	Entries           []schedule.Entry `json:"entries"`
}

// Count returns how many entries have status.
func (m MaintenanceStatus) Count(status string) int {
	n := 0
	for _, e := range m.Entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

type ScheduleLine struct {
	Type     domain.Category `json:"type"`
	Label    string          `json:"label"`
	Interval string          `json:"interval"`
}

type ScheduleSet struct {
	VehicleID string         `json:"vehicle_id"`
	Vehicle   string         `json:"vehicle"`
	Items     []ScheduleLine `json:"items"`
}

func scheduleLines(items []domain.ScheduleItem) []ScheduleLine {
	out := make([]ScheduleLine, 0, len(items))
	for _, it := range items {
		out = append(out, ScheduleLine{Type: it.Type, Label: it.Label, Interval: schedule.FormatInterval(it)})
	}
	return out
}

type DuplicateFound struct {
	Existing InvoiceSummary `json:"existing"`
}

type OCRText struct {
	InvoiceID string `json:"invoice_id"`
	Text      string `json:"text"`
}

type DocumentScanned struct {
	InvoiceID string `json:"invoice_id"`
	Kind      string `json:"kind"`
	Partial   bool   `json:"partial"`
	Document  any    `json:"document"`
}

type SearchHits struct {
	Query string          `json:"query"`
	Hits  []search.Result `json:"hits"`
}

// Summarize renders tool results as plain text. It is the reply when the
// model ends a turn without prose.
func Summarize(results []domain.ToolResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if s := summarizeOne(r); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

func summarizeOne(r domain.ToolResult) string {
	var b strings.Builder
	if r.Message != "" {
		b.WriteString(r.Message)
	}
	add := func(format string, args ...any) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, format, args...)
	}

	switch r.Kind {
	case domain.KindVehicleList:
		if d, ok := r.Data.(VehicleList); ok {
			for _, v := range d.Vehicles {
				add("- %s (%d), %d km", v.Name(), v.Year, v.Mileage)
			}
		}
	case domain.KindVehicleCreated:
		if v, ok := r.Data.(VehicleSummary); ok {
			add("Make: %s, model: %s, year: %d, km: %d", v.Make, v.Model, v.Year, v.Mileage)
			if v.LicensePlate != "" {
				add("Plate: %s", v.LicensePlate)
			}
		}
	case domain.KindFieldsChanged:
		if d, ok := r.Data.(FieldsChanged); ok {
			for _, c := range d.Changes {
				add("%s: %v → %v", c.Field, c.Before, c.After)
			}
		}
	case domain.KindRecordsDeleted:
		if d, ok := r.Data.(RecordsDeleted); ok {
			if d.Record == "vehicle" {
				add("Deleted: %s (%d invoices, %d maintenance entries)", d.Name, d.Invoices, d.Maintenances)
			} else {
				add("Deleted: invoice %s (%d maintenance entries)", d.Name, d.Maintenances)
			}
		}
	case domain.KindVehicleDetails:
		if d, ok := r.Data.(VehicleDetails); ok {
			add("%s (%d), %d km: %d invoices, %d maintenance entries", d.Vehicle.Name(), d.Vehicle.Year, d.Vehicle.Mileage, len(d.Invoices), len(d.Maintenance))
		}
	case domain.KindMaintenanceStatus:
		if d, ok := r.Data.(MaintenanceStatus); ok {
			for _, e := range d.Entries {
				if e.Status != domain.StatusDone {
					add("- %s: %s", e.Label, e.Status)
				}
			}
		}
	case domain.KindScheduleSet:
		if d, ok := r.Data.(ScheduleSet); ok {
			for _, l := range d.Items {
				add("- %s: %s", l.Label, l.Interval)
			}
		}
	case domain.KindInvoiceRecorded:
		if d, ok := r.Data.(InvoiceSummary); ok {
			add("Workshop: %s, date: %s, amount: %.2f %s", d.WorkshopName, d.Date, d.TotalAmount, d.Currency)
			items := make([]string, 0, len(d.Items))
			for _, it := range d.Items {
				items = append(items, fmt.Sprintf("%s (%.2f)", it.Description, it.Amount))
			}
			if len(items) > 0 {
				add("Items: %s", strings.Join(items, ", "))
			}
		}
	case domain.KindMaintenanceRecorded:
		if d, ok := r.Data.(MaintenanceSummary); ok {
			add("Type: %s, description: %s, date: %s", d.Type, d.Description, d.DoneAt)
			if d.MileageAtService > 0 {
				add("km: %d", d.MileageAtService)
			}
		}
	case domain.KindDuplicateFound, domain.KindOCRText, domain.KindDocumentScanned,
		domain.KindNotFound, domain.KindInvalid:
		// the message says it all
	case domain.KindSearchHits:
		if d, ok := r.Data.(SearchHits); ok {
			for _, h := range d.Hits {
				add("- %s: %s", h.Title, h.Snippet)
			}
		}
	}
	return b.String()
}
