// Package schedule computes due and overdue maintenance from an interval
// table and a vehicle's maintenance history.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// Source names where an interval table came from.
type Source string

const (
	SourceCustom  Source = "custom"
	SourceBrand   Source = "brand"
	SourceDefault Source = "default"
)

var defaultTable = []domain.ScheduleItem{
	{Type: domain.CategoryOilChange, Label: "Oil change", IntervalKm: 15000, IntervalMonths: 12},
	{Type: domain.CategoryInspection, Label: "Inspection", IntervalKm: 30000, IntervalMonths: 24},
	{Type: domain.CategoryBrakes, Label: "Brake check", IntervalKm: 30000, IntervalMonths: 24},
	{Type: domain.CategoryTires, Label: "Tire change", IntervalKm: 40000, IntervalMonths: 48},
	{Type: domain.CategoryAirFilter, Label: "Air filter", IntervalKm: 40000, IntervalMonths: 36},
	{Type: domain.CategoryTimingBelt, Label: "Timing belt", IntervalKm: 120000, IntervalMonths: 72},
	{Type: domain.CategoryBrakeFluid, Label: "Brake fluid", IntervalKm: 60000, IntervalMonths: 24},
	{Type: domain.CategoryAirConditioning, Label: "A/C service", IntervalKm: 0, IntervalMonths: 24},
	{Type: domain.CategoryStatutoryInspection, Label: "Statutory inspection", IntervalKm: 0, IntervalMonths: 24},
}

var brandTables = map[string][]domain.ScheduleItem{
	"BMW": {
		{Type: domain.CategoryOilChange, Label: "Oil change", IntervalKm: 15000, IntervalMonths: 12},
		{Type: domain.CategoryInspection, Label: "Inspection", IntervalKm: 30000, IntervalMonths: 24},
		{Type: domain.CategoryBrakes, Label: "Brake check", IntervalKm: 30000, IntervalMonths: 24},
		{Type: domain.CategoryTires, Label: "Tire change", IntervalKm: 40000, IntervalMonths: 48},
		{Type: domain.CategoryAirFilter, Label: "Air filter", IntervalKm: 60000, IntervalMonths: 48},
		{Type: domain.CategoryTimingBelt, Label: "Timing chain (visual check)", IntervalKm: 100000, IntervalMonths: 60},
		{Type: domain.CategoryBrakeFluid, Label: "Brake fluid", IntervalKm: 0, IntervalMonths: 24},
		{Type: domain.CategoryAirConditioning, Label: "A/C service", IntervalKm: 0, IntervalMonths: 24},
		{Type: domain.CategoryStatutoryInspection, Label: "Statutory inspection", IntervalKm: 0, IntervalMonths: 24},
	},
}

// Default returns a copy of the generic interval table.
func Default() []domain.ScheduleItem { return clone(defaultTable) }

// Resolve picks the interval table for a vehicle: its custom table when set,
// else the table for its brand, else the generic default.
func Resolve(custom []domain.ScheduleItem, brand string) ([]domain.ScheduleItem, Source) {
	if len(custom) > 0 {
		return clone(custom), SourceCustom
	}
	if t, ok := brandTables[strings.ToUpper(strings.TrimSpace(brand))]; ok {
		return clone(t), SourceBrand
	}
	return clone(defaultTable), SourceDefault
}

func clone(items []domain.ScheduleItem) []domain.ScheduleItem {
	out := make([]domain.ScheduleItem, len(items))
	copy(out, items)
	return out
}

// Entry is the computed state of one maintenance item.
type Entry struct {
	Type           domain.Category `json:"type"`
	Label          string          `json:"label"`
	Status         string          `json:"status"`
	Scheduled      bool            `json:"scheduled"`
	LastDoneAt     string          `json:"last_done_at,omitempty"`
	LastMileage    *int            `json:"last_mileage,omitempty"`
	NextDueDate    string          `json:"next_due_date,omitempty"`
	NextDueMileage *int            `json:"next_due_mileage,omitempty"`
}

// DueStatus evaluates items against the vehicle's history at now.
//
// Items without a prior record are due. For items with a record the next due
// mileage (skipped when IntervalKm is 0) and date are derived from the most
// recent record; reaching either makes the item overdue, otherwise it is
// done. Records whose type is not scheduled are appended as done entries.
func DueStatus(now time.Time, mileage int, history []domain.MaintenanceEntry, items []domain.ScheduleItem) []Entry {
	last := latestByType(history)
	scheduled := make(map[domain.Category]bool, len(items))
	out := make([]Entry, 0, len(items)+len(last))

	for _, it := range items {
		scheduled[it.Type] = true
		e := Entry{Type: it.Type, Label: it.Label, Status: domain.StatusDue, Scheduled: true}
		rec, ok := last[it.Type]
		if !ok {
			out = append(out, e)
			continue
		}
		e.Status = domain.StatusDone
		e.LastDoneAt = rec.DoneAt
		e.LastMileage = intPtr(rec.MileageAtService)

		if it.IntervalKm > 0 {
			next := rec.MileageAtService + it.IntervalKm
			e.NextDueMileage = intPtr(next)
			if mileage >= next {
				e.Status = domain.StatusOverdue
			}
		}
		if done, err := time.Parse(domain.DateLayout, rec.DoneAt); err == nil && it.IntervalMonths > 0 {
			next := done.AddDate(0, it.IntervalMonths, 0)
			e.NextDueDate = next.Format(domain.DateLayout)
			if !now.Before(next) {
				e.Status = domain.StatusOverdue
			}
		}
		out = append(out, e)
	}

	extras := make([]Entry, 0)
	for typ, rec := range last {
		if scheduled[typ] {
			continue
		}
		extras = append(extras, Entry{
			Type:        typ,
			Label:       typ.Label(),
			Status:      domain.StatusDone,
			LastDoneAt:  rec.DoneAt,
			LastMileage: intPtr(rec.MileageAtService),
		})
	}
	sort.Slice(extras, func(i, j int) bool {
		if extras[i].LastDoneAt != extras[j].LastDoneAt {
			return extras[i].LastDoneAt > extras[j].LastDoneAt
		}
		return extras[i].Type < extras[j].Type
	})
	return append(out, extras...)
}

// latestByType keeps the most recent record per category, by date and then
// mileage.
func latestByType(history []domain.MaintenanceEntry) map[domain.Category]domain.MaintenanceEntry {
	out := make(map[domain.Category]domain.MaintenanceEntry)
	for _, m := range history {
		if m.Status != "" && m.Status != domain.StatusDone {
			continue
		}
		cur, ok := out[m.Type]
		if !ok || m.DoneAt > cur.DoneAt || (m.DoneAt == cur.DoneAt && m.MileageAtService > cur.MileageAtService) {
			out[m.Type] = m
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

// FormatInterval renders an interval as "15,000 km / 12 months".
func FormatInterval(it domain.ScheduleItem) string {
	parts := make([]string, 0, 2)
	if it.IntervalKm > 0 {
		parts = append(parts, groupThousands(it.IntervalKm)+" km")
	}
	if it.IntervalMonths > 0 {
		unit := "months"
		if it.IntervalMonths == 1 {
			unit = "month"
		}
		parts = append(parts, fmt.Sprintf("%d %s", it.IntervalMonths, unit))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " / ")
}

func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + groupThousands(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
