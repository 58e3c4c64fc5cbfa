package services

import (
	"strings"
	"testing"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/schedule"
	"github.com/tbourn/go-vehicle-assistant/internal/search"
)

func TestSummarize_RendersEveryKind(t *testing.T) {
	results := []domain.ToolResult{
		{Kind: domain.KindVehicleList, Success: true, Message: "1 vehicle(s)",
			Data: VehicleList{Vehicles: []VehicleSummary{{Make: "BMW", Model: "320d", Year: 2016, Mileage: 150000}}}},
		{Kind: domain.KindVehicleCreated, Success: true, Message: "Vehicle added: Porsche 911",
			Data: VehicleSummary{Make: "Porsche", Model: "911", Year: 2008, Mileage: 90000, LicensePlate: "SG 218574"}},
		{Kind: domain.KindFieldsChanged, Success: true, Message: "BMW 320d updated",
			Data: FieldsChanged{Changes: []FieldChange{{Field: "year", Before: 2016, After: 2008}}}},
		{Kind: domain.KindRecordsDeleted, Success: true, Message: "Vehicle deleted",
			Data: RecordsDeleted{Record: "vehicle", Name: "VW Golf", Invoices: 2, Maintenances: 5}},
		{Kind: domain.KindInvoiceRecorded, Success: true, Message: "Invoice recorded",
			Data: InvoiceSummary{WorkshopName: "ATU", Date: "2024-03-15", TotalAmount: 250, Currency: "EUR",
				Items: []domain.LineItem{{Description: "Bremsbeläge", Amount: 250}}}},
		{Kind: domain.KindMaintenanceRecorded, Success: true, Message: "Maintenance recorded",
			Data: MaintenanceSummary{Type: domain.CategoryOilChange, Description: "Ölwechsel", DoneAt: "2024-06-01", MileageAtService: 151000}},
		{Kind: domain.KindMaintenanceStatus, Success: true, Message: "BMW 320d: 1 overdue, 0 due",
			Data: MaintenanceStatus{Entries: []schedule.Entry{{Label: "Oil change", Status: domain.StatusOverdue}, {Label: "Brakes", Status: domain.StatusDone}}}},
		{Kind: domain.KindScheduleSet, Success: true, Message: "Schedule stored",
			Data: ScheduleSet{Items: []ScheduleLine{{Label: "Zündkerzen", Interval: "every 40,000 km"}}}},
		{Kind: domain.KindSearchHits, Success: true, Message: "1 hit(s)",
			Data: SearchHits{Hits: []search.Result{{Title: "ATU, 2024-03-15", Snippet: "Wasserpumpe"}}}},
		{Kind: domain.KindDuplicateFound, Message: "This invoice already exists: ATU"},
		{Kind: domain.KindInvalid, Message: "invalid arguments"},
	}
	out := Summarize(results)

	for _, want := range []string{
		"- BMW 320d (2016), 150000 km",
		"Plate: SG 218574",
		"year: 2016 → 2008",
		"Deleted: VW Golf (2 invoices, 5 maintenance entries)",
		"Workshop: ATU, date: 2024-03-15, amount: 250.00 EUR",
		"Items: Bremsbeläge (250.00)",
		"km: 151000",
		"- Oil change: overdue",
		"- Zündkerzen: every 40,000 km",
		"- ATU, 2024-03-15: Wasserpumpe",
		"This invoice already exists: ATU",
		"invalid arguments",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Brakes") {
		t.Fatalf("done items should not be listed:\n%s", out)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(nil); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}
