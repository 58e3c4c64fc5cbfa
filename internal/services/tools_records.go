package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/extract"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/rules"
)

func (r *Registry) registerRecordTools() {
	r.add(&Tool{
		Name:        ToolAddInvoice,
		Description: "Records a workshop invoice with its line items. Each line item also becomes a maintenance entry.",
		Params: object(map[string]any{
			"vehicle_id":         vehicleIDParam(),
			"workshop_name":      nonEmpty("Workshop name"),
			"date":               nonEmpty("Invoice date, YYYY-MM-DD"),
			"total_amount":       number("Grand total incl. VAT"),
			"currency":           str("ISO currency code, e.g. EUR, CHF, USD. Default EUR"),
			"mileage_at_service": integer("Mileage on the invoice in km", 0),
			"image_index":        integer("0-based index of the sent image this invoice was read from", 0),
			"items": array(object(map[string]any{
				"description": nonEmpty("Work or part"),
				"category":    categoryEnum("Category of the work; other only when nothing fits"),
				"amount":      number("Amount of this line"),
			}, "description", "category", "amount"), "Line items, without VAT and subtotal rows", 1),
		}, "vehicle_id", "workshop_name", "date", "total_amount", "items"),
		Run: r.addInvoice,
	})
	r.add(&Tool{
		Name:        ToolAddMaintenance,
		Description: "Records maintenance work WITHOUT an invoice, e.g. \"did an oil change\".",
		Params: object(map[string]any{
			"vehicle_id":         vehicleIDParam(),
			"type":               categoryEnum("Category of the work"),
			"description":        nonEmpty("What was done"),
			"done_at":            nonEmpty("Date, YYYY-MM-DD"),
			"mileage_at_service": integer("Mileage at the time in km", 0),
		}, "vehicle_id", "type", "description", "done_at"),
		Run: r.addMaintenance,
	})
	r.add(&Tool{
		Name:        ToolDeleteInvoice,
		Description: "Deletes an invoice and the maintenance entries derived from it.",
		Params:      object(map[string]any{"invoice_id": nonEmpty("Invoice id")}, "invoice_id"),
		Run:         r.deleteInvoice,
	})
}

type invoiceArgs struct {
	VehicleID        string       `json:"vehicle_id"`
	WorkshopName     string       `json:"workshop_name"`
	Date             string       `json:"date"`
	TotalAmount      float64      `json:"total_amount"`
	Currency         string       `json:"currency"`
	MileageAtService wholeNumber  `json:"mileage_at_service"`
	ImageIndex       *wholeNumber `json:"image_index"`
	Items            []struct {
		Description string  `json:"description"`
		Category    string  `json:"category"`
		Amount      float64 `json:"amount"`
	} `json:"items"`
}

func (r *Registry) addInvoice(ctx context.Context, env *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a invoiceArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	date, valid := extract.ParseDate(a.Date)
	if !valid {
		return invalid("date %q is not a calendar date (YYYY-MM-DD)", a.Date), nil
	}

	inv := &domain.Invoice{
		ID:               uuid.NewString(),
		VehicleID:        a.VehicleID,
		WorkshopName:     strings.TrimSpace(a.WorkshopName),
		Date:             date,
		TotalAmount:      a.TotalAmount,
		Currency:         extract.NormalizeCurrency(a.Currency),
		MileageAtService: int(a.MileageAtService),
	}
	items := make([]domain.LineItem, 0, len(a.Items))
	entries := make([]domain.MaintenanceEntry, 0, len(a.Items))
	for _, it := range a.Items {
		desc := strings.TrimSpace(it.Description)
		cat := rules.CorrectCategory(desc, domain.Category(it.Category))
		items = append(items, domain.LineItem{Description: desc, Category: cat, Amount: it.Amount})
		entries = append(entries, domain.MaintenanceEntry{
			Type:             cat,
			Description:      desc,
			DoneAt:           date,
			MileageAtService: inv.MileageAtService,
			Status:           domain.StatusDone,
		})
	}
	inv.Items = datatypes.NewJSONSlice(items)

	img, res := pendingImage(env, a.ImageIndex)
	if res != nil {
		return *res, nil
	}
	if img != nil {
		if err := r.Images.Put(ctx, inv, img.Data, img.MIME); err != nil {
			return domain.ToolResult{}, fmt.Errorf("store invoice image: %w", err)
		}
		if img.OCRHash != "" {
			hash := img.OCRHash
			inv.OCRCacheID = &hash
		}
	}

	conflict, err := r.Store.InsertInvoice(ctx, repo.InvoiceWrite{Invoice: inv, Entries: entries},
		func(existing []domain.Invoice) *domain.Invoice {
			return rules.FindDuplicate(existing, *inv)
		})
	if err != nil || conflict != nil {
		r.dropImage(ctx, inv)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	if conflict != nil {
		return domain.ToolResult{
			Kind: domain.KindDuplicateFound,
			Message: fmt.Sprintf("This invoice already exists: %s, %s, %.2f %s. Not recorded twice.",
				conflict.WorkshopName, conflict.Date, conflict.TotalAmount, conflict.Currency),
			Data: DuplicateFound{Existing: summarizeInvoice(*conflict)},
		}, nil
	}

	data := summarizeInvoice(*inv)
	return succeeded(domain.KindInvoiceRecorded, data, "Invoice recorded: %s, %s", inv.WorkshopName, inv.Date), nil
}

// pendingImage resolves image_index against the pending attachments. With
// no index the first image is used. A turn without pending images stores
// no image.
func pendingImage(env *Env, index *wholeNumber) (*PendingImage, *domain.ToolResult) {
	if env == nil || env.Pending == nil || len(env.Pending.Images) == 0 {
		return nil, nil
	}
	i := 0
	if index != nil {
		i = int(*index)
	}
	if i < 0 || i >= len(env.Pending.Images) {
		res := invalid("image_index %d out of range, %d image(s) were sent", i, len(env.Pending.Images))
		return nil, &res
	}
	return &env.Pending.Images[i], nil
}

type maintenanceArgs struct {
	VehicleID        string      `json:"vehicle_id"`
	Type             string      `json:"type"`
	Description      string      `json:"description"`
	DoneAt           string      `json:"done_at"`
	MileageAtService wholeNumber `json:"mileage_at_service"`
}

func (r *Registry) addMaintenance(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a maintenanceArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	date, valid := extract.ParseDate(a.DoneAt)
	if !valid {
		return invalid("done_at %q is not a calendar date (YYYY-MM-DD)", a.DoneAt), nil
	}
	v, err := r.Store.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Vehicle %s not found", a.VehicleID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}

	desc := strings.TrimSpace(a.Description)
	e := &domain.MaintenanceEntry{
		VehicleID:        v.ID,
		Type:             rules.CorrectCategory(desc, domain.Category(a.Type)),
		Description:      desc,
		DoneAt:           date,
		MileageAtService: int(a.MileageAtService),
		Status:           domain.StatusDone,
	}
	if err := r.Store.InsertMaintenance(ctx, e); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Vehicle %s not found", a.VehicleID), nil
		}
		return domain.ToolResult{}, err
	}
	data := summarizeMaintenance(*e)
	data.Vehicle = v.Make + " " + v.Model
	return succeeded(domain.KindMaintenanceRecorded, data, "Maintenance recorded for %s", data.Vehicle), nil
}

type invoiceIDArgs struct {
	InvoiceID string `json:"invoice_id"`
}

func (r *Registry) deleteInvoice(ctx context.Context, _ *Env, raw json.RawMessage) (domain.ToolResult, error) {
	var a invoiceIDArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalid("%v", err), nil
	}
	inv, err := r.Store.GetInvoice(ctx, a.InvoiceID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Invoice %s not found", a.InvoiceID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	n, err := r.Store.DeleteInvoice(ctx, inv.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("Invoice %s not found", a.InvoiceID), nil
	}
	if err != nil {
		return domain.ToolResult{}, err
	}
	r.dropImage(ctx, inv)

	data := RecordsDeleted{
		Record:       "invoice",
		Name:         fmt.Sprintf("%s (%s, %.2f %s)", inv.WorkshopName, inv.Date, inv.TotalAmount, inv.Currency),
		Maintenances: n,
	}
	return succeeded(domain.KindRecordsDeleted, data, "Invoice deleted"), nil
}
