package extract

import (
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/llm"
)

// Kind names a document type the extractor understands.
type Kind string

const (
	KindInvoice         Kind = "invoice"
	KindVehicleDocument Kind = "vehicle_document"
	KindServiceBook     Kind = "service_book"
)

// ParseKind accepts the canonical names and the German ones users type.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "invoice", "rechnung":
		return KindInvoice, true
	case "vehicle_document", "fahrzeugschein", "kaufvertrag", "registration", "purchase_contract":
		return KindVehicleDocument, true
	case "service_book", "serviceheft":
		return KindServiceBook, true
	}
	return "", false
}

// InvoiceItem is one billed line.
type InvoiceItem struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
}

// InvoiceData is what a workshop invoice yields.
type InvoiceData struct {
	WorkshopName     string        `json:"workshop_name"`
	Date             string        `json:"date"`
	TotalAmount      float64       `json:"total_amount"`
	Currency         string        `json:"currency"`
	MileageAtService *int          `json:"mileage_at_service"`
	LicensePlate     string        `json:"license_plate"`
	Items            []InvoiceItem `json:"items"`
}

// VehicleDocumentData covers registration certificates and purchase contracts.
type VehicleDocumentData struct {
	DocumentType      string   `json:"document_type"`
	Make              string   `json:"make"`
	Model             string   `json:"model"`
	Year              *int     `json:"year"`
	LicensePlate      string   `json:"license_plate"`
	VIN               string   `json:"vin"`
	Mileage           *int     `json:"mileage"`
	FirstRegistration string   `json:"first_registration"`
	PurchaseDate      string   `json:"purchase_date"`
	PurchasePrice     *float64 `json:"purchase_price"`
}

// ServiceBookEntry is one stamped service on a booklet page.
type ServiceBookEntry struct {
	Date        string `json:"date"`
	Mileage     *int   `json:"mileage"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Workshop    string `json:"workshop"`
}

// ServiceInterval is a maintenance interval printed in the booklet.
type ServiceInterval struct {
	Type           string `json:"type"`
	Label          string `json:"label"`
	IntervalKm     int    `json:"interval_km"`
	IntervalMonths int    `json:"interval_months"`
}

// ServiceBookData is what a service booklet page yields.
type ServiceBookData struct {
	Entries   []ServiceBookEntry `json:"entries"`
	Intervals []ServiceInterval  `json:"intervals"`
}

// Schemas are written for strict structured output: every property is
// required and optional values are nullable.
var (
	invoiceSchema = object(map[string]any{
		"workshop_name":      str(),
		"date":               datePattern(),
		"total_amount":       map[string]any{"type": "number"},
		"currency":           map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"mileage_at_service": nullable("integer"),
		"license_plate":      str(),
		"items": map[string]any{
			"type": "array",
			"items": object(map[string]any{
				"description": str(),
				"category":    categoryEnum(),
				"amount":      map[string]any{"type": "number"},
			}),
		},
	})

	vehicleDocumentSchema = object(map[string]any{
		"document_type":      map[string]any{"type": "string", "enum": []string{"registration", "purchase_contract", "other"}},
		"make":               str(),
		"model":              str(),
		"year":               nullable("integer"),
		"license_plate":      str(),
		"vin":                map[string]any{"type": "string", "pattern": `^([A-HJ-NPR-Z0-9]{17})?$`},
		"mileage":            nullable("integer"),
		"first_registration": str(),
		"purchase_date":      str(),
		"purchase_price":     nullable("number"),
	})

	serviceBookSchema = object(map[string]any{
		"entries": map[string]any{
			"type": "array",
			"items": object(map[string]any{
				"date":        str(),
				"mileage":     nullable("integer"),
				"description": str(),
				"category":    categoryEnum(),
				"workshop":    str(),
			}),
		},
		"intervals": map[string]any{
			"type": "array",
			"items": object(map[string]any{
				"type":            categoryEnum(),
				"label":           str(),
				"interval_km":     map[string]any{"type": "integer", "minimum": 0},
				"interval_months": map[string]any{"type": "integer", "minimum": 0},
			}),
		},
	})

	schemaMaps = map[Kind]map[string]any{
		KindInvoice:         invoiceSchema,
		KindVehicleDocument: vehicleDocumentSchema,
		KindServiceBook:     serviceBookSchema,
	}

	compiled = map[Kind]*jsonschema.Schema{
		KindInvoice:         llm.MustCompileSchema(string(KindInvoice), invoiceSchema),
		KindVehicleDocument: llm.MustCompileSchema(string(KindVehicleDocument), vehicleDocumentSchema),
		KindServiceBook:     llm.MustCompileSchema(string(KindServiceBook), serviceBookSchema),
	}
)

// Schema returns the map form of the schema for kind.
func Schema(kind Kind) map[string]any { return schemaMaps[kind] }

func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func str() map[string]any { return map[string]any{"type": "string"} }

func nullable(t string) map[string]any { return map[string]any{"type": []string{t, "null"}} }

func datePattern() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
}

func categoryEnum() map[string]any {
	return map[string]any{"type": "string", "enum": domain.CategoryIDs()}
}
