package extract

import (
	"strings"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

const plateVsVIN = "A license plate is a short alphanumeric registration code such as \"M-AB 1234\" or \"ZH 12345\". " +
	"A VIN is exactly 17 characters (letters and digits, never I, O or Q) and is never the license plate. " +
	"Never copy one into the other; leave a field empty when it is not printed."

const amountRules = "Line items must reconcile: the sum of item amounts should match the pre-tax total. " +
	"Do not emit subtotal lines as items, such as \"Summe Arbeitslohn\", \"Summe Teile\", \"Total labour\", \"Total parts\", \"Nettobetrag\", \"Net amount\" or VAT lines (\"MwSt\", \"USt\"). " +
	"total_amount is the final amount due including VAT. " +
	"Write numbers as plain JSON numbers with a dot as decimal separator."

const currencyRules = "currency is an ISO 4217 code. Swiss invoices (CHF, Fr., SFr, a Swiss address or plate prefix like ZH, BE, AG) use CHF; otherwise EUR unless another currency is printed."

func documentPrompt(kind Kind) string {
	cats := "Allowed categories: " + strings.Join(domain.CategoryIDs(), ", ") + ". Use \"other\" only when nothing fits."
	var parts []string
	switch kind {
	case KindInvoice:
		parts = []string{
			"Extract the workshop invoice.",
			"workshop_name is the company that issued the invoice, not the customer.",
			"date is the invoice date as YYYY-MM-DD.",
			"mileage_at_service is the odometer reading (km) printed on the invoice, or null.",
			amountRules, currencyRules, plateVsVIN, cats,
		}
	case KindVehicleDocument:
		parts = []string{
			"Extract the vehicle document (registration certificate or purchase contract).",
			"document_type is registration, purchase_contract or other.",
			"On a German registration certificate the make is field D.1, the model D.2/D.3, the VIN field E and the first registration field B.",
			"year is the model year or the year of first registration.",
			"Dates are YYYY-MM-DD; leave them empty when absent.",
			plateVsVIN,
		}
	case KindServiceBook:
		parts = []string{
			"Extract the service booklet page.",
			"entries are the stamped services with date (YYYY-MM-DD), odometer reading, what was done and the workshop.",
			"intervals are maintenance intervals printed on the page (km and months; 0 when only one of them applies).",
			"A page can contain entries, intervals, both or neither.",
			cats,
		}
	}
	return strings.Join(parts, "\n")
}

func systemPrompt(kind Kind, language string) string {
	return "You read scanned vehicle paperwork and return ONLY JSON matching the provided JSON Schema. " +
		"Never invent values. Free-text fields (descriptions, labels) are written in " + language + ".\n\n" +
		documentPrompt(kind)
}
