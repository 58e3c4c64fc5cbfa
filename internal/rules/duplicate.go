package rules

import (
	"math"
	"strings"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// FindDuplicate returns the first invoice in existing that describes the same
// bill as candidate: same vehicle and date, and either the same workshop
// (trimmed, case-insensitive) or the same total to the cent.
func FindDuplicate(existing []domain.Invoice, candidate domain.Invoice) *domain.Invoice {
	for i := range existing {
		e := &existing[i]
		if e.VehicleID != candidate.VehicleID || e.Date != candidate.Date {
			continue
		}
		if sameWorkshop(e.WorkshopName, candidate.WorkshopName) || sameAmount(e.TotalAmount, candidate.TotalAmount) {
			return e
		}
	}
	return nil
}

func sameWorkshop(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func sameAmount(a, b float64) bool {
	return math.Round(a*100) == math.Round(b*100)
}
