package domain

// Category is the canonical maintenance category id shared by invoice line
// items, maintenance entries and schedule items.
type Category string

const (
	CategoryOilChange           Category = "oil_change"
	CategoryBrakes              Category = "brakes"
	CategoryTires               Category = "tires"
	CategorySuspension          Category = "suspension"
	CategoryExhaust             Category = "exhaust"
	CategoryCooling             Category = "cooling"
	CategoryGlass               Category = "glass"
	CategoryElectrical          Category = "electrical"
	CategoryBodywork            Category = "bodywork"
	CategoryInspection          Category = "inspection"
	CategoryAirConditioning     Category = "air_conditioning"
	CategoryTimingBelt          Category = "timing_belt"
	CategoryBrakeFluid          Category = "brake_fluid"
	CategoryAirFilter           Category = "air_filter"
	CategoryStatutoryInspection Category = "statutory_inspection"
	CategoryOther               Category = "other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryOilChange, CategoryInspection, CategoryBrakes, CategoryTires,
	CategorySuspension, CategoryExhaust, CategoryCooling, CategoryGlass,
	CategoryElectrical, CategoryBodywork, CategoryAirConditioning,
	CategoryTimingBelt, CategoryBrakeFluid, CategoryAirFilter,
	CategoryStatutoryInspection, CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryOilChange:           "Oil change",
	CategoryBrakes:              "Brakes",
	CategoryTires:               "Tires",
	CategorySuspension:          "Suspension",
	CategoryExhaust:             "Exhaust",
	CategoryCooling:             "Cooling",
	CategoryGlass:               "Glass",
	CategoryElectrical:          "Electrical",
	CategoryBodywork:            "Bodywork",
	CategoryInspection:          "Inspection",
	CategoryAirConditioning:     "A/C service",
	CategoryTimingBelt:          "Timing belt",
	CategoryBrakeFluid:          "Brake fluid",
	CategoryAirFilter:           "Air filter",
	CategoryStatutoryInspection: "Statutory inspection",
	CategoryOther:               "Other",
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns a human-readable name, or the raw id for unknown values.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// CategoryIDs returns the category ids as strings (JSON Schema enums).
func CategoryIDs() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}
