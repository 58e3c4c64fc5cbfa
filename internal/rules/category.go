// Package rules holds the deterministic business rules applied on top of
// model output: keyword based category correction and duplicate invoice
// detection.
package rules

import (
	"regexp"
	"strings"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

type categoryRule struct {
	re  *regexp.Regexp
	cat domain.Category
}

// categoryRules is evaluated in order; the first match wins. Specific parts
// come before broad words, so "Klima-Service" is A/C and not an inspection.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)auspuff|katalysator|kr[üu]mmer|abgasanlage|endtopf|mitteltopf|exhaust|muffler|catalytic`), domain.CategoryExhaust},
	{regexp.MustCompile(`(?i)k[üu]hl(wasser|er|mittel|fl[üu]ssigkeit)|frostschutz|thermostat|unterdruck|coolant|radiator|antifreeze`), domain.CategoryCooling},
	{regexp.MustCompile(`(?i)windschutzscheibe|frontscheibe|heckscheibe|autoglas|scheibenwischer|windscreen|windshield|wiper`), domain.CategoryGlass},
	{regexp.MustCompile(`(?i)[öo]lwechsel|[öo]lfilter|motor[öo]l|[öo]lablassschraube|oil change|oil filter|engine oil|drain plug`), domain.CategoryOilChange},
	{regexp.MustCompile(`(?i)bremsbe[lä]|bremsscheib|bremss[aä]ttel|bremstrommel|bremsbacke|brake pad|brake disc|brake rotor|caliper`), domain.CategoryBrakes},
	{regexp.MustCompile(`(?i)\breifen\b|reifenmontage|reifenwechsel|auswuchten|winterreifen|sommerreifen|\btyres?\b|\btires?\b|wheel balanc`), domain.CategoryTires},
	{regexp.MustCompile(`(?i)feder(bein)?|sto[ßs]d[äa]mpfer|radlager|achse|lenkung|querlenker|spurstange|traggelenk|shock absorber|wheel bearing|control arm|tie rod|suspension`), domain.CategorySuspension},
	{regexp.MustCompile(`(?i)batterie|lichtmaschine|starter|z[üu]ndkerze|z[üu]ndspule|battery|alternator|spark plug|ignition coil`), domain.CategoryElectrical},
	{regexp.MustCompile(`(?i)lack|karosserie|rost|delle|unfallschaden|blech|paint|bodywork|\bdent\b|\brust\b`), domain.CategoryBodywork},
	{regexp.MustCompile(`(?i)klimaanlage|klima.service|k[äa]ltemittel|air.?con|a/c service|refrigerant`), domain.CategoryAirConditioning},
	{regexp.MustCompile(`(?i)inspektion|durchsicht|hu.vorbereitung|inspection|service`), domain.CategoryInspection},
	{regexp.MustCompile(`(?i)zahnriemen|steuerriemen|steuerkette|timing belt|timing chain|cam belt`), domain.CategoryTimingBelt},
	{regexp.MustCompile(`(?i)bremsfl[üu]ssigkeit|brake fluid`), domain.CategoryBrakeFluid},
	{regexp.MustCompile(`(?i)luftfilter|pollenfilter|innenraumfilter|air filter|cabin filter|pollen filter`), domain.CategoryAirFilter},
	{regexp.MustCompile(`(?i)t[üu]v\b|hauptuntersuchung|\bhu\b|\bau\b|\bmot\b|mfk`), domain.CategoryStatutoryInspection},
}

// "Serviceheft" / "service book" mention the booklet, not a service.
var serviceBookRE = regexp.MustCompile(`(?i)service.*(heft|book)`)

// MatchCategory returns the category of the first rule matching description.
func MatchCategory(description string) (domain.Category, bool) {
	d := strings.TrimSpace(description)
	if d == "" {
		return "", false
	}
	for _, r := range categoryRules {
		loc := r.re.FindStringIndex(d)
		if loc == nil {
			continue
		}
		if r.cat == domain.CategoryInspection && onlyServiceBook(d, r.re) {
			continue
		}
		return r.cat, true
	}
	return "", false
}

// onlyServiceBook reports whether every inspection hit in d is the word
// "service" followed later by "heft"/"book".
func onlyServiceBook(d string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(d, -1) {
		word := strings.ToLower(d[loc[0]:loc[1]])
		if word != "service" || !serviceBookRE.MatchString(d[loc[0]:]) {
			return false
		}
	}
	return true
}

// CorrectCategory returns the rule category when description matches a rule,
// otherwise the model's category normalized to a known id.
func CorrectCategory(description string, modelCategory domain.Category) domain.Category {
	if c, ok := MatchCategory(description); ok {
		return c
	}
	return NormalizeCategory(string(modelCategory))
}

var legacyCategories = map[string]domain.Category{
	"oelwechsel":       domain.CategoryOilChange,
	"ölwechsel":        domain.CategoryOilChange,
	"oil":              domain.CategoryOilChange,
	"bremsen":          domain.CategoryBrakes,
	"brake":            domain.CategoryBrakes,
	"reifen":           domain.CategoryTires,
	"tyres":            domain.CategoryTires,
	"fahrwerk":         domain.CategorySuspension,
	"auspuff":          domain.CategoryExhaust,
	"kuehlung":         domain.CategoryCooling,
	"kühlung":          domain.CategoryCooling,
	"autoglas":         domain.CategoryGlass,
	"elektrik":         domain.CategoryElectrical,
	"karosserie":       domain.CategoryBodywork,
	"inspektion":       domain.CategoryInspection,
	"service":          domain.CategoryInspection,
	"klimaanlage":      domain.CategoryAirConditioning,
	"ac":               domain.CategoryAirConditioning,
	"zahnriemen":       domain.CategoryTimingBelt,
	"bremsflüssigkeit": domain.CategoryBrakeFluid,
	"luftfilter":       domain.CategoryAirFilter,
	"tuev":             domain.CategoryStatutoryInspection,
	"tüv":              domain.CategoryStatutoryInspection,
	"sonstiges":        domain.CategoryOther,
}

// NormalizeCategory maps s to a canonical category id. Legacy German ids and
// a few synonyms are accepted; anything unknown becomes "other".
func NormalizeCategory(s string) domain.Category {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if c := domain.Category(k); c.Valid() {
		return c
	}
	if c, ok := legacyCategories[k]; ok {
		return c
	}
	return domain.CategoryOther
}
