package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/rules"
)

// Sanitize coerces a model payload towards the schema of kind: numeric
// strings ("1.234,56 €") become numbers, nulls in non-nullable fields become
// zero values, German dates become ISO dates, unknown keys are dropped and
// categories are normalized. It returns the rewritten payload and the paths
// it touched.
func Sanitize(kind Kind, raw []byte) ([]byte, []string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	var touched []string
	v = coerce(schemaMaps[kind], "", v, &touched)
	out, err := json.Marshal(v)
	if err != nil {
		return nil, touched, err
	}
	return out, touched, nil
}

func coerce(schema map[string]any, path string, v any, touched *[]string) any {
	types := schemaTypes(schema)
	note := func(what string) { *touched = append(*touched, strings.TrimPrefix(path, ".")+what) }
	key := path[strings.LastIndexByte(path, '.')+1:]

	switch {
	case slices.Contains(types, "object"):
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		props, _ := schema["properties"].(map[string]any)
		for k, val := range m {
			ps, ok := props[k].(map[string]any)
			if !ok {
				delete(m, k)
				note("." + k + "(unknown)")
				continue
			}
			m[k] = coerce(ps, path+"."+k, val, touched)
		}
		for k, ps := range props {
			if _, ok := m[k]; !ok {
				m[k] = coerce(ps.(map[string]any), path+"."+k, nil, touched)
			}
		}
		return m

	case slices.Contains(types, "array"):
		arr, ok := v.([]any)
		if !ok {
			if v == nil {
				note("(null)")
			}
			return []any{}
		}
		items, _ := schema["items"].(map[string]any)
		for i := range arr {
			arr[i] = coerce(items, path, arr[i], touched)
		}
		return arr

	case slices.Contains(types, "number"), slices.Contains(types, "integer"):
		integer := !slices.Contains(types, "number")
		switch t := v.(type) {
		case nil:
			if slices.Contains(types, "null") {
				return nil
			}
			note("(null)")
			return 0
		case string:
			f, ok := ParseAmount(t)
			if !ok {
				note("(unparsable)")
				if slices.Contains(types, "null") {
					return nil
				}
				return 0
			}
			note("(string)")
			if integer {
				return math.Round(f)
			}
			return f
		case float64:
			if integer && t != math.Trunc(t) {
				note("(fraction)")
				return math.Round(t)
			}
			return t
		}
		return v

	case slices.Contains(types, "string"):
		var s string
		switch t := v.(type) {
		case nil:
			note("(null)")
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
			note("(number)")
		default:
			note("(type)")
		}
		return coerceString(schema, key, s, note)
	}
	return v
}

func coerceString(schema map[string]any, key, s string, note func(string)) string {
	switch key {
	case "currency":
		c := NormalizeCurrency(s)
		if c != s {
			note("(currency)")
		}
		return c
	case "category", "type":
		if _, ok := schema["enum"]; ok {
			c := string(rules.NormalizeCategory(s))
			if c != s {
				note("(category)")
			}
			return c
		}
	case "vin":
		v := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(s))
		if len(v) != 17 {
			if v != "" {
				note("(not a vin)")
			}
			return ""
		}
		return v
	}
	if enum, ok := schema["enum"].([]string); ok && !slices.Contains(enum, s) {
		for _, e := range enum {
			if strings.EqualFold(e, s) {
				return e
			}
		}
		note("(enum)")
		return enum[len(enum)-1]
	}
	if p, _ := schema["pattern"].(string); p == `^\d{4}-\d{2}-\d{2}$` {
		if d, ok := ParseDate(s); ok && d != s {
			note("(date)")
			return d
		}
	}
	return s
}

func schemaTypes(schema map[string]any) []string {
	switch t := schema["type"].(type) {
	case string:
		return []string{t}
	case []string:
		return t
	}
	return nil
}

var amountJunk = regexp.MustCompile(`[^0-9.,\-]`)

// ParseAmount reads numbers written in German or English notation,
// e.g. "1.234,56 €", "1,234.56", "52.000 km", "80,-".
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ",-")
	s = amountJunk.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return 0, false
	}
	dot, comma := strings.LastIndexByte(s, '.'), strings.LastIndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case dot >= 0:
		// a single dot followed by exactly three digits is a German thousands separator
		if strings.Count(s, ".") > 1 || len(s)-dot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{domain.DateLayout, "02.01.2006", "2.1.2006", "02.01.06", "02/01/2006", "2006/01/02"}

// ParseDate converts common invoice date notations to YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}

// NormalizeCurrency maps symbols and local spellings to ISO codes. Empty
// input defaults to EUR.
func NormalizeCurrency(s string) string {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch u {
	case "", "€", "EURO", "EUR":
		return "EUR"
	case "FR.", "SFR", "SFR.", "CHF", "FRANKEN":
		return "CHF"
	case "$", "US$", "USD":
		return "USD"
	case "£", "GBP":
		return "GBP"
	}
	return u
}
