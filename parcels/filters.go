package parcels

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"parcelscape/geo"
)

// Filter is one attribute predicate. Value carries a []string for zoning,
// a number for assessed_value/height_m/year and a string for community,
// matching the shape the backend speaks on the wire.
type Filter struct {
	Attribute string `json:"attribute" toml:"attribute"`
	Operator  string `json:"operator" toml:"operator"`
	Value     any    `json:"value" toml:"value"`
}

// NormalizeZone upper-cases a zoning code and folds separator variants
// into hyphens so "rc — g" and "RC_G" compare equal.
func NormalizeZone(z string) string {
	if z == "" {
		return ""
	}
	z = strings.ToUpper(z)
	z = strings.ReplaceAll(z, " ", "")
	for _, sep := range []string{"—", "–", "_", "/"} {
		z = strings.ReplaceAll(z, sep, "-")
	}
	return z
}

func valueFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func valueStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	}
	return nil
}

// MatchFeature reports whether the feature satisfies every filter.
// Unknown attributes are ignored; a filter on a missing value fails.
func MatchFeature(f *geo.Feature, filters []Filter) bool {
	zoning := NormalizeZone(f.Zoning)
	community := strings.ToLower(strings.TrimSpace(f.Community))

	for _, fl := range filters {
		switch fl.Attribute {
		case "zoning":
			ok := false
			for _, code := range valueStrings(fl.Value) {
				cn := NormalizeZone(strings.TrimSpace(code))
				if cn == "" {
					continue
				}
				// Short codes (<=3 chars) allow prefix match; else exact.
				if len(cn) <= 3 && strings.HasPrefix(zoning, cn) {
					ok = true
					break
				}
				if zoning == cn {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}

		case "assessed_value":
			if f.AssessedValue == 0 {
				return false
			}
			v, ok := valueFloat(fl.Value)
			if !ok {
				return false
			}
			switch fl.Operator {
			case "<":
				if !(f.AssessedValue < v) {
					return false
				}
			case ">":
				if !(f.AssessedValue > v) {
					return false
				}
			case "=":
				if f.AssessedValue != v {
					return false
				}
			}

		case "height_m":
			if f.HeightM == 0 {
				return false
			}
			v, ok := valueFloat(fl.Value)
			if !ok {
				return false
			}
			switch fl.Operator {
			case "<":
				if !(f.HeightM < v) {
					return false
				}
			case ">":
				if !(f.HeightM > v) {
					return false
				}
			case "=":
				diff := f.HeightM - v
				if diff < 0 {
					diff = -diff
				}
				if diff >= 1e-6 {
					return false
				}
			}

		case "year":
			if f.Year == 0 {
				return false
			}
			v, ok := valueFloat(fl.Value)
			if !ok {
				return false
			}
			y := int(v)
			switch fl.Operator {
			case "<":
				if !(f.Year < y) {
					return false
				}
			case ">":
				if !(f.Year > y) {
					return false
				}
			case "=":
				if f.Year != y {
					return false
				}
			}

		case "community":
			target := ""
			if s, ok := fl.Value.(string); ok {
				target = strings.ToLower(strings.TrimSpace(s))
			}
			if target == "" || community != target {
				return false
			}
		}
	}
	return true
}

// ApplyFilters returns the ids of matching features plus the number of
// features considered. Features without an id are skipped entirely.
func ApplyFilters(filters []Filter, features []geo.Feature) (map[string]struct{}, int) {
	ids := make(map[string]struct{})
	total := 0
	for i := range features {
		f := &features[i]
		if f.ID == "" {
			continue
		}
		total++
		if MatchFeature(f, filters) {
			ids[f.ID] = struct{}{}
		}
	}
	return ids, total
}

var (
	reZoningBlock  = regexp.MustCompile(`(?:zoning|zone|district)s?\s+([a-z0-9/\-, ]+)`)
	reInBlock      = regexp.MustCompile(`\bin\s+([a-z0-9\-/ ,]+)`)
	reCommunityCue = regexp.MustCompile(`\b(?:community|neighbou?rhood)\b`)
	reZoneSplit    = regexp.MustCompile(`[,\s/]+|(?:\bor\b)|(?:\band\b)`)
	reZoneCompound = regexp.MustCompile(`^[A-Z]{1,3}(?:-[A-Z0-9]{1,4})+$`)
	reZoneShort    = regexp.MustCompile(`^[A-Z]{1,3}\d?$`)

	reValueBelow   = regexp.MustCompile(`(?:less than|under|below)\s+\$?\s*([0-9][\d,\.]*\s*[kKmM]?)`)
	reValueAbove   = regexp.MustCompile(`(?:greater than|over|above)\s+\$?\s*([0-9][\d,\.]*\s*[kKmM]?)`)
	reValueBetween = regexp.MustCompile(`between\s+\$?\s*([0-9][\d,\.]*\s*[kKmM]?)\s+and\s+\$?\s*([0-9][\d,\.]*\s*[kKmM]?)`)

	reHeightAbove = regexp.MustCompile(`(?:over|greater than|above)\s+([0-9\.]+)\s*(ft|feet|foot|m|meter|metre|meters|metres)\b`)
	reHeightBelow = regexp.MustCompile(`(?:under|less than|below)\s+([0-9\.]+)\s*(ft|feet|foot|m|meter|metre|meters|metres)\b`)
	reFloorsAbove = regexp.MustCompile(`(?:over|greater than|above)\s+([0-9]+)\s*(?:floors?|storeys?|stories?)`)
	reFloorsBelow = regexp.MustCompile(`(?:under|less than|below)\s+([0-9]+)\s*(?:floors?|storeys?|stories?)`)

	reYearAfter  = regexp.MustCompile(`(?:built|year)\s+(?:after|since)\s+([12][0-9]{3})`)
	reYearBefore = regexp.MustCompile(`(?:built|year)\s+(?:before|until|prior to)\s+([12][0-9]{3})`)

	reCommunity = regexp.MustCompile(`in\s+([a-z][a-z \-']+?)\s+(?:community|neighbou?rhood)\b`)

	reMoney  = regexp.MustCompile(`^\$?\s*([0-9]+(?:[.,][0-9]{3})*(?:\.[0-9]+)?|[0-9]*\.?[0-9]+)\s*([kKmM]?)`)
	reHeight = regexp.MustCompile(`^(?i)([0-9]*\.?[0-9]+)\s*(m|meter|meters|metre|metres|ft|foot|feet)?`)
	reDigits = regexp.MustCompile(`[^\d]`)
)

func parseMoney(txt string) (float64, bool) {
	m := reMoney.FindStringSubmatch(strings.TrimSpace(txt))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1_000
	case "m":
		n *= 1_000_000
	}
	return n, true
}

func parseHeightToMeters(txt string) (float64, bool) {
	m := reHeight.FindStringSubmatch(strings.TrimSpace(txt))
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "ft", "foot", "feet":
		return val * 0.3048, true
	}
	return val, true
}

func parseDigits(txt string) (int, bool) {
	n, err := strconv.Atoi(reDigits.ReplaceAllString(txt, ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// titleCase capitalizes the letter following every non-letter, so
// "forest lawn" becomes "Forest Lawn".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if isLetter && !prevLetter {
			r = r - 'a' + 'A'
		}
		prevLetter = isLetter
		b.WriteRune(r)
	}
	return b.String()
}

// ParseQuery turns a free-text query into filters deterministically,
// with no external calls. Unrecognized phrases yield no filters.
func ParseQuery(q string) []Filter {
	var filters []Filter
	qq := strings.ToLower(strings.TrimSpace(q))
	if qq == "" {
		return filters
	}

	// Zoning codes, either after an explicit cue word or a bare "in ..."
	// when the query is not about a community.
	var zblock string
	if m := reZoningBlock.FindStringSubmatch(qq); m != nil {
		zblock = m[1]
	}
	if zblock == "" && !reCommunityCue.MatchString(qq) {
		if m := reInBlock.FindStringSubmatch(qq); m != nil {
			zblock = m[1]
		}
	}
	if zblock != "" {
		var codes []string
		for _, tok := range reZoneSplit.Split(zblock, -1) {
			t := strings.ToUpper(strings.TrimSpace(tok))
			if t == "" {
				continue
			}
			if reZoneCompound.MatchString(t) || reZoneShort.MatchString(t) {
				codes = append(codes, t)
			}
		}
		if len(codes) > 0 {
			filters = append(filters, Filter{Attribute: "zoning", Operator: "in", Value: codes})
		}
	}

	if m := reValueBelow.FindStringSubmatch(qq); m != nil {
		if n, ok := parseMoney(m[1]); ok {
			filters = append(filters, Filter{Attribute: "assessed_value", Operator: "<", Value: n})
		}
	}
	if m := reValueAbove.FindStringSubmatch(qq); m != nil {
		if n, ok := parseMoney(m[1]); ok {
			filters = append(filters, Filter{Attribute: "assessed_value", Operator: ">", Value: n})
		}
	}
	if m := reValueBetween.FindStringSubmatch(qq); m != nil {
		n1, ok1 := parseMoney(m[1])
		n2, ok2 := parseMoney(m[2])
		if ok1 && ok2 {
			bounds := []float64{n1, n2}
			sort.Float64s(bounds)
			filters = append(filters,
				Filter{Attribute: "assessed_value", Operator: ">", Value: bounds[0]},
				Filter{Attribute: "assessed_value", Operator: "<", Value: bounds[1]},
			)
		}
	}

	if m := reHeightAbove.FindStringSubmatch(qq); m != nil {
		if h, ok := parseHeightToMeters(m[1] + " " + m[2]); ok {
			filters = append(filters, Filter{Attribute: "height_m", Operator: ">", Value: h})
		}
	}
	if m := reHeightBelow.FindStringSubmatch(qq); m != nil {
		if h, ok := parseHeightToMeters(m[1] + " " + m[2]); ok {
			filters = append(filters, Filter{Attribute: "height_m", Operator: "<", Value: h})
		}
	}
	if m := reFloorsAbove.FindStringSubmatch(qq); m != nil {
		if fl, ok := parseDigits(m[1]); ok {
			filters = append(filters, Filter{Attribute: "height_m", Operator: ">", Value: float64(fl) * 3.0})
		}
	}
	if m := reFloorsBelow.FindStringSubmatch(qq); m != nil {
		if fl, ok := parseDigits(m[1]); ok {
			filters = append(filters, Filter{Attribute: "height_m", Operator: "<", Value: float64(fl) * 3.0})
		}
	}

	if m := reYearAfter.FindStringSubmatch(qq); m != nil {
		y, _ := strconv.Atoi(m[1])
		filters = append(filters, Filter{Attribute: "year", Operator: ">", Value: float64(y)})
	}
	if m := reYearBefore.FindStringSubmatch(qq); m != nil {
		y, _ := strconv.Atoi(m[1])
		filters = append(filters, Filter{Attribute: "year", Operator: "<", Value: float64(y)})
	}

	if m := reCommunity.FindStringSubmatch(qq); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			filters = append(filters, Filter{Attribute: "community", Operator: "=", Value: titleCase(name)})
		}
	}

	return filters
}
