package parser

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aluiziolira/go-harvest-wb/models"
)

const (
	minRating = 4.5
	maxPrice  = 10000.0

	countryKeyMarker   = "страна"
	countryValueMarker = "россия"
)

// Keep decides whether a record belongs in the filtered subset: rating and
// price within thresholds, and a Russia country marker somewhere in the
// characteristics tree.
func Keep(rec *models.Record, chars gjson.Result) bool {
	if rec == nil || rec.Rating == nil || rec.Price == nil {
		return false
	}
	if *rec.Rating < minRating {
		return false
	}
	if *rec.Price > maxPrice {
		return false
	}
	return hasCountryMarker(chars)
}

// hasCountryMarker walks the tree depth-first. A mapping entry matches when
// its key contains the country marker and its value the Russia marker, both
// case-insensitively; any scalar leaf containing the Russia marker matches
// directly. The walk short-circuits on the first match.
func hasCountryMarker(v gjson.Result) bool {
	switch {
	case v.IsObject():
		found := false
		v.ForEach(func(key, value gjson.Result) bool {
			if strings.Contains(strings.ToLower(key.String()), countryKeyMarker) &&
				strings.Contains(strings.ToLower(valueText(value)), countryValueMarker) {
				found = true
				return false
			}
			if hasCountryMarker(value) {
				found = true
				return false
			}
			return true
		})
		return found
	case v.IsArray():
		found := false
		v.ForEach(func(_, item gjson.Result) bool {
			if hasCountryMarker(item) {
				found = true
				return false
			}
			return true
		})
		return found
	default:
		return strings.Contains(strings.ToLower(v.String()), countryValueMarker)
	}
}

// valueText renders a value the way the marker comparison sees it: raw JSON
// for containers, plain string form for scalars.
func valueText(v gjson.Result) string {
	if v.IsObject() || v.IsArray() {
		return v.Raw
	}
	return v.String()
}
