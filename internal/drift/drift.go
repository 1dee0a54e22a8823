// Package drift detects schema drift in incoming source payloads by
// comparing their field set and field types against an expected schema,
// and suggests fuzzy field-name remappings when fields don't match exactly.
//
// No fuzzy string-matching library appears anywhere in the dependency
// pack this service was built from, so the ratio function below is a
// hand-rolled Levenshtein-distance-based ratio, matching fuzzywuzzy's
// fuzz.ratio semantics (the library the service this replaces used).
package drift

import (
	"fmt"
	"log"
	"sort"
)

// Confidence thresholds for drift severity classification.
const (
	HighConfidence   = 0.9
	MediumConfidence = 0.7
	LowConfidence    = 0.5

	// FuzzyMatchThreshold is the minimum similarity (0-100) for
	// fuzzy field-name matching to suggest a remapping.
	FuzzyMatchThreshold = 80
)

// FieldType is a minimal stand-in for Python's type(), just enough to
// distinguish the scalar kinds the expected schemas use.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeOptionalFloat // float or nil, the common case for monetary fields
)

// Detector tracks the expected schema for one source and flags drift in
// incoming payloads.
type Detector struct {
	sourceName     string
	expectedSchema map[string]FieldType
}

// New returns a Detector for the named source with no schema set yet.
func New(sourceName string) *Detector {
	return &Detector{sourceName: sourceName}
}

// SetExpectedSchema installs the schema this detector compares against.
func (d *Detector) SetExpectedSchema(schema map[string]FieldType) {
	d.expectedSchema = schema
}

// DetectDrift compares data's field set (and, where a field is present,
// its type) against the expected schema. It returns whether drift was
// detected, a confidence score in [0,1], and human-readable warnings.
func (d *Detector) DetectDrift(data map[string]any) (hasDrift bool, confidence float64, warnings []string) {
	if d.expectedSchema == nil {
		log.Printf("[drift] no expected schema set for %s", d.sourceName)
		return false, 1.0, nil
	}

	expectedFields := make(map[string]bool, len(d.expectedSchema))
	for f := range d.expectedSchema {
		expectedFields[f] = true
	}
	actualFields := make(map[string]bool, len(data))
	for f := range data {
		actualFields[f] = true
	}

	var missing, extra []string
	for f := range expectedFields {
		if !actualFields[f] {
			missing = append(missing, f)
		}
	}
	for f := range actualFields {
		if !expectedFields[f] {
			extra = append(extra, f)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	if len(missing) > 0 {
		hasDrift = true
		warnings = append(warnings, fmt.Sprintf("Missing fields: %s", joinStrings(missing)))
	}
	if len(extra) > 0 {
		hasDrift = true
		warnings = append(warnings, fmt.Sprintf("Unexpected fields: %s", joinStrings(extra)))
	}

	var typeMismatches []string
	for field, expectedType := range d.expectedSchema {
		val, present := data[field]
		if !present || val == nil {
			continue
		}
		if !matchesType(val, expectedType) {
			typeMismatches = append(typeMismatches, fmt.Sprintf("%s: unexpected type", field))
		}
	}
	sort.Strings(typeMismatches)
	if len(typeMismatches) > 0 {
		hasDrift = true
		warnings = append(warnings, typeMismatches...)
	}

	confidence = d.calculateConfidence(expectedFields, actualFields, typeMismatches)
	return hasDrift, confidence, warnings
}

func (d *Detector) calculateConfidence(expected, actual map[string]bool, typeMismatches []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	matching := 0
	for f := range expected {
		if actual[f] {
			matching++
		}
	}
	fieldMatchRatio := float64(matching) / float64(len(expected))
	typePenalty := float64(len(typeMismatches)) * 0.1
	confidence := fieldMatchRatio - typePenalty
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// FuzzyMatchField finds the closest expected field name for an unknown
// incoming field name, or "" if nothing clears the threshold.
func (d *Detector) FuzzyMatchField(fieldName string, threshold int) string {
	if d.expectedSchema == nil {
		return ""
	}
	bestMatch := ""
	bestScore := 0
	for expected := range d.expectedSchema {
		score := levenshteinRatio(lower(fieldName), lower(expected))
		if score > bestScore && score >= threshold {
			bestScore = score
			bestMatch = expected
		}
	}
	return bestMatch
}

// SuggestFieldMapping proposes expected-field matches for every field in
// data that isn't already an exact expected-schema key.
func (d *Detector) SuggestFieldMapping(data map[string]any) map[string]string {
	if d.expectedSchema == nil {
		return map[string]string{}
	}
	suggestions := map[string]string{}
	for field := range data {
		if _, ok := d.expectedSchema[field]; ok {
			continue
		}
		if match := d.FuzzyMatchField(field, FuzzyMatchThreshold); match != "" {
			suggestions[field] = match
		}
	}
	return suggestions
}

// LogDriftSummary logs a severity-classified summary of a drift result.
func (d *Detector) LogDriftSummary(hasDrift bool, confidence float64, warnings []string) {
	if !hasDrift {
		return
	}
	level := "severe"
	switch {
	case confidence >= HighConfidence:
		level = "minor"
	case confidence >= MediumConfidence:
		level = "moderate"
	}
	log.Printf("[drift] schema drift detected (%s) source=%s confidence=%.2f warnings=%v",
		level, d.sourceName, confidence, warnings)
}

func matchesType(val any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := val.(string)
		return ok
	case TypeInt:
		switch val.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case TypeFloat, TypeOptionalFloat:
		switch val.(type) {
		case float32, float64:
			return true
		}
		return false
	}
	return true
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// levenshteinRatio mirrors fuzzywuzzy's fuzz.ratio: 100 * 2*M / T, where M
// is the number of matching characters found by an edit-distance-style
// alignment and T is the combined length of both strings. Scored on the
// 0-100 scale the original library (and spec's callers) expect.
func levenshteinRatio(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := len(a), len(b)
	if la == 0 && lb == 0 {
		return 100
	}
	dist := levenshteinDistance(a, b)
	total := la + lb
	if total == 0 {
		return 100
	}
	matched := total - dist
	ratio := float64(matched) / float64(total) * 100
	if ratio < 0 {
		ratio = 0
	}
	return int(ratio + 0.5)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			// A substitution costs a deletion plus an insertion, so
			// la+lb-dist equals twice the matched character count.
			cost := 2
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// CoinPaprikaSchema, CoinGeckoSchema and CSVSchema are the expected
// schemas for each source's raw payload, matching the service this was
// rewritten from field-for-field.
var (
	CoinPaprikaSchema = map[string]FieldType{
		"coin_id":        TypeString,
		"symbol":         TypeString,
		"name":           TypeString,
		"rank":           TypeInt,
		"price_usd":      TypeOptionalFloat,
		"volume_24h_usd": TypeOptionalFloat,
		"market_cap_usd": TypeOptionalFloat,
	}

	CoinGeckoSchema = map[string]FieldType{
		"coin_id":       TypeString,
		"symbol":        TypeString,
		"name":          TypeString,
		"current_price": TypeOptionalFloat,
		"market_cap":    TypeOptionalFloat,
		"total_volume":  TypeOptionalFloat,
	}

	CSVSchema = map[string]FieldType{
		"symbol":         TypeString,
		"name":           TypeString,
		"price_usd":      TypeOptionalFloat,
		"market_cap_usd": TypeOptionalFloat,
		"volume_24h_usd": TypeOptionalFloat,
	}
)
