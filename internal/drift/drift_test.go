package drift

import "testing"

func TestDetectDrift_NoSchemaSet(t *testing.T) {
	d := New("test")
	hasDrift, confidence, warnings := d.DetectDrift(map[string]any{"anything": "goes"})
	if hasDrift {
		t.Errorf("expected no drift with no schema set, got drift")
	}
	if confidence != 1.0 {
		t.Errorf("expected confidence 1.0 with no schema set, got %v", confidence)
	}
	if warnings != nil {
		t.Errorf("expected no warnings with no schema set, got %v", warnings)
	}
}

func TestDetectDrift_MissingAndExtraFields(t *testing.T) {
	d := New("coinpaprika")
	d.SetExpectedSchema(map[string]FieldType{
		"coin_id": TypeString,
		"symbol":  TypeString,
	})

	hasDrift, confidence, warnings := d.DetectDrift(map[string]any{
		"symbol": "BTC",
		"extra":  "surprise",
	})

	if !hasDrift {
		t.Fatalf("expected drift to be detected")
	}
	if confidence != 0.5 {
		t.Errorf("expected confidence 0.5 (1 of 2 fields present), got %v", confidence)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings (missing + extra), got %d: %v", len(warnings), warnings)
	}
}

func TestDetectDrift_TypeMismatchPenalty(t *testing.T) {
	d := New("csv")
	d.SetExpectedSchema(map[string]FieldType{
		"symbol":    TypeString,
		"price_usd": TypeOptionalFloat,
	})

	hasDrift, confidence, warnings := d.DetectDrift(map[string]any{
		"symbol":    "BTC",
		"price_usd": "not-a-number",
	})

	if !hasDrift {
		t.Fatalf("expected drift from type mismatch")
	}
	if confidence != 0.9 {
		t.Errorf("expected confidence 1.0 field match - 0.1 type penalty = 0.9, got %v", confidence)
	}
	if len(warnings) != 1 {
		t.Errorf("expected 1 type-mismatch warning, got %d: %v", len(warnings), warnings)
	}
}

func TestDetectDrift_NilOptionalFieldNotAMismatch(t *testing.T) {
	d := New("coingecko")
	d.SetExpectedSchema(map[string]FieldType{
		"market_cap": TypeOptionalFloat,
	})
	hasDrift, confidence, _ := d.DetectDrift(map[string]any{"market_cap": nil})
	if hasDrift {
		t.Errorf("expected nil optional field to not count as drift")
	}
	if confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", confidence)
	}
}

func TestFuzzyMatchField(t *testing.T) {
	d := New("test")
	d.SetExpectedSchema(map[string]FieldType{
		"price_usd": TypeOptionalFloat,
	})

	match := d.FuzzyMatchField("price_usdx", FuzzyMatchThreshold)
	if match != "price_usd" {
		t.Errorf("expected close match to price_usd, got %q", match)
	}

	noMatch := d.FuzzyMatchField("completely_unrelated_field_name", FuzzyMatchThreshold)
	if noMatch != "" {
		t.Errorf("expected no match above threshold, got %q", noMatch)
	}
}

func TestLevenshteinRatio_Identical(t *testing.T) {
	if r := levenshteinRatio("price_usd", "price_usd"); r != 100 {
		t.Errorf("expected ratio 100 for identical strings, got %d", r)
	}
}

func TestLevenshteinRatio_Empty(t *testing.T) {
	if r := levenshteinRatio("", ""); r != 100 {
		t.Errorf("expected ratio 100 for two empty strings, got %d", r)
	}
}
