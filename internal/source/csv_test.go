package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vanta-labs/cryptoetl/internal/models"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "crypto_data.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestCSV_ReadRows(t *testing.T) {
	path := writeTempCSV(t, "symbol,name,price_usd,market_cap_usd,volume_24h_usd,percent_change_24h\n"+
		"BTC,Bitcoin,65000.5,1200000000000,30000000000,1.2\n"+
		"ETH,Ethereum,3000,360000000000,15000000000,\n")

	s := &CSV{path: path}
	rows, err := s.readRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Symbol != "BTC" || rows[0].Name != "Bitcoin" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[0].PriceUSD == nil || rows[0].PriceUSD.String() != "65000.5" {
		t.Errorf("expected price_usd 65000.5, got %v", rows[0].PriceUSD)
	}
	if rows[1].PercentChange24h != nil {
		t.Errorf("expected empty percent_change_24h to decode as nil, got %v", rows[1].PercentChange24h)
	}
}

func TestCSV_ReadRows_MissingFile(t *testing.T) {
	s := &CSV{path: filepath.Join(t.TempDir(), "does-not-exist.csv")}
	_, err := s.readRows()
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected an os.IsNotExist error, got %v", err)
	}
}

func TestCSV_ReadRows_EmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	s := &CSV{path: path}
	rows, err := s.readRows()
	if err != nil {
		t.Fatalf("unexpected error on an empty file: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows from an empty file, got %d", len(rows))
	}
}

func TestCSV_DecimalCol_InvalidValue(t *testing.T) {
	rec := []string{"not-a-number"}
	idx := map[string]int{"price_usd": 0}
	if d := decimalCol(rec, idx, "price_usd"); d != nil {
		t.Errorf("expected nil for an unparseable decimal column, got %v", d)
	}
}

func TestCSV_Col_MissingColumn(t *testing.T) {
	rec := []string{"BTC"}
	idx := map[string]int{"symbol": 0}
	if v := col(rec, idx, "name"); v != "" {
		t.Errorf("expected empty string for a column absent from the header, got %q", v)
	}
}

func TestValidateCSVRow(t *testing.T) {
	tests := []struct {
		name   string
		row    models.RawCSV
		wantOK bool
	}{
		{"both present", models.RawCSV{Symbol: "BTC", Name: "Bitcoin"}, true},
		{"missing name", models.RawCSV{Symbol: "BTC", Name: ""}, false},
		{"missing symbol", models.RawCSV{Symbol: "", Name: "Bitcoin"}, false},
		{"missing both", models.RawCSV{}, false},
	}
	for _, tt := range tests {
		if got := validateCSVRow(tt.row); got != tt.wantOK {
			t.Errorf("%s: validateCSVRow() = %v, want %v", tt.name, got, tt.wantOK)
		}
	}
}
