package analytics

import (
	"testing"

	"github.com/vanta-labs/cryptoetl/internal/dbstore"
)

func TestCompareRuns_NoAnomaly(t *testing.T) {
	pair := map[string]dbstore.RunPair{
		"run1": {RunID: "run1", Source: "coinpaprika", Records: 100, DurationS: 10},
		"run2": {RunID: "run2", Source: "coinpaprika", Records: 110, DurationS: 11},
	}

	got, err := CompareRuns("run1", "run2", pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AnomalyDetected {
		t.Errorf("expected no anomaly for a 10%% records/duration change, got %v", got.AnomalyReasons)
	}
	if got.RecordsDiff != 10 || got.DurationDiffSeconds != 1 {
		t.Errorf("expected raw diffs 10/1, got %d/%d", got.RecordsDiff, got.DurationDiffSeconds)
	}
}

func TestCompareRuns_RecordsDeviationAnomaly(t *testing.T) {
	pair := map[string]dbstore.RunPair{
		"run1": {RunID: "run1", Source: "coingecko", Records: 100, DurationS: 10},
		"run2": {RunID: "run2", Source: "coingecko", Records: 160, DurationS: 10},
	}

	got, err := CompareRuns("run1", "run2", pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.AnomalyDetected {
		t.Fatalf("expected anomaly for a 60%% records change (threshold 50%%)")
	}
	if len(got.AnomalyReasons) != 1 {
		t.Errorf("expected exactly one anomaly reason, got %v", got.AnomalyReasons)
	}
}

func TestCompareRuns_ZeroRecordsSecondRun(t *testing.T) {
	pair := map[string]dbstore.RunPair{
		"run1": {RunID: "run1", Source: "csv", Records: 50, DurationS: 5},
		"run2": {RunID: "run2", Source: "csv", Records: 0, DurationS: 5},
	}

	got, err := CompareRuns("run1", "run2", pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.AnomalyDetected {
		t.Fatalf("expected anomaly when second run processed zero records")
	}
	found := false
	for _, r := range got.AnomalyReasons {
		if r == "No records processed in second run" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the zero-records reason to be present, got %v", got.AnomalyReasons)
	}
}

func TestCompareRuns_DifferentSources(t *testing.T) {
	pair := map[string]dbstore.RunPair{
		"run1": {RunID: "run1", Source: "coinpaprika", Records: 100, DurationS: 10},
		"run2": {RunID: "run2", Source: "coingecko", Records: 100, DurationS: 10},
	}
	if _, err := CompareRuns("run1", "run2", pair); err == nil {
		t.Fatalf("expected an error comparing runs from different sources")
	}
}

func TestCompareRuns_MissingRun(t *testing.T) {
	pair := map[string]dbstore.RunPair{
		"run1": {RunID: "run1", Source: "coinpaprika", Records: 100, DurationS: 10},
	}
	if _, err := CompareRuns("run1", "nonexistent", pair); err == nil {
		t.Fatalf("expected an error for a run not present in the pair map")
	}
}

func TestDetectAnomalies_FailedRunIsHighSeverity(t *testing.T) {
	bySource := map[string][]dbstore.AnomalyRun{
		"coinpaprika": {
			{RunID: "latest", Status: "failed", Records: 0, Duration: 5, Failed: 0},
			{RunID: "prev1", Status: "success", Records: 100, Duration: 10, Failed: 0},
			{RunID: "prev2", Status: "success", Records: 100, Duration: 10, Failed: 0},
		},
	}

	reports := DetectAnomalies(bySource)
	if len(reports) != 1 {
		t.Fatalf("expected exactly one anomaly report, got %d", len(reports))
	}
	if reports[0].Severity != "high" {
		t.Errorf("expected severity high for a failed run, got %q", reports[0].Severity)
	}
}

func TestDetectAnomalies_HighFailureRate(t *testing.T) {
	bySource := map[string][]dbstore.AnomalyRun{
		"csv": {
			{RunID: "latest", Status: "success", Records: 100, Duration: 10, Failed: 20},
			{RunID: "prev1", Status: "success", Records: 100, Duration: 10, Failed: 0},
		},
	}

	reports := DetectAnomalies(bySource)
	if len(reports) != 1 {
		t.Fatalf("expected one anomaly report for a 20%% failure rate, got %d", len(reports))
	}
	if reports[0].Severity != "low" {
		t.Errorf("expected severity low for a single anomaly reason, got %q", reports[0].Severity)
	}
}

func TestDetectAnomalies_NoHistorySkipsSource(t *testing.T) {
	bySource := map[string][]dbstore.AnomalyRun{
		"coingecko": {
			{RunID: "only-run", Status: "success", Records: 100, Duration: 10, Failed: 0},
		},
	}
	reports := DetectAnomalies(bySource)
	if len(reports) != 0 {
		t.Errorf("expected no reports when a source has fewer than 2 runs, got %v", reports)
	}
}

func TestDetectAnomalies_NormalRunProducesNoReport(t *testing.T) {
	bySource := map[string][]dbstore.AnomalyRun{
		"coinpaprika": {
			{RunID: "latest", Status: "success", Records: 105, Duration: 11, Failed: 1},
			{RunID: "prev1", Status: "success", Records: 100, Duration: 10, Failed: 0},
			{RunID: "prev2", Status: "success", Records: 100, Duration: 10, Failed: 0},
		},
	}
	reports := DetectAnomalies(bySource)
	if len(reports) != 0 {
		t.Errorf("expected no anomaly report for a run close to its historical average, got %v", reports)
	}
}
