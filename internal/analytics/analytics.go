// Package analytics computes run-to-run comparisons and anomaly reports
// over etl_runs history, matching the deviation thresholds and severity
// rules the service this was rewritten from uses.
package analytics

import (
	"fmt"

	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/models"
)

// CompareRuns builds a RunComparison between two runs of the same source.
// Both runs must exist and share a source, or an error is returned.
func CompareRuns(run1ID, run2ID string, pair map[string]dbstore.RunPair) (models.RunComparison, error) {
	r1, ok := pair[run1ID]
	if !ok {
		return models.RunComparison{}, fmt.Errorf("run not found: %s", run1ID)
	}
	r2, ok := pair[run2ID]
	if !ok {
		return models.RunComparison{}, fmt.Errorf("run not found: %s", run2ID)
	}
	if r1.Source != r2.Source {
		return models.RunComparison{}, fmt.Errorf("cannot compare runs from different sources")
	}

	recordsDiff := r2.Records - r1.Records
	durationDiff := r2.DurationS - r1.DurationS

	var recordsPct, durationPct float64
	if r1.Records > 0 {
		recordsPct = float64(recordsDiff) / float64(r1.Records) * 100
	}
	if r1.DurationS > 0 {
		durationPct = float64(durationDiff) / float64(r1.DurationS) * 100
	}

	var anomalies []string
	if abs(recordsPct) > 50 {
		anomalies = append(anomalies, fmt.Sprintf("Records changed by %.1f%% (threshold: 50%%)", recordsPct))
	}
	if abs(durationPct) > 100 {
		anomalies = append(anomalies, fmt.Sprintf("Duration changed by %.1f%% (threshold: 100%%)", durationPct))
	}
	if r2.Records == 0 {
		anomalies = append(anomalies, "No records processed in second run")
	}

	return models.RunComparison{
		Run1ID:                 run1ID,
		Run2ID:                 run2ID,
		SourceName:             r1.Source,
		RecordsDiff:            recordsDiff,
		DurationDiffSeconds:    durationDiff,
		RecordsDiffPercentage:  round2(recordsPct),
		DurationDiffPercentage: round2(durationPct),
		AnomalyDetected:        len(anomalies) > 0,
		AnomalyReasons:         anomalies,
	}, nil
}

// DetectAnomalies compares each source's most recent run against the
// average of its prior runs in the lookback window, flagging deviations.
func DetectAnomalies(bySource map[string][]dbstore.AnomalyRun) []models.AnomalyReport {
	var reports []models.AnomalyReport

	for sourceName, runs := range bySource {
		if len(runs) < 2 {
			continue
		}
		historical := runs[1:]
		var sumRecords, sumDuration float64
		for _, r := range historical {
			sumRecords += float64(r.Records)
			sumDuration += float64(r.Duration)
		}
		avgRecords := sumRecords / float64(len(historical))
		avgDuration := sumDuration / float64(len(historical))

		latest := runs[0]
		var anomalies []string

		if latest.Status == "failed" {
			anomalies = append(anomalies, "ETL run failed")
		}
		if avgRecords > 0 {
			deviation := abs(float64(latest.Records)-avgRecords) / avgRecords * 100
			if deviation > 50 {
				anomalies = append(anomalies, fmt.Sprintf(
					"Records processed (%d) deviates %.1f%% from average (%.0f)",
					latest.Records, deviation, avgRecords))
			}
		}
		if avgDuration > 0 {
			deviation := abs(float64(latest.Duration)-avgDuration) / avgDuration * 100
			if deviation > 100 {
				anomalies = append(anomalies, fmt.Sprintf(
					"Duration (%ds) deviates %.1f%% from average (%.0fs)",
					latest.Duration, deviation, avgDuration))
			}
		}
		if float64(latest.Failed) > float64(latest.Records)*0.1 {
			anomalies = append(anomalies, fmt.Sprintf("High failure rate: %d records failed", latest.Failed))
		}

		if len(anomalies) == 0 {
			continue
		}

		severity := "low"
		switch {
		case latest.Status == "failed" || len(anomalies) >= 3:
			severity = "high"
		case len(anomalies) >= 2:
			severity = "medium"
		}

		reports = append(reports, models.AnomalyReport{
			RunID:      latest.RunID,
			SourceName: sourceName,
			Anomalies:  anomalies,
			Severity:   severity,
		})
	}
	return reports
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func round2(f float64) float64 {
	return float64(int(f*100+sign(f)*0.5)) / 100
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
