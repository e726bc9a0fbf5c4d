package normalize

import (
	"fmt"

	"github.com/nadmax/fitsync/internal/health"
)

// Steps projects stored step rows into samples without reshaping them.
func Steps(rows []health.StepRow) ([]health.StepSample, error) {
	samples := make([]health.StepSample, 0, len(rows))
	for _, row := range rows {
		date, err := health.ParseDate(row.Date)
		if err != nil {
			return nil, &health.NormalizationError{Date: row.Date, Reason: "invalid row date", Err: err}
		}
		if row.StepCount < 0 {
			return nil, &health.NormalizationError{Date: row.Date, Reason: fmt.Sprintf("negative step count %d", row.StepCount)}
		}
		samples = append(samples, health.StepSample{Date: date, StepCount: row.StepCount})
	}
	return samples, nil
}
