package health

type StepSample struct {
	Date      Date `json:"date"`
	StepCount int  `json:"step_count"`
}

// StepRow and SleepRow are rows as stored, keyed by a YYYY-MM-DD date string.
type StepRow struct {
	Date      string
	StepCount int
}

type SleepRow struct {
	Date     string
	Sessions string
}
