// Package seed generates synthetic flight records and loads them into a
// running service, a CSV file or PostgreSQL, then checks the service's
// recommendations against locally computed ones.
package seed

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	// BaseURL of the service; empty skips HTTP submission.
	BaseURL string
	// Records is the number of records to generate.
	Records int
	// BatchSize is the number of records per POST /api/records.
	BatchSize int
	// Workers is the number of concurrent submitters.
	Workers int
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// Retries is the number of attempts per batch when the service answers 429.
	Retries int

	Airports []string
	Airlines []string
	// Start is the first departure day; records spread over Days days.
	Start time.Time
	Days  int
	// Seed makes the data set reproducible.
	Seed uint64
	// DirtyRatio is the share of records with a missing delay or a
	// timestamp the service rejects.
	DirtyRatio float64

	// CSVFile receives the generated records when set.
	CSVFile string
	// DSN receives the usable records in PostgreSQL when set.
	DSN string

	// Settle is the wait between submission and verification.
	Settle time.Duration
	// VerifyRoutes caps the routes compared against the service.
	VerifyRoutes int
	// StrictVerify fails the run on any mismatch.
	StrictVerify bool
	LogFile      string
	Verbose      bool
}

// Stats holds run statistics.
type Stats struct {
	RunID            string
	RecordsGenerated int
	BatchesSubmitted int
	BatchesFailed    int
	BatchesThrottled int
	RecordsAccepted  int
	RecordsDuplicate int
	RecordsRejected  int
	RecordsWritten   int
	RoutesVerified   int
	RoutesMismatched int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
