// Package simulate drives a running studyroom service through a full session:
// participants join and churn, the host force-ends, results are finalized and
// cross-checked against the ranking and score endpoints.
package simulate

import "time"

// Config holds configuration for one simulated session.
type Config struct {
	BaseURL      string        // Base URL of the service
	Participants int           // Number of simulated participants
	Minutes      int           // Planned session length
	Tag          string        // Session tag, e.g. "study"
	Hold         time.Duration // How long participants stay before the host ends the room
	Churn        int           // Leave/rejoin cycles per participant during Hold
	Workers      int           // Concurrent HTTP workers
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Interval between result polls
	Verbose      bool          // Log every participant's outcome
}

// Stats holds simulation statistics.
type Stats struct {
	SessionID     string
	Joins         int64
	Leaves        int64
	Failed        int64
	ResultsStored int
	Verified      int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}
