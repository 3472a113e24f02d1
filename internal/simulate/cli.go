package simulate

import (
	"os"
)

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`studyroom session simulator
===========================

Creates a session on a running service, lets participants join and churn,
force-ends it, finalizes results and verifies them against the ranking and
score endpoints.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -participants int
        Number of simulated participants (default 20)
  -minutes int
        Planned session length in minutes (default 25)
  -tag string
        Session tag (default "study")
  -hold duration
        How long participants stay before the host ends the room (default 5s)
  -churn int
        Leave/rejoin cycles per participant (default 2)
  -workers int
        Concurrent HTTP workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every participant's outcome
  -help
        Show this help message
`)
}
