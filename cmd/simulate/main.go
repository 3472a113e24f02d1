package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/studyroom/internal/simulate"
	"github.com/okian/studyroom/pkg/logger"
)

// Default configuration constants.
const (
	defaultParticipants = 20
	defaultMinutes      = 25
	defaultHold         = 5 * time.Second
	defaultChurn        = 2
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 10 * time.Second
	defaultPoll         = 200 * time.Millisecond
	defaultRunTimeout   = 5 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		participants = flag.Int("participants", defaultParticipants, "Number of simulated participants")
		minutes      = flag.Int("minutes", defaultMinutes, "Planned session length in minutes")
		tag          = flag.String("tag", "study", "Session tag")
		hold         = flag.Duration("hold", defaultHold, "How long participants stay before the host ends the room")
		churn        = flag.Int("churn", defaultChurn, "Leave/rejoin cycles per participant")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent HTTP workers")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose      = flag.Bool("verbose", false, "Log every participant's outcome")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	stats, err := simulate.Run(ctx, &simulate.Config{
		BaseURL:      *baseURL,
		Participants: *participants,
		Minutes:      *minutes,
		Tag:          *tag,
		Hold:         *hold,
		Churn:        *churn,
		Workers:      *workers,
		Timeout:      *timeout,
		PollInterval: defaultPoll,
		Verbose:      *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "simulation failed",
			logger.String("session", stats.SessionID),
			logger.Int64("failedRequests", stats.Failed),
			logger.Error(err),
		)
		cancel()
		os.Exit(1)
	}
}
