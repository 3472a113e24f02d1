package simulate

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/logger"
)

// Run executes one simulated session against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting session simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("participants", cfg.Participants),
		logger.Int("minutes", cfg.Minutes),
		logger.Duration("hold", cfg.Hold),
		logger.Int("churn", cfg.Churn),
	)

	if err := client.Do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	uids := make([]string, cfg.Participants)
	for i := range uids {
		uids[i] = fmt.Sprintf("sim-%03d", i)
	}

	var doc model.Session
	if err := client.Do(ctx, http.MethodPost, "/sessions", model.Session{
		ID:      "sim-" + uuid.NewString(),
		Title:   "Simulated session",
		Tag:     cfg.Tag,
		Minutes: model.IntPtr(cfg.Minutes),
	}, &doc, http.StatusCreated); err != nil {
		return stats, fmt.Errorf("create session: %w", err)
	}
	stats.SessionID = doc.ID
	if err := client.Do(ctx, http.MethodPost, "/sessions/"+doc.ID+"/start", nil, nil); err != nil {
		return stats, fmt.Errorf("start session: %w", err)
	}

	if err := runParticipants(ctx, client, cfg, doc.ID, uids, stats); err != nil {
		return stats, err
	}

	if err := client.Do(ctx, http.MethodPost, "/sessions/"+doc.ID+"/force-end", nil, nil); err != nil {
		return stats, fmt.Errorf("force-end: %w", err)
	}
	if err := client.Do(ctx, http.MethodPost, "/sessions/"+doc.ID+"/finalize", nil, nil, http.StatusAccepted, http.StatusOK); err != nil {
		return stats, fmt.Errorf("finalize: %w", err)
	}

	found, err := awaitResults(ctx, client, cfg, doc.ID, uids)
	stats.ResultsStored = len(found)
	if err != nil {
		return stats, err
	}

	verified, err := verifyResults(ctx, client, cfg, doc, found)
	stats.Verified = verified
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	log.Info(ctx, "simulation finished",
		logger.String("session", stats.SessionID),
		logger.Int64("joins", atomic.LoadInt64(&stats.Joins)),
		logger.Int64("leaves", atomic.LoadInt64(&stats.Leaves)),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// runParticipants joins everyone, cycles leave/rejoin Churn times spread over
// Hold, and leaves the odd participants present when the host ends the room.
func runParticipants(ctx context.Context, client *Client, cfg *Config, id string, uids []string, stats *Stats) error {
	step := cfg.Hold / time.Duration(cfg.Churn+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for i, uid := range uids {
		g.Go(func() error {
			join := func() error {
				body := map[string]any{"uid": uid, "display_name": "Participant " + uid}
				if err := client.Do(gctx, http.MethodPost, "/sessions/"+id+"/join", body, nil); err != nil {
					atomic.AddInt64(&stats.Failed, 1)
					return fmt.Errorf("join %s: %w", uid, err)
				}
				atomic.AddInt64(&stats.Joins, 1)
				return nil
			}
			leave := func() error {
				if err := client.Do(gctx, http.MethodPost, "/sessions/"+id+"/leave", map[string]any{"uid": uid}, nil); err != nil {
					atomic.AddInt64(&stats.Failed, 1)
					return fmt.Errorf("leave %s: %w", uid, err)
				}
				atomic.AddInt64(&stats.Leaves, 1)
				return nil
			}

			if err := join(); err != nil {
				return err
			}
			for c := 0; c < cfg.Churn; c++ {
				if err := sleep(gctx, step); err != nil {
					return err
				}
				if err := leave(); err != nil {
					return err
				}
				if err := join(); err != nil {
					return err
				}
			}
			if err := sleep(gctx, step); err != nil {
				return err
			}
			if i%2 == 0 {
				return leave()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("participant simulation failed: %w", err)
	}
	return nil
}

// awaitResults polls each participant's result cache until the session shows up.
func awaitResults(ctx context.Context, client *Client, cfg *Config, id string, uids []string) (map[string]model.ResultItem, error) {
	found := make(map[string]model.ResultItem, len(uids))
	for len(found) < len(uids) {
		for _, uid := range uids {
			if _, ok := found[uid]; ok {
				continue
			}
			var items []model.ResultItem
			if err := client.Do(ctx, http.MethodGet, "/users/"+uid+"/results", nil, &items); err != nil {
				return found, fmt.Errorf("read results of %s: %w", uid, err)
			}
			for _, it := range items {
				if it.RoomID == id {
					found[uid] = it
					break
				}
			}
		}
		if len(found) == len(uids) {
			break
		}
		if err := sleep(ctx, cfg.PollInterval); err != nil {
			return found, fmt.Errorf("waiting for results (%d/%d): %w", len(found), len(uids), err)
		}
	}
	return found, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
