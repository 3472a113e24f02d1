package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/logger"
)

// ErrMismatch marks a result that disagrees with the ranking or score endpoints.
var ErrMismatch = errors.New("result mismatch")

// verifyResults checks every stored result against the final ranking: the
// rank must match the ranking position and the XP must match POST /score
// for the participant's presence total.
func verifyResults(ctx context.Context, client *Client, cfg *Config, doc model.Session, found map[string]model.ResultItem) (int, error) {
	log := logger.Get().Named("simulate")

	var ranking []model.RankItem
	if err := client.Do(ctx, http.MethodGet, "/sessions/"+doc.ID+"/ranking", nil, &ranking); err != nil {
		return 0, fmt.Errorf("read ranking: %w", err)
	}
	if len(ranking) != len(found) {
		return 0, fmt.Errorf("%w: ranking has %d participants, %d results stored", ErrMismatch, len(ranking), len(found))
	}

	planned := int64(cfg.Minutes) * model.MillisPerMinute
	var (
		verified int
		errs     []error
	)
	for i, item := range ranking {
		res, ok := found[item.UID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: no result for %s", ErrMismatch, item.UID))
			continue
		}
		if res.Rank == nil || *res.Rank != i+1 {
			errs = append(errs, fmt.Errorf("%w: %s rank %v, ranking position %d", ErrMismatch, item.UID, res.Rank, i+1))
			continue
		}

		var score struct {
			XP int `json:"xp"`
		}
		in := model.XPInput{FocusMS: item.TotalMS, PlannedMS: planned, Tag: doc.Tag}
		if err := client.Do(ctx, http.MethodPost, "/score", in, &score); err != nil {
			return verified, fmt.Errorf("score %s: %w", item.UID, err)
		}
		if res.XP == nil || *res.XP != score.XP {
			errs = append(errs, fmt.Errorf("%w: %s xp %v, expected %d", ErrMismatch, item.UID, res.XP, score.XP))
			continue
		}
		verified++

		if cfg.Verbose {
			log.Info(ctx, "participant verified",
				logger.String("uid", item.UID),
				logger.Int("rank", i+1),
				logger.Int64("totalMs", item.TotalMS),
				logger.Int("xp", score.XP),
			)
		}
	}
	return verified, errors.Join(errs...)
}
