package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
	"github.com/havenyouth/hilo/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps a per-game leaderboard in a redis sorted set, updated from
// round.scored events. Ranking across games is out of scope.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameRoundScored, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventRoundScored))
	})

	return s
}

type GetLeaderboardRequest struct {
	GameID string
}

// GetLeaderboard returns a game's leaderboard with all sessions and their
// total scores, highest first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.GameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: game=%s", req.GameID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			SessionID: z.Member.(string),
			Score:     z.Score,
		})
	}

	return &domain.Leaderboard{
		GameID:  req.GameID,
		Entries: entries,
	}, nil
}

// UpdateLeaderboard overwrites the session's total score in its game's
// leaderboard.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventRoundScored) error {
	sub := e.Submission

	if err := s.redis.ZAdd(ctx, s.getLeaderboardKey(sub.GameID), redis.Z{
		Score:  float64(sub.TotalScore),
		Member: sub.SessionID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sub)
}

// schedulePublishLeaderboard publishes leaderboard changes at most once per
// interval. Many sessions score rounds in bursts during a live game, so
// publishing every change would flood subscribers.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, sub domain.RoundSubmission) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(sub.GameID), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, sub)
}

func (s *Service) publishLeaderboard(ctx context.Context, sub domain.RoundSubmission) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		GameID: sub.GameID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: game=%s: %w", sub.GameID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.getLeaderboardTimeKey(sub.GameID), time.Now().UnixMilli(), publishInterval).Err()
}

func (s *Service) getLeaderboardKey(game string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, game)
}

func (s *Service) getLeaderboardTimeKey(game string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, game)
}
