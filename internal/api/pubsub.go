package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/havenyouth/hilo/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		GameID  string             `json:"game_id"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		SessionID string `json:"session_id"`
		Score     int    `json:"score"`
	}

	CachedAnswer struct {
		GameID string `json:"game_id"`
		Answer string `json:"answer"`
		Rank   int    `json:"rank"`
	}
)

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	out := Leaderboard{
		GameID:  l.GameID,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{
			SessionID: e.SessionID,
			Score:     int(e.Score),
		})
	}

	return out
}

// PublishLeaderboardUpdated fans a leaderboard snapshot out to every
// session channel of the game, so each connected player screen refreshes.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		entry := entry
		eg.Go(func() error {
			return a.publishNotification(ctx, a.sessionChannel(entry.SessionID), e.Name(), data)
		})
	}

	return eg.Wait()
}

// PublishAnswerCached announces a newly judged answer on the game channel,
// so reveal screens pick it up without a reload.
func (a *API) PublishAnswerCached(ctx context.Context, e domain.EventAnswerCached) error {
	return a.publishNotification(ctx, a.gameChannel(e.GameID), e.Name(), CachedAnswer{
		GameID: e.GameID,
		Answer: e.Answer.Answer,
		Rank:   e.Answer.Rank,
	})
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) sessionChannel(session string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, session)
}

func (a *API) gameChannel(game string) string {
	return fmt.Sprintf("%s:game:%s", a.prefix, game)
}
