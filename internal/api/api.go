package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/havenyouth/hilo/internal/answer"
	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
	"github.com/havenyouth/hilo/internal/event"
	"github.com/havenyouth/hilo/internal/game"
	"github.com/havenyouth/hilo/internal/judge"
	"github.com/havenyouth/hilo/internal/leaderboard"
	"github.com/havenyouth/hilo/internal/score"
	"github.com/havenyouth/hilo/internal/scoring"
	"github.com/havenyouth/hilo/internal/session"
)

type Config struct {
	Router       *gin.Engine
	EventBus     *event.Bus
	Games        *game.Service
	Judge        *judge.Service
	Session      *session.Service
	Score        *score.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	games   *game.Service
	judge   *judge.Service
	session *session.Service
	score   *score.Service
	ls      *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		games:   c.Games,
		judge:   c.Judge,
		session: c.Session,
		score:   c.Score,
		ls:      c.Leaderboard,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	v1 := c.Router.Group("/v1")
	v1.GET("/games/:game", a.GetGame)
	v1.POST("/games/:game/answers", a.SubmitAnswer)
	v1.POST("/games/:game/answers/seed", a.SeedAnswers)
	v1.GET("/games/:game/leaderboard", a.GetLeaderboard)
	v1.POST("/sessions", a.CreateSession)
	v1.GET("/sessions/:session", a.GetSession)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameAnswerCached, func(ctx context.Context, e event.Event) error {
		return a.PublishAnswerCached(ctx, e.(domain.EventAnswerCached))
	})

	return a
}

func (a *API) GetGame(c *gin.Context) {
	g, err := a.games.GetGame(c.Request.Context(), c.Param("game"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":      g.GameID,
		"question":     g.Question,
		"answer_count": g.AnswerCount,
		"status":       g.Status,
		"opens_at":     g.OpensAt,
		"closes_at":    g.ClosesAt,
	})
}

type submitAnswerRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Round     int    `json:"round" binding:"required"`
	Answer    string `json:"answer"`
}

// SubmitAnswer runs the judging coordinator for one submission. A miss is a
// 200 with on_list=false, never an error status.
func (a *API) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	sub, err := a.judge.Judge(c.Request.Context(), judge.JudgeRequest{
		SessionID: req.SessionID,
		GameID:    c.Param("game"),
		Round:     req.Round,
		RawAnswer: req.Answer,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

type seedAnswersRequest struct {
	Answers []answer.Seed `json:"answers" binding:"required"`
}

// SeedAnswers accepts a bulk-generated answer set. The set is validated and
// stored all-or-nothing; a malformed generation is rejected whole.
func (a *API) SeedAnswers(c *gin.Context) {
	var req seedAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	if err := a.games.SeedAnswers(c.Request.Context(), c.Param("game"), req.Answers); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": len(req.Answers)})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		GameID: c.Param("game"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

type createSessionRequest struct {
	GameID     string `json:"game_id" binding:"required"`
	PlayerName string `json:"player_name"`
}

func (a *API) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ss, err := a.session.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		GameID:     req.GameID,
		PlayerName: req.PlayerName,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  ss.SessionID,
		"game_id":     ss.GameID,
		"player_name": ss.PlayerName,
	})
}

// GetSession returns a session with its completed rounds and running total,
// everything the client needs to rehydrate a resumed game.
func (a *API) GetSession(c *gin.Context) {
	ctx := c.Request.Context()

	ss, err := a.session.GetSession(ctx, c.Param("session"))
	if err != nil {
		writeError(c, err)
		return
	}

	rounds, err := a.score.ListRounds(ctx, ss.SessionID, ss.GameID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":       ss.SessionID,
		"game_id":          ss.GameID,
		"player_name":      ss.PlayerName,
		"completed_rounds": rounds,
		"total_score":      scoring.TotalScore(rounds),
	})
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.JSON(e.HTTPStatusCode(), gin.H{
		"code":    e.Code,
		"message": e.Message,
	})
}
