package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/havenyouth/hilo/internal/api"
	"github.com/havenyouth/hilo/internal/classifier/gemini"
	"github.com/havenyouth/hilo/internal/event"
	"github.com/havenyouth/hilo/internal/game"
	"github.com/havenyouth/hilo/internal/judge"
	"github.com/havenyouth/hilo/internal/leaderboard"
	"github.com/havenyouth/hilo/internal/score"
	"github.com/havenyouth/hilo/internal/session"
	"github.com/havenyouth/hilo/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Game struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Gemini struct {
		APIKey         string
		Model          string
		TimeoutSeconds int
	}

	Judge struct {
		MaxRank int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool

		gemini *gemini.Client
	}

	service struct {
		game        *game.Service
		score       *score.Service
		session     *session.Service
		judge       *judge.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if err := s.initGemini(); err != nil {
		return fmt.Errorf("gemini: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Postgres.Game
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initGemini() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := gemini.New(ctx, gemini.Config{
		APIKey:  s.c.Gemini.APIKey,
		Model:   s.c.Gemini.Model,
		Timeout: time.Duration(s.c.Gemini.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	s.infra.gemini = c
	return nil
}

func (s *Server) initService() {
	s.service.game = game.NewService(game.Config{
		DB: s.infra.postgres,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.session = session.NewService(session.Config{
		DB: s.infra.postgres,
	})

	s.service.judge = judge.NewService(judge.Config{
		Games:      s.service.game,
		Scorer:     s.service.score,
		Classifier: s.infra.gemini,
		EventBus:   s.eb,
		MaxRank:    s.c.Judge.MaxRank,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPLogger())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Games:        s.service.game,
		Judge:        s.service.judge,
		Session:      s.service.session,
		Score:        s.service.score,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if err := s.infra.gemini.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close gemini client failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
