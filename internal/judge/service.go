// Package judge coordinates the two-tier resolution of a submitted answer:
// an exact lookup against the stored list (fast path), or a language-model
// verdict with rank clamping and a best-effort cache write (slow path).
// Every branch ends by delegating to the transactional scoring operation;
// the coordinator only resolves validity and rank, never the score.
package judge

import (
	"context"
	"log/slog"
	"time"

	"github.com/havenyouth/hilo/internal/answer"
	"github.com/havenyouth/hilo/internal/classifier"
	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
	"github.com/havenyouth/hilo/internal/event"
	"github.com/havenyouth/hilo/internal/score"
	"github.com/havenyouth/hilo/internal/scoring"
)

// DefaultMaxRank bounds the rank a classifier may propose for a new answer.
const DefaultMaxRank = 500

// AnswerStore is the slice of the game service the coordinator needs.
type AnswerStore interface {
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	ListAnswers(ctx context.Context, gameID string) ([]domain.RankedAnswer, error)
	FindAnswer(ctx context.Context, gameID, normalized string) (*domain.RankedAnswer, error)
	CacheAnswer(ctx context.Context, gameID string, a domain.RankedAnswer) error
}

// Scorer is the transactional scoring operation.
type Scorer interface {
	SubmitRound(ctx context.Context, req score.SubmitRoundRequest) (*domain.RoundSubmission, error)
}

type Config struct {
	Games      AnswerStore
	Scorer     Scorer
	Classifier classifier.Judge
	EventBus   *event.Bus

	// MaxRank clamps classifier-proposed ranks; zero means DefaultMaxRank.
	MaxRank int

	// NowFunc is the clock for the playable-window check; zero means
	// time.Now.
	NowFunc func() time.Time
}

type Service struct {
	games      AnswerStore
	scorer     Scorer
	classifier classifier.Judge
	eb         *event.Bus
	maxRank    int
	now        func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		games:      c.Games,
		scorer:     c.Scorer,
		classifier: c.Classifier,
		eb:         c.EventBus,
		maxRank:    c.MaxRank,
		now:        c.NowFunc,
	}

	if s.maxRank <= 0 {
		s.maxRank = DefaultMaxRank
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type JudgeRequest struct {
	SessionID string
	GameID    string
	Round     int
	RawAnswer string
}

// Judge resolves one raw submission to a scored round result.
//
// Classifier trouble of any kind (unreachable, timeout, unparseable output)
// is absorbed here and resolved to a miss; the player cannot tell "the
// judge was down" from "you're wrong". Only scoring-operation failure
// propagates.
func (s *Service) Judge(ctx context.Context, req JudgeRequest) (*domain.RoundSubmission, error) {
	if req.Round < 1 || req.Round > scoring.Rounds {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("round %d outside [1, %d]", req.Round, scoring.Rounds))
	}

	g, err := s.games.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, err
	}

	if !g.Playable(s.now()) {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game not playable: %s status=%s", g.GameID, g.Status))
	}

	norm := answer.Normalize(req.RawAnswer)
	if norm == "" {
		return s.submit(ctx, req, norm)
	}

	// Fast path: exact normalized match, no classifier involved.
	match, err := s.games.FindAnswer(ctx, req.GameID, norm)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, errors.WithCause(err))
	}
	if match != nil {
		return s.submit(ctx, req, match.Answer)
	}

	return s.judgeSlow(ctx, req, g, norm)
}

// judgeSlow asks the classifier for a verdict on an answer with no exact
// match. The three outcomes are evaluated in strict order: reject,
// equivalent of a known entry, new valid answer.
func (s *Service) judgeSlow(ctx context.Context, req JudgeRequest, g *domain.Game, norm string) (*domain.RoundSubmission, error) {
	known, err := s.games.ListAnswers(ctx, req.GameID)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, errors.WithCause(err))
	}

	verdict, err := s.classifier.Judge(ctx, classifier.Request{
		Question:          g.Question,
		SubmittedAnswer:   norm,
		KnownAnswers:      known,
		AnswerCountTarget: g.AnswerCount,
	})
	if err != nil {
		slog.WarnContext(ctx, "judge: classifier failed, resolving as miss",
			"game", req.GameID,
			"error", err,
		)
		return s.submit(ctx, req, norm)
	}

	if !verdict.Valid {
		slog.InfoContext(ctx, "judge: answer rejected",
			"game", req.GameID,
			"reason", verdict.Reason,
		)
		return s.submit(ctx, req, norm)
	}

	if verdict.MatchedTo != "" && verdict.MatchedTo != classifier.MatchedToNew {
		return s.judgeEquivalent(ctx, req, known, verdict)
	}

	return s.judgeNew(ctx, req, norm, verdict)
}

// judgeEquivalent adopts an existing entry's rank by scoring the matched
// entry's own text. A matched_to that names no known entry is a model
// hallucination and resolves as a miss.
func (s *Service) judgeEquivalent(ctx context.Context, req JudgeRequest, known []domain.RankedAnswer, verdict classifier.Response) (*domain.RoundSubmission, error) {
	matched := answer.Normalize(verdict.MatchedTo)
	for _, a := range known {
		if a.Answer == matched {
			return s.submit(ctx, req, a.Answer)
		}
	}

	slog.WarnContext(ctx, "judge: matched_to is not a known answer, resolving as miss",
		"game", req.GameID,
		"matched_to", verdict.MatchedTo,
	)
	return s.submit(ctx, req, answer.Normalize(req.RawAnswer))
}

// judgeNew caches a newly judged answer under the clamped rank, then
// scores it. The cache write is best-effort: losing an insert race to a
// concurrent session judging the same answer must not fail this player's
// round.
func (s *Service) judgeNew(ctx context.Context, req JudgeRequest, norm string, verdict classifier.Response) (*domain.RoundSubmission, error) {
	if verdict.Rank == nil {
		slog.WarnContext(ctx, "judge: valid verdict without a rank, resolving as miss",
			"game", req.GameID,
		)
		return s.submit(ctx, req, norm)
	}

	cached := domain.RankedAnswer{
		Answer:     norm,
		Rank:       s.clampRank(*verdict.Rank),
		IsAIJudged: true,
	}

	err := s.games.CacheAnswer(ctx, req.GameID, cached)
	switch {
	case errors.Is(err, errors.CodeAlreadyExists):
		slog.InfoContext(ctx, "judge: lost cache-write race",
			"game", req.GameID,
			"answer", norm,
		)
	case err != nil:
		slog.WarnContext(ctx, "judge: cache write failed",
			"game", req.GameID,
			"answer", norm,
			"error", err,
		)
	default:
		s.eb.Publish(ctx, domain.EventAnswerCached{
			GameID: req.GameID,
			Answer: cached,
		})
	}

	return s.submit(ctx, req, norm)
}

// clampRank bounds a classifier-proposed rank to [1, maxRank]. The raw
// model value is never used unclamped.
func (s *Service) clampRank(rank int) int {
	if rank < 1 {
		return 1
	}
	if rank > s.maxRank {
		return s.maxRank
	}
	return rank
}

func (s *Service) submit(ctx context.Context, req JudgeRequest, norm string) (*domain.RoundSubmission, error) {
	return s.scorer.SubmitRound(ctx, score.SubmitRoundRequest{
		SessionID: req.SessionID,
		GameID:    req.GameID,
		Round:     req.Round,
		Answer:    norm,
	})
}
