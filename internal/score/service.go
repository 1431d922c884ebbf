package score

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenyouth/hilo/internal/answer"
	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
	"github.com/havenyouth/hilo/internal/event"
	"github.com/havenyouth/hilo/internal/scoring"
)

const codeUniqueViolation = "23505"

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

// Service is the transactional scoring operation. It re-resolves the
// submitted answer's rank from the stored list (a caller-supplied rank is
// never trusted), computes the round score, persists the submission and
// returns the round result. It is idempotent per (session, game, round):
// a duplicate call returns the stored submission without awarding again.
type Service struct {
	eb *event.Bus
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{
		eb: c.EventBus,
		db: c.DB,
	}
}

type SubmitRoundRequest struct {
	SessionID string
	GameID    string
	Round     int
	Answer    string
}

// SubmitRound resolves and scores one round submission. A miss (the answer
// is not on the stored list) returns the miss form of the result and is not
// persisted; the player keeps the round.
func (s *Service) SubmitRound(ctx context.Context, req SubmitRoundRequest) (*domain.RoundSubmission, error) {
	if req.Round < 1 || req.Round > scoring.Rounds {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("round %d outside [1, %d]", req.Round, scoring.Rounds))
	}

	norm := answer.Normalize(req.Answer)

	rank, err := s.resolveRank(ctx, req.GameID, norm)
	if err != nil {
		return nil, err
	}

	if rank == scoring.RankMiss {
		return s.missResult(ctx, req, norm)
	}

	// Ranks above the formula ceiling (deep seeded tails, judged inserts)
	// score as the ceiling; the submission keeps the true rank.
	scored := rank
	if scored > scoring.RankMax {
		scored = scoring.RankMax
	}

	roundScore, err := scoring.RoundScore(req.Round, scored)
	if err != nil {
		return nil, err
	}

	total, err := s.insertSubmission(ctx, req, norm, rank, roundScore)
	if errors.Is(err, errors.CodeAlreadyExists) {
		return s.storedResult(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	allAnswers, err := s.listAnswers(ctx, req.GameID)
	if err != nil {
		return nil, err
	}

	sub := &domain.RoundSubmission{
		SessionID:       req.SessionID,
		GameID:          req.GameID,
		Round:           req.Round,
		SubmittedAnswer: norm,
		OnList:          true,
		Rank:            rank,
		RoundScore:      roundScore,
		TotalScore:      total,
		Direction:       scoring.DirectionFor(req.Round),
		AllAnswers:      allAnswers,
	}

	s.eb.Publish(ctx, domain.EventRoundScored{
		Submission: *sub,
	})

	return sub, nil
}

func (s *Service) resolveRank(ctx context.Context, gameID, norm string) (int, error) {
	const stmt = `SELECT rank FROM game_answers WHERE game_id = $1 AND answer = $2;`

	var rank int
	err := s.db.QueryRow(ctx, stmt, gameID, norm).Scan(&rank)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return scoring.RankMiss, nil
	}
	if err != nil {
		return 0, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("resolve rank: game=%s", gameID),
			errors.WithCause(err))
	}

	return rank, nil
}

func (s *Service) insertSubmission(ctx context.Context, req SubmitRoundRequest, norm string, rank, roundScore int) (int, error) {
	const stmt = `
WITH inserted AS (
	INSERT INTO round_submissions (session_id, game_id, round, answer, rank, round_score, create_time)
	VALUES ($1, $2, $3, $4, $5, $6, now())
)
SELECT COALESCE(SUM(round_score), 0) FROM round_submissions WHERE session_id = $1 AND game_id = $2;`

	var prior int
	err := s.db.QueryRow(ctx, stmt, req.SessionID, req.GameID, req.Round, norm, rank, roundScore).Scan(&prior)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return 0, errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	}

	if err != nil {
		return 0, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("insert submission: session=%s game=%s round=%d", req.SessionID, req.GameID, req.Round),
			errors.WithCause(err))
	}

	return prior + roundScore, nil
}

// missResult builds the unpersisted miss form of the result: on-list false,
// zero round score, running total unchanged.
func (s *Service) missResult(ctx context.Context, req SubmitRoundRequest, norm string) (*domain.RoundSubmission, error) {
	total, err := s.totalScore(ctx, req.SessionID, req.GameID)
	if err != nil {
		return nil, err
	}

	return &domain.RoundSubmission{
		SessionID:       req.SessionID,
		GameID:          req.GameID,
		Round:           req.Round,
		SubmittedAnswer: norm,
		OnList:          false,
		Rank:            scoring.RankMiss,
		RoundScore:      0,
		TotalScore:      total,
		Direction:       scoring.DirectionFor(req.Round),
	}, nil
}

// storedResult returns the submission already persisted for this round, so
// a retried call never double-awards.
func (s *Service) storedResult(ctx context.Context, req SubmitRoundRequest) (*domain.RoundSubmission, error) {
	const stmt = `
SELECT answer, rank, round_score
FROM round_submissions
WHERE session_id = $1 AND game_id = $2 AND round = $3;`

	sub := &domain.RoundSubmission{
		SessionID: req.SessionID,
		GameID:    req.GameID,
		Round:     req.Round,
		OnList:    true,
		Direction: scoring.DirectionFor(req.Round),
	}

	err := s.db.QueryRow(ctx, stmt, req.SessionID, req.GameID, req.Round).
		Scan(&sub.SubmittedAnswer, &sub.Rank, &sub.RoundScore)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("load stored submission: session=%s game=%s round=%d", req.SessionID, req.GameID, req.Round),
			errors.WithCause(err))
	}

	sub.TotalScore, err = s.totalScore(ctx, req.SessionID, req.GameID)
	if err != nil {
		return nil, err
	}

	sub.AllAnswers, err = s.listAnswers(ctx, req.GameID)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *Service) totalScore(ctx context.Context, sessionID, gameID string) (int, error) {
	const stmt = `SELECT COALESCE(SUM(round_score), 0) FROM round_submissions WHERE session_id = $1 AND game_id = $2;`

	var total int
	if err := s.db.QueryRow(ctx, stmt, sessionID, gameID).Scan(&total); err != nil {
		return 0, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("total score: session=%s game=%s", sessionID, gameID),
			errors.WithCause(err))
	}

	return total, nil
}

func (s *Service) listAnswers(ctx context.Context, gameID string) ([]domain.RankedAnswer, error) {
	const stmt = `
SELECT answer, rank, is_ai_judged
FROM game_answers
WHERE game_id = $1
ORDER BY rank;`

	rows, err := s.db.Query(ctx, stmt, gameID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.RankedAnswer, error) {
		var a domain.RankedAnswer
		if err := r.Scan(&a.Answer, &a.Rank, &a.IsAIJudged); err != nil {
			return domain.RankedAnswer{}, err
		}
		return a, nil
	})
}

// ListRounds returns a session's persisted submissions in round order, for
// session resume.
func (s *Service) ListRounds(ctx context.Context, sessionID, gameID string) ([]domain.RoundSubmission, error) {
	const stmt = `
SELECT round, answer, rank, round_score, create_time
FROM round_submissions
WHERE session_id = $1 AND game_id = $2
ORDER BY round;`

	rows, err := s.db.Query(ctx, stmt, sessionID, gameID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	subs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.RoundSubmission, error) {
		sub := domain.RoundSubmission{
			SessionID: sessionID,
			GameID:    gameID,
			OnList:    true,
		}
		if err := r.Scan(&sub.Round, &sub.SubmittedAnswer, &sub.Rank, &sub.RoundScore, &sub.CreateTime); err != nil {
			return domain.RoundSubmission{}, err
		}
		sub.Direction = scoring.DirectionFor(sub.Round)
		return sub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	return subs, nil
}
