package game

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
)

const codeUniqueViolation = "23505"

type Config struct {
	DB *pgxpool.Pool
}

// Service owns games and their ranked answer lists. Answer text is stored
// normalized; the unique key on (game_id, answer) is what makes concurrent
// judged-answer inserts race safely.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

func (s *Service) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	const stmt = `
SELECT game_id, question, answer_count, status, opens_at, closes_at
FROM games
WHERE game_id = $1;`

	var g domain.Game
	err := s.db.QueryRow(ctx, stmt, gameID).
		Scan(&g.GameID, &g.Question, &g.AnswerCount, &g.Status, &g.OpensAt, &g.ClosesAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("game not found: %s", gameID))
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}

	return &g, nil
}

// ListAnswers returns a game's full answer list ordered by rank.
func (s *Service) ListAnswers(ctx context.Context, gameID string) ([]domain.RankedAnswer, error) {
	const stmt = `
SELECT answer, rank, is_ai_judged
FROM game_answers
WHERE game_id = $1
ORDER BY rank;`

	rows, err := s.db.Query(ctx, stmt, gameID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	answers, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.RankedAnswer, error) {
		var a domain.RankedAnswer
		if err := r.Scan(&a.Answer, &a.Rank, &a.IsAIJudged); err != nil {
			return domain.RankedAnswer{}, err
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	return answers, nil
}

// FindAnswer looks up one answer by normalized text. A nil result with nil
// error means no match, which is the fast path's everyday outcome, not a
// failure.
func (s *Service) FindAnswer(ctx context.Context, gameID, normalized string) (*domain.RankedAnswer, error) {
	const stmt = `
SELECT answer, rank, is_ai_judged
FROM game_answers
WHERE game_id = $1 AND answer = $2;`

	var a domain.RankedAnswer
	err := s.db.QueryRow(ctx, stmt, gameID, normalized).Scan(&a.Answer, &a.Rank, &a.IsAIJudged)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find answer: %w", err)
	}

	return &a, nil
}

// CacheAnswer inserts one judged answer into a game's list. A concurrent
// duplicate insert surfaces as CodeAlreadyExists so the caller can ignore
// losing the race.
func (s *Service) CacheAnswer(ctx context.Context, gameID string, a domain.RankedAnswer) error {
	const stmt = `
INSERT INTO game_answers (game_id, answer, rank, is_ai_judged)
VALUES ($1, $2, $3, $4);`

	_, err := s.db.Exec(ctx, stmt, gameID, answer.Normalize(a.Answer), a.Rank, a.IsAIJudged)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}

	return nil
}

// SeedAnswers replaces a game's answer list with a bulk-generated set. The
// set is validated first and stored all-or-nothing; the game moves to ready
// on success.
func (s *Service) SeedAnswers(ctx context.Context, gameID string, seeds []answer.Seed) (err error) {
	if err := answer.ValidateSet(seeds); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		delStmt    = `DELETE FROM game_answers WHERE game_id = $1;`
		insStmt    = `INSERT INTO game_answers (game_id, answer, rank, is_ai_judged) VALUES ($1, $2, $3, FALSE);`
		statusStmt = `UPDATE games SET status = $2 WHERE game_id = $1;`
	)

	if _, err = tx.Exec(ctx, delStmt, gameID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}

	for _, seed := range seeds { // TODO: batch insert via pgx.Batch
		if _, err = tx.Exec(ctx, insStmt, gameID, answer.Normalize(seed.Answer), seed.Rank); err != nil {
			return fmt.Errorf("insert answer rank %d: %w", seed.Rank, err)
		}
	}

	if _, err = tx.Exec(ctx, statusStmt, gameID, domain.StatusReady); err != nil {
		return fmt.Errorf("mark game ready: %w", err)
	}

	return tx.Commit(ctx)
}
