package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

// Service owns player sessions. Identity linking happens upstream; a
// session here is just the (player, game) handle the scoring operation and
// the leaderboard key on.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

type CreateSessionRequest struct {
	GameID     string
	PlayerName string
}

// CreateSession creates a new session for one player's run through a game.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	ss := &domain.Session{
		SessionID:  id.String(),
		GameID:     req.GameID,
		PlayerName: req.PlayerName,
		CreateTime: time.Now(),
	}

	const stmt = `
INSERT INTO sessions (session_id, game_id, player_name, create_time)
VALUES ($1, $2, $3, $4);`

	if _, err := s.db.Exec(ctx, stmt, ss.SessionID, ss.GameID, ss.PlayerName, ss.CreateTime); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return ss, nil
}

// GetSession loads an existing session, for silently re-attaching a
// returning player.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	const stmt = `
SELECT session_id, game_id, player_name, create_time
FROM sessions
WHERE session_id = $1;`

	var ss domain.Session
	err := s.db.QueryRow(ctx, stmt, sessionID).
		Scan(&ss.SessionID, &ss.GameID, &ss.PlayerName, &ss.CreateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session not found: %s", sessionID))
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &ss, nil
}
