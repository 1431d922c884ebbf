package domain

import (
	"time"
)

type GameStatus string

const (
	StatusGenerating GameStatus = "generating"
	StatusReady      GameStatus = "ready"
	StatusActive     GameStatus = "active"
	StatusCompleted  GameStatus = "completed"
)

// Game is one question instance with its crowd-ranked answer list.
type Game struct {
	GameID      string
	Question    string
	AnswerCount int
	Status      GameStatus
	OpensAt     time.Time
	ClosesAt    time.Time
}

// Playable reports whether the game accepts submissions at the given time.
func (g Game) Playable(now time.Time) bool {
	return g.Status == StatusActive && !now.Before(g.OpensAt) && now.Before(g.ClosesAt)
}

// RankedAnswer is one entry in a game's answer list. Answer text is stored
// normalized; rank 1 is the most popular answer.
type RankedAnswer struct {
	Answer     string `json:"answer"`
	Rank       int    `json:"rank"`
	IsAIJudged bool   `json:"is_ai_judged"`
}

type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// RoundSubmission is one player's resolved attempt at one round. Only hits
// are persisted; a miss form (OnList false, Rank 0) is returned but never
// stored, so the player keeps retrying the same round.
type RoundSubmission struct {
	SessionID       string         `json:"session_id"`
	GameID          string         `json:"game_id"`
	Round           int            `json:"round"`
	SubmittedAnswer string         `json:"submitted_answer"`
	OnList          bool           `json:"on_list"`
	Rank            int            `json:"rank,omitempty"`
	RoundScore      int            `json:"round_score"`
	TotalScore      int            `json:"total_score"`
	Direction       Direction      `json:"direction"`
	AllAnswers      []RankedAnswer `json:"all_answers,omitempty"`
	CreateTime      time.Time      `json:"-"`
}

// Session identifies one player's run through a game.
type Session struct {
	SessionID  string
	GameID     string
	PlayerName string
	CreateTime time.Time
}

// Leaderboard lists players and their total scores within one game, sorted
// by score in descending order.
type Leaderboard struct {
	GameID  string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	SessionID string
	Score     float64
}
