// Package gameflow drives the player-facing screen flow of a Hi-Lo game as
// a pure reducer. One session feeds it one event at a time; any async work
// (judging, auth) happens outside and re-enters as a result event. Events
// arriving on the wrong screen are no-ops, never errors.
package gameflow

import (
	"time"

	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/scoring"
)

type Screen string

const (
	ScreenLoading      Screen = "loading"
	ScreenIntro        Screen = "intro"
	ScreenAuth         Screen = "auth"
	ScreenRoundPlay    Screen = "round_play"
	ScreenRoundResult  Screen = "round_result"
	ScreenFinalResults Screen = "final_results"
	ScreenLeaderboard  Screen = "leaderboard"
	ScreenExpired      Screen = "expired"
)

// RoundData is one completed round as the client keeps it for the reveal
// and results screens.
type RoundData struct {
	Round     int
	Answer    string
	Rank      int
	Score     int
	Direction domain.Direction
}

// State is the ephemeral client-side game state. It is owned by exactly one
// player session and rebuilt from persisted submissions on resume.
type State struct {
	Screen        Screen
	Round         int
	Rounds        []RoundData
	TotalScore    int
	SessionID     string
	Authenticated bool
	Submitting    bool
	MissFeedback  string
	Error         string
}

// NewState returns the initial state: loading screen, round 1.
func NewState() State {
	return State{Screen: ScreenLoading, Round: 1}
}

type Event interface {
	event()
}

// GameLoaded carries the loaded game and the caller's clock reading, so the
// reducer never consults a system clock itself.
type GameLoaded struct {
	Game domain.Game
	Now  time.Time
}

type StartGame struct{}

// AuthSuccess establishes identity and advances past the auth screen.
type AuthSuccess struct {
	SessionID string
}

// AuthRestored silently attaches an existing identity without forcing a
// screen change.
type AuthRestored struct {
	SessionID string
}

type SubmitAnswer struct {
	Answer string
}

// AnswerResult carries the resolved submission back into the flow.
type AnswerResult struct {
	Submission domain.RoundSubmission
}

type NextRound struct{}

type ViewLeaderboard struct{}

type BackToResults struct{}

// ResumeSession rehydrates a session from its persisted rounds.
type ResumeSession struct {
	SessionID  string
	Rounds     []RoundData
	TotalScore int
}

// GameExpired forces the expired screen from anywhere, for a game window
// closing mid-session.
type GameExpired struct{}

type SetError struct {
	Message string
}

type ClearError struct{}

func (GameLoaded) event()      {}
func (StartGame) event()       {}
func (AuthSuccess) event()     {}
func (AuthRestored) event()    {}
func (SubmitAnswer) event()    {}
func (AnswerResult) event()    {}
func (NextRound) event()       {}
func (ViewLeaderboard) event() {}
func (BackToResults) event()   {}
func (ResumeSession) event()   {}
func (GameExpired) event()     {}
func (SetError) event()        {}
func (ClearError) event()      {}

// Reduce applies one event to the state and returns the next state. Every
// (state, event) pair not covered below returns the state unchanged.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case GameLoaded:
		if s.Screen != ScreenLoading {
			return s
		}
		if ev.Game.Playable(ev.Now) {
			s.Screen = ScreenIntro
		} else {
			s.Screen = ScreenExpired
		}
		return s

	case StartGame:
		if s.Screen != ScreenIntro {
			return s
		}
		if s.Authenticated {
			s.Screen = ScreenRoundPlay
		} else {
			s.Screen = ScreenAuth
		}
		return s

	case AuthSuccess:
		s.SessionID = ev.SessionID
		s.Authenticated = true
		if s.Screen == ScreenAuth {
			s.Screen = ScreenRoundPlay
		}
		return s

	case AuthRestored:
		s.SessionID = ev.SessionID
		s.Authenticated = true
		return s

	case SubmitAnswer:
		if s.Screen != ScreenRoundPlay {
			return s
		}
		s.Submitting = true
		s.MissFeedback = ""
		s.Error = ""
		return s

	case AnswerResult:
		if s.Screen != ScreenRoundPlay {
			return s
		}
		s.Submitting = false
		if !ev.Submission.OnList {
			s.MissFeedback = ev.Submission.SubmittedAnswer
			return s
		}
		rounds := make([]RoundData, len(s.Rounds), len(s.Rounds)+1)
		copy(rounds, s.Rounds)
		s.Rounds = append(rounds, RoundData{
			Round:     ev.Submission.Round,
			Answer:    ev.Submission.SubmittedAnswer,
			Rank:      ev.Submission.Rank,
			Score:     ev.Submission.RoundScore,
			Direction: ev.Submission.Direction,
		})
		s.TotalScore = ev.Submission.TotalScore
		s.MissFeedback = ""
		s.Screen = ScreenRoundResult
		return s

	case NextRound:
		if s.Screen != ScreenRoundResult {
			return s
		}
		if s.Round >= scoring.Rounds {
			s.Screen = ScreenFinalResults
		} else {
			s.Round++
			s.Screen = ScreenRoundPlay
		}
		return s

	case ViewLeaderboard:
		if s.Screen != ScreenFinalResults && s.Screen != ScreenExpired {
			return s
		}
		s.Screen = ScreenLeaderboard
		return s

	case BackToResults:
		if s.Screen != ScreenLeaderboard {
			return s
		}
		s.Screen = ScreenFinalResults
		return s

	case ResumeSession:
		s.SessionID = ev.SessionID
		s.Authenticated = true
		s.Rounds = ev.Rounds
		s.TotalScore = ev.TotalScore
		if len(ev.Rounds) >= scoring.Rounds {
			s.Round = scoring.Rounds
			s.Screen = ScreenFinalResults
		} else {
			s.Round = len(ev.Rounds) + 1
			s.Screen = ScreenRoundPlay
		}
		return s

	case GameExpired:
		s.Screen = ScreenExpired
		s.Submitting = false
		return s

	case SetError:
		s.Error = ev.Message
		s.Submitting = false
		return s

	case ClearError:
		s.Error = ""
		return s
	}

	return s
}
