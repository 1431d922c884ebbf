package domain

const (
	EventNameRoundScored        = "round.scored"
	EventNameAnswerCached       = "answer.cached"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventRoundScored fires after the transactional scoring operation persists
// a hit for a round.
type EventRoundScored struct {
	Submission RoundSubmission
}

func (EventRoundScored) Name() string { return EventNameRoundScored }

// EventAnswerCached fires when the slow path writes a newly judged answer
// into a game's list.
type EventAnswerCached struct {
	GameID string
	Answer RankedAnswer
}

func (EventAnswerCached) Name() string { return EventNameAnswerCached }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
