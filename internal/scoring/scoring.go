package scoring

import (
	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
)

const (
	// Rounds is the number of rounds in a game.
	Rounds = 4

	// RankMax is the largest rank the scoring formulas accept.
	RankMax = 200

	// RankMiss marks a submission that resolved to no ranked answer.
	RankMiss = 0
)

// DirectionFor returns the scoring direction of a round: rounds 1-2 reward
// popular answers, rounds 3-4 reward unpopular ones.
func DirectionFor(round int) domain.Direction {
	if round <= 2 {
		return domain.DirectionHigh
	}
	return domain.DirectionLow
}

// RoundScore computes the score for one resolved round. RankMiss always
// scores zero. Out-of-range inputs are caller bugs and fail with
// CodeInvalidArgument; no clamping happens here.
//
// Formulas: round 1 -> (201-rank)*1, round 2 -> (201-rank)*2,
// round 3 -> rank*3, round 4 -> rank*4.
func RoundScore(round, rank int) (int, error) {
	if round < 1 || round > Rounds {
		return 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("round %d outside [1, %d]", round, Rounds))
	}

	if rank == RankMiss {
		return 0, nil
	}

	if rank < 1 || rank > RankMax {
		return 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("rank %d outside [1, %d]", rank, RankMax))
	}

	switch round {
	case 1:
		return (RankMax + 1 - rank) * 1, nil
	case 2:
		return (RankMax + 1 - rank) * 2, nil
	case 3:
		return rank * 3, nil
	default:
		return rank * 4, nil
	}
}

// TotalScore sums the round scores of the given submissions.
func TotalScore(rounds []domain.RoundSubmission) int {
	total := 0
	for _, r := range rounds {
		total += r.RoundScore
	}
	return total
}
