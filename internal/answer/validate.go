package answer

import (
	"strings"

	"github.com/havenyouth/hilo/internal/errors"
)

const (
	// SetMin and SetMax bound the size of a generated answer set.
	SetMin = 350
	SetMax = 400

	// SeedRankMax is the largest rank a generated set may assign.
	SeedRankMax = 400
)

// Seed is one entry of a bulk-generated answer set, before acceptance.
type Seed struct {
	Answer string `json:"answer"`
	Rank   int    `json:"rank"`
}

// ValidateSet checks a bulk-generated ranked answer list before it is
// accepted for storage. Validity is binary: any defect rejects the whole
// set, there is no partial acceptance. This is the only safety net against
// a malformed generation.
func ValidateSet(seeds []Seed) error {
	if len(seeds) < SetMin || len(seeds) > SetMax {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("answer set size %d outside [%d, %d]", len(seeds), SetMin, SetMax))
	}

	seenRanks := make(map[int]struct{}, len(seeds))
	seenText := make(map[string]struct{}, len(seeds))

	for i, s := range seeds {
		if strings.TrimSpace(s.Answer) == "" {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("answer at index %d is empty", i))
		}

		if s.Rank < 1 || s.Rank > SeedRankMax {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("rank %d at index %d outside [1, %d]", s.Rank, i, SeedRankMax))
		}

		if _, ok := seenRanks[s.Rank]; ok {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("duplicate rank %d", s.Rank))
		}
		seenRanks[s.Rank] = struct{}{}

		norm := Normalize(s.Answer)
		if _, ok := seenText[norm]; ok {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("duplicate answer %q", norm))
		}
		seenText[norm] = struct{}{}
	}

	return nil
}
