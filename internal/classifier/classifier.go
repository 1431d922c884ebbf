// Package classifier defines the language-model judging capability used by
// the slow path of answer resolution. Implementations live in subpackages;
// the coordinator only ever sees the Judge interface, so tests swap in a
// deterministic stub.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/havenyouth/hilo/internal/domain"
)

// MatchedToNew marks a response proposing a previously-unseen valid answer
// rather than an equivalent of an existing one.
const MatchedToNew = "new"

// Request is the judging request for one submitted answer.
type Request struct {
	Question          string
	SubmittedAnswer   string
	KnownAnswers      []domain.RankedAnswer
	AnswerCountTarget int
}

// Response is the judging verdict. Valid=false rejects the answer. A valid
// answer either matches an existing entry (MatchedTo names it, Rank is its
// rank) or is new (MatchedTo == MatchedToNew, Rank is the proposed rank).
type Response struct {
	Valid     bool   `json:"valid"`
	Rank      *int   `json:"rank"`
	MatchedTo string `json:"matched_to"`
	Reason    string `json:"reason"`
}

// Judge resolves one submitted answer against a game's known list.
type Judge interface {
	Judge(ctx context.Context, req Request) (Response, error)
}

// BuildPrompt renders the judging request as a model prompt. The model is
// asked for the strict JSON shape that ParseResponse decodes.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You judge answers for a church youth group trivia game.\n")
	fmt.Fprintf(&b, "The question: %q\n\n", req.Question)
	fmt.Fprintf(&b, "The ranked list of known answers (rank 1 = most popular, target size %d):\n", req.AnswerCountTarget)
	for _, a := range req.KnownAnswers {
		fmt.Fprintf(&b, "%d. %s\n", a.Rank, a.Answer)
	}
	fmt.Fprintf(&b, "\nA player submitted: %q\n\n", req.SubmittedAnswer)

	b.WriteString(`Decide, in this strict order:
1. If the submission is inappropriate for a church youth venue (profanity, slurs, sexual, occult, or violent content), it is invalid.
2. If the submission is a word-form variant or true synonym of a known answer (the same concept under substitution, not merely related), it matches that answer: set "matched_to" to the known answer's exact text and "rank" to that answer's rank.
3. If the submission is a legitimate answer to the question that is not on the list, set "matched_to" to "new" and propose a "rank" reflecting its relative popularity: a common new answer lands just below the list's tail, an obscure one well below.

Reply with ONLY this JSON, no other text:
{"valid": true|false, "rank": <integer or null>, "matched_to": "<known answer text>" | "new" | null, "reason": "<short explanation>"}
`)

	return b.String()
}

// ParseResponse decodes a model reply into a Response. Markdown code fences
// around the JSON are tolerated; anything else that fails to decode is an
// error the caller degrades to a miss.
func ParseResponse(raw string) (Response, error) {
	var r Response
	if err := unmarshalFenced(raw, &r); err != nil {
		return Response{}, fmt.Errorf("classifier: parse response: %w", err)
	}

	return r, nil
}
