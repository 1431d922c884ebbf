package judge_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenyouth/hilo/internal/answer"
	"github.com/havenyouth/hilo/internal/classifier"
	"github.com/havenyouth/hilo/internal/domain"
	"github.com/havenyouth/hilo/internal/errors"
	"github.com/havenyouth/hilo/internal/event"
	"github.com/havenyouth/hilo/internal/judge"
	"github.com/havenyouth/hilo/internal/score"
	"github.com/havenyouth/hilo/internal/scoring"
)

var testNow = time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

// fakeStore is an in-memory answer list keyed by normalized text.
type fakeStore struct {
	game     domain.Game
	answers  map[string]domain.RankedAnswer
	cacheErr error
	cached   []domain.RankedAnswer
}

func newFakeStore(seeds ...domain.RankedAnswer) *fakeStore {
	s := &fakeStore{
		game: domain.Game{
			GameID:      "g1",
			Question:    "name something people do when they pray",
			AnswerCount: 400,
			Status:      domain.StatusActive,
			OpensAt:     testNow.Add(-time.Hour),
			ClosesAt:    testNow.Add(time.Hour),
		},
		answers: make(map[string]domain.RankedAnswer),
	}
	for _, a := range seeds {
		s.answers[answer.Normalize(a.Answer)] = a
	}
	return s
}

func (s *fakeStore) GetGame(_ context.Context, gameID string) (*domain.Game, error) {
	if gameID != s.game.GameID {
		return nil, errors.New(errors.CodeNotFound)
	}
	g := s.game
	return &g, nil
}

func (s *fakeStore) ListAnswers(_ context.Context, _ string) ([]domain.RankedAnswer, error) {
	out := make([]domain.RankedAnswer, 0, len(s.answers))
	for _, a := range s.answers {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) FindAnswer(_ context.Context, _ string, normalized string) (*domain.RankedAnswer, error) {
	if a, ok := s.answers[normalized]; ok {
		return &a, nil
	}
	return nil, nil
}

func (s *fakeStore) CacheAnswer(_ context.Context, _ string, a domain.RankedAnswer) error {
	if s.cacheErr != nil {
		return s.cacheErr
	}
	s.answers[answer.Normalize(a.Answer)] = a
	s.cached = append(s.cached, a)
	return nil
}

// fakeScorer mirrors the transactional scoring operation: it re-resolves
// the rank from the store and never trusts the caller.
type fakeScorer struct {
	store *fakeStore
	calls []score.SubmitRoundRequest
	err   error
	total int
}

func (s *fakeScorer) SubmitRound(_ context.Context, req score.SubmitRoundRequest) (*domain.RoundSubmission, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}

	sub := &domain.RoundSubmission{
		SessionID:       req.SessionID,
		GameID:          req.GameID,
		Round:           req.Round,
		SubmittedAnswer: answer.Normalize(req.Answer),
		TotalScore:      s.total,
		Direction:       scoring.DirectionFor(req.Round),
	}

	a, ok := s.store.answers[sub.SubmittedAnswer]
	if !ok {
		return sub, nil
	}

	scored := a.Rank
	if scored > scoring.RankMax {
		scored = scoring.RankMax
	}
	rs, err := scoring.RoundScore(req.Round, scored)
	if err != nil {
		return nil, err
	}

	sub.OnList = true
	sub.Rank = a.Rank
	sub.RoundScore = rs
	sub.TotalScore = s.total + rs
	return sub, nil
}

// stubClassifier returns a fixed verdict, or an error.
type stubClassifier struct {
	resp   classifier.Response
	err    error
	called bool
	gotReq classifier.Request
}

func (c *stubClassifier) Judge(_ context.Context, req classifier.Request) (classifier.Response, error) {
	c.called = true
	c.gotReq = req
	if c.err != nil {
		return classifier.Response{}, c.err
	}
	return c.resp, nil
}

func makeService(store *fakeStore, scorer *fakeScorer, cl classifier.Judge) *judge.Service {
	return judge.NewService(judge.Config{
		Games:      store,
		Scorer:     scorer,
		Classifier: cl,
		EventBus:   event.NewBus(),
		NowFunc:    func() time.Time { return testNow },
	})
}

func judgeReq(round int, raw string) judge.JudgeRequest {
	return judge.JudgeRequest{
		SessionID: "s1",
		GameID:    "g1",
		Round:     round,
		RawAnswer: raw,
	}
}

func TestJudge_FastPath(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(1, "  Prays  "))
	require.NoError(t, err)

	assert.True(t, sub.OnList)
	assert.Equal(t, 5, sub.Rank)
	assert.Equal(t, 196, sub.RoundScore)
	assert.False(t, cl.called, "fast path must not call the classifier")
	assert.Empty(t, store.cached)
	require.Len(t, scorer.calls, 1)
	assert.Equal(t, "prays", scorer.calls[0].Answer)
}

func TestJudge_ClassifierUnreachableDegradesToMiss(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{err: stderrors.New("connection refused")}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(1, "builds an altar"))
	require.NoError(t, err, "classifier failure must never surface to the player")

	assert.False(t, sub.OnList)
	assert.Zero(t, sub.Rank)
	assert.Zero(t, sub.RoundScore)
	assert.True(t, cl.called)
	assert.Empty(t, store.cached)
	require.Len(t, scorer.calls, 1, "the scoring operation is still called in miss form")
}

func TestJudge_RejectIsMissWithoutCache(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{Valid: false, Reason: "inappropriate"}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(2, "something crude"))
	require.NoError(t, err)

	assert.False(t, sub.OnList)
	assert.Empty(t, store.cached)
	require.Len(t, scorer.calls, 1)
}

func TestJudge_EquivalentAdoptsExistingRank(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{
		Valid:     true,
		Rank:      intPtr(5),
		MatchedTo: "Prays",
		Reason:    "word form",
	}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(1, "praying"))
	require.NoError(t, err)

	assert.True(t, sub.OnList)
	assert.Equal(t, 5, sub.Rank)
	assert.Empty(t, store.cached, "equivalent matches never create cache entries")
	require.Len(t, scorer.calls, 1)
	assert.Equal(t, "prays", scorer.calls[0].Answer, "the matched entry's text is what gets scored")
}

func TestJudge_HallucinatedMatchIsMiss(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{
		Valid:     true,
		Rank:      intPtr(3),
		MatchedTo: "levitates",
	}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(1, "floats"))
	require.NoError(t, err)

	assert.False(t, sub.OnList)
	assert.Empty(t, store.cached)
}

func TestJudge_NewAnswerClampsRankAndCaches(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{
		Valid:     true,
		Rank:      intPtr(999),
		MatchedTo: classifier.MatchedToNew,
	}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(3, "journals their prayers"))
	require.NoError(t, err)

	require.Len(t, store.cached, 1)
	assert.Equal(t, domain.RankedAnswer{
		Answer:     "journals their prayers",
		Rank:       judge.DefaultMaxRank,
		IsAIJudged: true,
	}, store.cached[0], "the raw classifier rank 999 must be clamped to 500")

	assert.True(t, sub.OnList)
	assert.Equal(t, judge.DefaultMaxRank, sub.Rank)
	assert.True(t, cl.called)
	assert.Equal(t, "name something people do when they pray", cl.gotReq.Question)
}

func TestJudge_NewAnswerWithoutRankIsMiss(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{
		Valid:     true,
		MatchedTo: classifier.MatchedToNew,
	}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(1, "hums quietly"))
	require.NoError(t, err)

	assert.False(t, sub.OnList)
	assert.Empty(t, store.cached)
}

func TestJudge_LostCacheRaceStillScores(t *testing.T) {
	// Another session judged the same answer first: its row is already
	// stored, and our insert reports a duplicate.
	store := newFakeStore(
		domain.RankedAnswer{Answer: "prays", Rank: 5},
		domain.RankedAnswer{Answer: "journals", Rank: 450, IsAIJudged: true},
	)
	store.cacheErr = errors.New(errors.CodeAlreadyExists)
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{
		Valid:     true,
		Rank:      intPtr(460),
		MatchedTo: classifier.MatchedToNew,
	}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(4, "Journals"))
	require.NoError(t, err, "losing the cache-write race must not fail the round")

	assert.True(t, sub.OnList)
	assert.Equal(t, 450, sub.Rank, "the winner's rank is authoritative")
}

func TestJudge_CacheWriteFailureIsNotFatal(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	store.cacheErr = stderrors.New("storage down")
	scorer := &fakeScorer{store: store}
	cl := &stubClassifier{resp: classifier.Response{
		Valid:     true,
		Rank:      intPtr(410),
		MatchedTo: classifier.MatchedToNew,
	}}
	s := makeService(store, scorer, cl)

	sub, err := s.Judge(context.Background(), judgeReq(1, "journals"))
	require.NoError(t, err)
	assert.False(t, sub.OnList, "an uncached unseen answer resolves to a miss when re-resolved")
}

func TestJudge_ScoringFailurePropagates(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	scorer := &fakeScorer{store: store, err: errors.New(errors.CodeUnavailable)}
	s := makeService(store, scorer, &stubClassifier{})

	_, err := s.Judge(context.Background(), judgeReq(1, "prays"))
	require.Error(t, err, "scoring operation failure is the one player-visible error")
	assert.True(t, errors.Is(err, errors.CodeUnavailable))
}

func TestJudge_GameNotPlayable(t *testing.T) {
	store := newFakeStore(domain.RankedAnswer{Answer: "prays", Rank: 5})
	store.game.ClosesAt = testNow.Add(-time.Minute)
	scorer := &fakeScorer{store: store}
	s := makeService(store, scorer, &stubClassifier{})

	_, err := s.Judge(context.Background(), judgeReq(1, "prays"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	assert.Empty(t, scorer.calls)
}

func TestJudge_InvalidRound(t *testing.T) {
	store := newFakeStore()
	scorer := &fakeScorer{store: store}
	s := makeService(store, scorer, &stubClassifier{})

	for _, round := range []int{0, 5, -1} {
		_, err := s.Judge(context.Background(), judgeReq(round, "prays"))
		require.Error(t, err, "round %d", round)
		assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
	}
}

func intPtr(v int) *int { return &v }
