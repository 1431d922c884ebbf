package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenyouth/hilo/internal/classifier"
	"github.com/havenyouth/hilo/internal/domain"
)

func TestParseResponse(t *testing.T) {
	tests := map[string]struct {
		raw     string
		want    classifier.Response
		wantErr bool
	}{
		"plain JSON": {
			raw: `{"valid": true, "rank": 412, "matched_to": "new", "reason": "plausible but unseen"}`,
			want: classifier.Response{
				Valid:     true,
				Rank:      intPtr(412),
				MatchedTo: "new",
				Reason:    "plausible but unseen",
			},
		},

		"json code fence": {
			raw: "```json\n{\"valid\": true, \"rank\": 5, \"matched_to\": \"prays\", \"reason\": \"synonym\"}\n```",
			want: classifier.Response{
				Valid:     true,
				Rank:      intPtr(5),
				MatchedTo: "prays",
				Reason:    "synonym",
			},
		},

		"bare code fence": {
			raw: "```\n{\"valid\": false, \"rank\": null, \"matched_to\": null, \"reason\": \"inappropriate\"}\n```",
			want: classifier.Response{
				Valid:  false,
				Reason: "inappropriate",
			},
		},

		"null rank": {
			raw:  `{"valid": false, "rank": null, "matched_to": null, "reason": ""}`,
			want: classifier.Response{Valid: false},
		},

		"prose instead of JSON": {
			raw:     "The answer seems valid to me!",
			wantErr: true,
		},

		"truncated JSON": {
			raw:     `{"valid": true, "rank":`,
			wantErr: true,
		},

		"empty": {
			raw:     "",
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := classifier.ParseResponse(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := classifier.BuildPrompt(classifier.Request{
		Question:        "name something people do when they pray",
		SubmittedAnswer: "kneels down",
		KnownAnswers: []domain.RankedAnswer{
			{Answer: "close their eyes", Rank: 1},
			{Answer: "kneel", Rank: 2},
		},
		AnswerCountTarget: 400,
	})

	assert.Contains(t, p, "name something people do when they pray")
	assert.Contains(t, p, "kneels down")
	assert.Contains(t, p, "1. close their eyes")
	assert.Contains(t, p, "2. kneel")
	assert.Contains(t, p, `"matched_to"`)
}

func intPtr(v int) *int { return &v }
