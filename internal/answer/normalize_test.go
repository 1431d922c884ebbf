package answer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/havenyouth/hilo/internal/answer"
)

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"already normalized":    {in: "prays a lot", want: "prays a lot"},
		"leading and trailing":  {in: "  prays  ", want: "prays"},
		"uppercase":             {in: "PRAYS", want: "prays"},
		"mixed case and runs":   {in: "  Prays A   Lot ", want: "prays a lot"},
		"tabs and newlines":     {in: "reads\tthe\nbible", want: "reads the bible"},
		"empty":                 {in: "", want: ""},
		"whitespace only":       {in: "   \t\n ", want: ""},
		"internal run collapse": {in: "sing    worship     songs", want: "sing worship songs"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, answer.Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"  Prays A Lot", "FASTS", "go to\tchurch  ", ""}

	for _, in := range inputs {
		once := answer.Normalize(in)
		assert.Equal(t, once, answer.Normalize(once), "normalize should be idempotent for %q", in)
	}
}

func TestNormalize_CaseWhitespaceEquivalence(t *testing.T) {
	assert.Equal(t, answer.Normalize("prays a lot"), answer.Normalize("  Prays A Lot"))
	assert.Equal(t, answer.Normalize("READS SCRIPTURE"), answer.Normalize("reads   scripture"))
}
