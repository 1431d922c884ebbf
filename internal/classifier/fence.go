package classifier

import (
	"encoding/json"
	"strings"
)

// stripCodeFences removes a surrounding markdown code fence, with or
// without a json language tag. Models wrap JSON this way often enough that
// rejecting it would throw away good verdicts.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func unmarshalFenced(raw string, v any) error {
	return json.Unmarshal([]byte(stripCodeFences(raw)), v)
}
