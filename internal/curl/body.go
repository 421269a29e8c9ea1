package curl

import (
	"encoding/json"
	"strings"
)

// decodeBody returns the decoded JSON value of payload, or payload itself
// when it is not valid JSON.
func decodeBody(payload string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return payload, false
	}
	return v, true
}

// unescapeDouble resolves the backslash escapes a shell honours inside
// double quotes. Other backslashes are kept literally.
func unescapeDouble(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '$', '`':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
