package curl

import (
	"time"

	"github.com/dlclark/regexp2"
)

// Patterns use ECMAScript semantics so \w, \s and the quote backreferences
// behave the way browser "copy as cURL" output expects.
const (
	exprURL      = `curl\s+(?:'([^']+)'|"([^"]+)"|([^\s]+))`
	exprURLLoose = `(?:--url\s+|'|")?(https?:\/\/[^\s'"]+)`
	exprMethod   = `-X\s+(['"]?)(\w+)\1`
	exprRequest  = `--request\s+(['"]?)(\w+)\1`
	exprHeader   = `-H\s+(['"])([^:]+):\s*([^'"]+)(['"])`
	exprHeader2  = `--header\s+(['"])([^:]+):\s*([^'"]+)(['"])`
	exprBody     = `(?:-d|--data|--data-raw|--data-binary)\s+(?:'([^']*)'|"((?:[^"\\]|\\.)*)")`
)

type patternSet struct {
	url      *regexp2.Regexp
	urlLoose *regexp2.Regexp
	method   *regexp2.Regexp
	request  *regexp2.Regexp
	headers  []*regexp2.Regexp
	body     *regexp2.Regexp
}

func newPatternSet(timeout time.Duration) *patternSet {
	const (
		base = regexp2.ECMAScript
		fold = regexp2.ECMAScript | regexp2.IgnoreCase
	)
	ps := &patternSet{
		url:      compile(exprURL, base, timeout),
		urlLoose: compile(exprURLLoose, fold, timeout),
		method:   compile(exprMethod, fold, timeout),
		request:  compile(exprRequest, fold, timeout),
		headers: []*regexp2.Regexp{
			compile(exprHeader, base, timeout),
			compile(exprHeader2, base, timeout),
		},
		body: compile(exprBody, base|regexp2.Singleline, timeout),
	}
	return ps
}

func compile(expr string, opts regexp2.RegexOptions, timeout time.Duration) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, opts)
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return re
}

// group returns the text of capture n, or "" when it did not participate.
func group(m *regexp2.Match, n int) string {
	if m == nil {
		return ""
	}
	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

func hasGroup(m *regexp2.Match, n int) bool {
	if m == nil {
		return false
	}
	g := m.GroupByNumber(n)
	return g != nil && len(g.Captures) > 0
}
