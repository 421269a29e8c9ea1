package curl

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

func mustParse(t *testing.T, cmd string) *Request {
	t.Helper()
	req, err := Parse(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil {
		t.Fatalf("expected request, got nil")
	}
	return req
}

func TestParseCopiedCommand(t *testing.T) {
	payload := `{"page":1,"filters":{"active":true}}`
	cmd := heredoc.Doc(`
		curl 'https://api.example.com/jobs?limit=20' \
		  -H 'Content-Type: application/json' \
		  -H 'Authorization: Bearer token123' \
		  -X POST \
		  -d '` + payload + `'
	`)
	req := mustParse(t, cmd)

	if req.FullURL != "https://api.example.com/jobs?limit=20" {
		t.Fatalf("unexpected full url %q", req.FullURL)
	}
	if req.URL != "https://api.example.com/jobs" {
		t.Fatalf("unexpected url %q", req.URL)
	}
	if req.QueryParams != "limit=20" {
		t.Fatalf("unexpected query params %q", req.QueryParams)
	}
	if req.Method != "POST" {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	want := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer token123",
	}
	if !reflect.DeepEqual(req.Headers, want) {
		t.Fatalf("unexpected headers %#v", req.Headers)
	}

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !req.HasBody || !reflect.DeepEqual(req.Body, decoded) {
		t.Fatalf("expected decoded body %#v, got %#v", decoded, req.Body)
	}
	if len(req.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", req.Warnings)
	}
}

func TestParseDefaultsToGET(t *testing.T) {
	req := mustParse(t, "curl https://example.com")
	if req.Method != "GET" {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.URL != "https://example.com" || req.FullURL != "https://example.com" {
		t.Fatalf("unexpected url %q / %q", req.URL, req.FullURL)
	}
	if req.QueryParams != "" {
		t.Fatalf("expected empty query params, got %q", req.QueryParams)
	}
	if req.HasBody || req.Body != nil {
		t.Fatalf("expected no body, got %#v", req.Body)
	}
	if req.Headers == nil || len(req.Headers) != 0 {
		t.Fatalf("expected empty header map, got %#v", req.Headers)
	}
}

func TestParseQuerySplit(t *testing.T) {
	req := mustParse(t, "curl 'https://x.test/a?b=1&c=2'")
	if req.URL != "https://x.test/a" {
		t.Fatalf("unexpected base url %q", req.URL)
	}
	if req.QueryParams != "b=1&c=2" {
		t.Fatalf("unexpected query params %q", req.QueryParams)
	}
	if req.FullURL != "https://x.test/a?b=1&c=2" {
		t.Fatalf("unexpected full url %q", req.FullURL)
	}
}

func TestParseMethodVariants(t *testing.T) {
	cases := []struct {
		cmd  string
		want string
	}{
		{"curl https://x.test -X POST", "POST"},
		{"curl https://x.test -X 'delete'", "DELETE"},
		{"curl https://x.test -x put", "PUT"},
		{`curl https://x.test --request "patch"`, "PATCH"},
		{"curl https://x.test --REQUEST options", "OPTIONS"},
	}
	for _, tc := range cases {
		req := mustParse(t, tc.cmd)
		if req.Method != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.cmd, tc.want, req.Method)
		}
	}
}

func TestParseMultipleHeaders(t *testing.T) {
	req := mustParse(t, "curl 'https://x.test' -H 'A: 1' -H 'B: 2'")
	want := map[string]string{"A": "1", "B": "2"}
	if !reflect.DeepEqual(req.Headers, want) {
		t.Fatalf("unexpected headers %#v", req.Headers)
	}
}

func TestParseDuplicateHeaderLastWins(t *testing.T) {
	req := mustParse(t, `curl https://x.test -H 'A: 1' -H "A: 2"`)
	if req.Headers["A"] != "2" {
		t.Fatalf("expected last value to win, got %q", req.Headers["A"])
	}
	if !containsWarning(req.Warnings, "header A set more than once") {
		t.Fatalf("expected duplicate warning, got %v", req.Warnings)
	}
}

func TestParseLongHeaderScannedAfterShort(t *testing.T) {
	req := mustParse(t, "curl https://x.test --header 'A: long' -H 'A: short' --header 'C:  spaced  '")
	if req.Headers["A"] != "long" {
		t.Fatalf("expected --header value to win, got %q", req.Headers["A"])
	}
	if req.Headers["C"] != "spaced" {
		t.Fatalf("expected trimmed value, got %q", req.Headers["C"])
	}
}

func TestParseHeaderValueStopsAtQuote(t *testing.T) {
	req := mustParse(t, `curl https://x.test -H 'X-Quote: a"b'`)
	if req.Headers["X-Quote"] != "a" {
		t.Fatalf("expected truncated value, got %q", req.Headers["X-Quote"])
	}
	if !containsWarning(req.Warnings, "header X-Quote value truncated") {
		t.Fatalf("expected truncation warning, got %v", req.Warnings)
	}
}

func TestParseMalformedBodyFallsBackToString(t *testing.T) {
	req := mustParse(t, "curl https://x.test -d '{not json}'")
	body, ok := req.Body.(string)
	if !ok || body != "{not json}" {
		t.Fatalf("expected raw string body, got %#v", req.Body)
	}
	if !containsWarning(req.Warnings, warnBodyNotJSON) {
		t.Fatalf("expected body warning, got %v", req.Warnings)
	}
}

func TestParseBodyFlags(t *testing.T) {
	cases := []struct {
		cmd  string
		want any
	}{
		{`curl https://x.test --data '{"a":1}'`, map[string]any{"a": float64(1)}},
		{`curl https://x.test --data-raw "{\"a\":[1,2]}"`, map[string]any{"a": []any{float64(1), float64(2)}}},
		{`curl https://x.test --data-binary 'raw=1&b=2'`, "raw=1&b=2"},
		{`curl https://x.test -d '[true,null]'`, []any{true, nil}},
		{`curl https://x.test -d ''`, ""},
	}
	for _, tc := range cases {
		req := mustParse(t, tc.cmd)
		if !req.HasBody {
			t.Fatalf("%q: expected body", tc.cmd)
		}
		if !reflect.DeepEqual(req.Body, tc.want) {
			t.Fatalf("%q: expected %#v, got %#v", tc.cmd, tc.want, req.Body)
		}
	}
}

func TestParseMultilineJSONBody(t *testing.T) {
	req := mustParse(t, "curl https://x.test -d '{\n  \"foo\": \"bar\"\n}'")
	want := map[string]any{"foo": "bar"}
	if !reflect.DeepEqual(req.Body, want) {
		t.Fatalf("unexpected body %#v", req.Body)
	}
}

func TestParseLineContinuationMatchesSingleLine(t *testing.T) {
	multi := heredoc.Doc(`
		curl https://x.test/items?page=2 \
		  --header 'Accept: application/json' \
		  --request PUT \
		  --data '{"name":"desk"}'
	`)
	single := `curl https://x.test/items?page=2 --header 'Accept: application/json' --request PUT --data '{"name":"desk"}'`

	a := mustParse(t, multi)
	b := mustParse(t, single)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical results:\n%#v\n%#v", a, b)
	}

	crlf := mustParse(t, strings.ReplaceAll(multi, "\n", "\r\n"))
	if !reflect.DeepEqual(crlf, b) {
		t.Fatalf("expected CRLF continuation to match:\n%#v\n%#v", crlf, b)
	}
}

func TestParseURLAfterFlags(t *testing.T) {
	req := mustParse(t, "curl -X POST --url 'https://x.test/p?q=1' -H 'A: b'")
	if req.FullURL != "https://x.test/p?q=1" {
		t.Fatalf("unexpected url %q", req.FullURL)
	}
	if req.Method != "POST" {
		t.Fatalf("expected POST, got %s", req.Method)
	}

	req = mustParse(t, `curl -s "HTTPS://x.test/upper"`)
	if req.FullURL != "HTTPS://x.test/upper" {
		t.Fatalf("expected case-insensitive scheme match, got %q", req.FullURL)
	}
}

func TestParseWithoutCurlKeyword(t *testing.T) {
	req := mustParse(t, "wget https://x.test/file")
	if req.FullURL != "https://x.test/file" {
		t.Fatalf("expected fallback url, got %q", req.FullURL)
	}
	if !containsWarning(req.Warnings, warnNoCurl) {
		t.Fatalf("expected missing curl warning, got %v", req.Warnings)
	}
}

func TestParseNeverFailsOnOddInput(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t  ",
		"curl",
		"curl -H",
		`curl 'https://x.test -H "A: 1`,
		`curl "unterminated -d '{"`,
		"hello world",
		strings.Repeat("-H '", 200),
	}
	for _, in := range inputs {
		res := ParseResult(in)
		if !res.Success {
			t.Fatalf("%q: expected success, got error %q", in, res.Error)
		}
	}

	req := mustParse(t, "")
	if req.URL != "" || req.FullURL != "" || req.QueryParams != "" {
		t.Fatalf("expected empty url fields, got %#v", req)
	}
	if !containsWarning(req.Warnings, warnNoURL) {
		t.Fatalf("expected missing url warning, got %v", req.Warnings)
	}

	req = mustParse(t, `curl 'https://x.test -H "A: 1`)
	if req.FullURL != "'https://x.test" {
		t.Fatalf("unexpected url for unbalanced quote %q", req.FullURL)
	}
	if len(req.Headers) != 0 {
		t.Fatalf("expected no headers, got %#v", req.Headers)
	}
}

func TestParseFlagOnlyCommandHasNoURL(t *testing.T) {
	for _, in := range []string{"curl -s", "curl --compressed -H 'A: 1'"} {
		req := mustParse(t, in)
		if req.URL != "" || req.FullURL != "" || req.QueryParams != "" {
			t.Fatalf("%q: expected empty url fields, got url=%q fullUrl=%q query=%q",
				in, req.URL, req.FullURL, req.QueryParams)
		}
		if !containsWarning(req.Warnings, warnNoURL) {
			t.Fatalf("%q: expected missing url warning, got %v", in, req.Warnings)
		}
	}

	req := mustParse(t, "curl --compressed -H 'A: 1'")
	if req.Headers["A"] != "1" {
		t.Fatalf("expected header to survive, got %#v", req.Headers)
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse("curl \xff\xfe https://x.test")
	if !errors.Is(err, errInvalidUTF8) {
		t.Fatalf("expected invalid utf-8 error, got %v", err)
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if res := ParseResult("curl \xff https://x.test"); res.Success {
		t.Fatalf("expected failure result, got %#v", res.Request)
	}
}

func TestParseBoundedOnBacktrackingHeaders(t *testing.T) {
	cmd := "curl https://x.test " + strings.Repeat("-H 'a ", 8000)
	done := make(chan Result, 1)
	go func() {
		done <- ParseResult(cmd)
	}()
	select {
	case res := <-done:
		if !res.Success && !strings.HasPrefix(res.Error, "Failed to parse curl command: ") {
			t.Fatalf("unexpected error %q", res.Error)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("parse did not honour the default match timeout")
	}
}

func TestNewParserTimeoutDefaults(t *testing.T) {
	if got := NewParser(Options{}).pat.url.MatchTimeout; got != MatchTimeoutDefault {
		t.Fatalf("expected default timeout, got %v", got)
	}
	if got := NewParser(Options{MatchTimeout: time.Second}).pat.body.MatchTimeout; got != time.Second {
		t.Fatalf("expected 1s timeout, got %v", got)
	}
	if got := NewParser(Options{MatchTimeout: -1}).pat.url.MatchTimeout; got <= time.Hour {
		t.Fatalf("expected unbounded timeout, got %v", got)
	}
}

func TestParseRecoversFromPanic(t *testing.T) {
	var p *Parser
	req, err := p.Parse("curl https://x.test")
	if req != nil {
		t.Fatalf("expected nil request, got %#v", req)
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if !strings.HasPrefix(err.Error(), "Failed to parse curl command: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if errdef.CodeOf(err) != errdef.CodeParse {
		t.Fatalf("expected parse code, got %q", errdef.CodeOf(err))
	}

	res := p.ParseResult("curl https://x.test")
	if res.Success || res.Error == "" {
		t.Fatalf("expected failure result, got %#v", res)
	}
}

func TestParseConcurrent(t *testing.T) {
	p := NewParser(Options{})
	cmd := `curl https://x.test/c?x=1 -H 'A: 1' -d '{"n":2}'`
	want, err := p.Parse(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Parse(cmd)
			if err != nil {
				errs <- err.Error()
				return
			}
			if !reflect.DeepEqual(got, want) {
				errs <- "result mismatch"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatalf("concurrent parse: %s", msg)
	}
}

func TestParseAllSplitsCommands(t *testing.T) {
	src := heredoc.Doc(`
		$ curl https://a.test -X DELETE

		curl https://b.test \
		  -H 'A: 1'
	`)
	res := ParseAll(src)
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].Request.FullURL != "https://a.test" || res[0].Request.Method != "DELETE" {
		t.Fatalf("unexpected first result %#v", res[0].Request)
	}
	if res[1].Request.Headers["A"] != "1" {
		t.Fatalf("unexpected second result %#v", res[1].Request)
	}

	res = ParseAll("https://c.test")
	if len(res) != 1 || res[0].Request.FullURL != "https://c.test" {
		t.Fatalf("expected whole input parsed once, got %#v", res)
	}
}

func TestResultJSON(t *testing.T) {
	res := ParseResult("curl https://x.test/a?b=1 -H 'A: 1'")
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["success"] != true || got["url"] != "https://x.test/a" ||
		got["fullUrl"] != "https://x.test/a?b=1" || got["queryParams"] != "b=1" ||
		got["method"] != "GET" {
		t.Fatalf("unexpected json %s", data)
	}
	if body, ok := got["body"]; !ok || body != nil {
		t.Fatalf("expected explicit null body, got %s", data)
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !back.Success || back.Request.Headers["A"] != "1" {
		t.Fatalf("unexpected decoded result %#v", back)
	}

	fail := NewResult(nil, &ParseError{Err: errors.New("boom")})
	data, err = json.Marshal(fail)
	if err != nil {
		t.Fatalf("marshal failure: %v", err)
	}
	if string(data) != `{"success":false,"error":"Failed to parse curl command: boom"}` {
		t.Fatalf("unexpected failure json %s", data)
	}
}

func TestResultJSONKeepsURLCharacters(t *testing.T) {
	res := ParseResult("curl 'https://x.test/a?b=1&c=<2>'")
	data, err := res.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"fullUrl":"https://x.test/a?b=1&c=<2>"`) {
		t.Fatalf("expected unescaped url, got %s", data)
	}
	if strings.HasSuffix(string(data), "\n") {
		t.Fatalf("expected no trailing newline, got %q", data)
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]Result{res}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(buf.String(), `\u0026`) {
		t.Fatalf("expected & to survive encoding, got %s", buf.String())
	}
}

func containsWarning(warn []string, sub string) bool {
	for _, w := range warn {
		if strings.Contains(w, sub) {
			return true
		}
	}
	return false
}
