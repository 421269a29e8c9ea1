package curl

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// MatchTimeoutDefault bounds each match when Options leaves it unset.
const MatchTimeoutDefault = 250 * time.Millisecond

type Options struct {
	// MatchTimeout bounds each regular expression match. Zero selects
	// MatchTimeoutDefault and a negative value disables the limit.
	MatchTimeout time.Duration
}

// Parser extracts request descriptions from curl commands. A Parser holds
// only compiled patterns and is safe for concurrent use.
type Parser struct {
	pat *patternSet
}

func NewParser(opts Options) *Parser {
	timeout := opts.MatchTimeout
	if timeout == 0 {
		timeout = MatchTimeoutDefault
	}
	return &Parser{pat: newPatternSet(timeout)}
}

var errInvalidUTF8 = errors.New("command is not valid UTF-8")

var defaultParser = NewParser(Options{})

func Parse(command string) (*Request, error) {
	return defaultParser.Parse(command)
}

func ParseResult(command string) Result {
	return defaultParser.ParseResult(command)
}

func ParseAll(src string) []Result {
	return defaultParser.ParseAll(src)
}

// Parse never panics: any fault during extraction comes back as a
// *ParseError.
func (p *Parser) Parse(command string) (req *Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			req = nil
			err = &ParseError{Err: fmt.Errorf("%v", r)}
		}
	}()

	req, err = p.parse(command)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return req, nil
}

func (p *Parser) ParseResult(command string) Result {
	return NewResult(p.Parse(command))
}

// ParseAll parses every curl invocation found in src. Text without a
// recognisable start line is parsed as a single command.
func (p *Parser) ParseAll(src string) []Result {
	cmds := SplitCommands(src)
	if len(cmds) == 0 {
		cmds = []string{src}
	}
	out := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, p.ParseResult(cmd))
	}
	return out
}

func (p *Parser) parse(command string) (*Request, error) {
	if !utf8.ValidString(command) {
		return nil, errInvalidUTF8
	}
	cmd := Normalize(command)
	warn := newWarningCollector()

	target, err := p.extractURL(cmd, warn)
	if err != nil {
		return nil, err
	}

	method, err := p.extractMethod(cmd)
	if err != nil {
		return nil, err
	}

	headers, err := p.extractHeaders(cmd, warn)
	if err != nil {
		return nil, err
	}

	req := &Request{
		FullURL: target,
		Method:  method,
		Headers: headers,
	}
	req.URL, req.QueryParams = SplitQuery(target)

	payload, ok, err := p.extractBody(cmd)
	if err != nil {
		return nil, err
	}
	if ok {
		body, isJSON := decodeBody(payload)
		if !isJSON {
			warn.Add(warnBodyNotJSON)
		}
		req.Body = body
		req.HasBody = true
	}

	req.Warnings = warn.List()
	return req, nil
}

func (p *Parser) extractURL(cmd string, warn *WarningCollector) (string, error) {
	m, err := p.pat.url.FindStringMatch(cmd)
	if err != nil {
		return "", fmt.Errorf("url: %w", err)
	}
	if m == nil {
		warn.Add(warnNoCurl)
	}

	target := ""
	for _, n := range []int{1, 2, 3} {
		if v := group(m, n); v != "" {
			target = v
			break
		}
	}

	if strings.HasPrefix(target, "-") {
		target = ""
	}
	if target == "" {
		loose, err := p.pat.urlLoose.FindStringMatch(cmd)
		if err != nil {
			return "", fmt.Errorf("url: %w", err)
		}
		if loose != nil {
			target = group(loose, 1)
		}
	}

	if target == "" {
		warn.Add(warnNoURL)
	}
	return target, nil
}

func (p *Parser) extractMethod(cmd string) (string, error) {
	for _, re := range []*regexp2.Regexp{p.pat.method, p.pat.request} {
		m, err := re.FindStringMatch(cmd)
		if err != nil {
			return "", fmt.Errorf("method: %w", err)
		}
		if m != nil {
			return strings.ToUpper(group(m, 2)), nil
		}
	}
	return methodDefault, nil
}

// extractHeaders scans -H matches first, then --header matches, so the
// long form wins when both set the same name.
func (p *Parser) extractHeaders(cmd string, warn *WarningCollector) (map[string]string, error) {
	headers := make(map[string]string)
	for _, re := range p.pat.headers {
		m, err := re.FindStringMatch(cmd)
		for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
			name := strings.TrimSpace(group(m, 2))
			value := strings.TrimSpace(group(m, 3))
			if _, dup := headers[name]; dup {
				warn.Header(warnHeaderDup, name)
			}
			if group(m, 1) != group(m, 4) {
				warn.Header(warnHeaderTruncate, name)
			}
			headers[name] = value
		}
		if err != nil {
			return nil, fmt.Errorf("headers: %w", err)
		}
	}
	return headers, nil
}

func (p *Parser) extractBody(cmd string) (string, bool, error) {
	m, err := p.pat.body.FindStringMatch(cmd)
	if err != nil {
		return "", false, fmt.Errorf("body: %w", err)
	}
	if m == nil {
		return "", false, nil
	}
	if hasGroup(m, 1) {
		return group(m, 1), true, nil
	}
	return unescapeDouble(group(m, 2)), true, nil
}
