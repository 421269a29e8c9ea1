package curl

import (
	"bytes"
	"encoding/json"

	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

// Request is the HTTP request description recovered from a curl command.
type Request struct {
	URL         string            `json:"url"`
	FullURL     string            `json:"fullUrl"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	// Body is the decoded JSON value of the payload, or the payload text
	// when it is not JSON. Double-quoted payloads have the shell escapes
	// \", \\, \$ and \` resolved first, so raw text may differ from the
	// command as written.
	Body        any               `json:"body"`
	HasBody     bool              `json:"-"`
	QueryParams string            `json:"queryParams"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// ParseError is returned when extraction hits an internal fault.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e == nil || e.Err == nil {
		return errorPrefix + "unknown error"
	}
	return errorPrefix + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ParseError) Code() errdef.Code {
	return errdef.CodeParse
}

// Result is the success-or-failure envelope handed to callers that cannot
// branch on a Go error, such as the HTTP API.
type Result struct {
	Success bool
	Request *Request
	Error   string
}

func NewResult(req *Request, err error) Result {
	if err != nil {
		return Result{Error: err.Error()}
	}
	if req == nil {
		return Result{Error: (&ParseError{}).Error()}
	}
	return Result{Success: true, Request: req}
}

type successJSON struct {
	Success bool `json:"success"`
	*Request
}

type failureJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON leaves <, > and & unescaped so copied URLs read as written.
// Encoders that escape HTML still escape the output on their side.
func (r Result) MarshalJSON() ([]byte, error) {
	var v any = successJSON{Success: true, Request: r.Request}
	if !r.Success || r.Request == nil {
		v = failureJSON{Error: r.Error}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var head failureJSON
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if !head.Success {
		*r = Result{Error: head.Error}
		return nil
	}
	req := &Request{}
	if err := json.Unmarshal(data, req); err != nil {
		return err
	}
	req.HasBody = req.Body != nil
	*r = Result{Success: true, Request: req}
	return nil
}
