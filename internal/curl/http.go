package curl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

// HTTPRequest builds a net/http request equivalent to r. Bodies decoded
// from JSON are re-encoded and get a JSON content type unless one was given.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if r == nil {
		return nil, errdef.New(errdef.CodeHTTP, "request is nil")
	}
	target := strings.TrimSpace(r.FullURL)
	if target == "" {
		return nil, errdef.New(errdef.CodeHTTP, "request url is empty")
	}

	body, isJSON, err := r.bodyReader()
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = methodDefault
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "build request")
	}

	for name, value := range r.Headers {
		httpReq.Header.Set(name, value)
	}
	if isJSON && httpReq.Header.Get(headerContentType) == "" {
		httpReq.Header.Set(headerContentType, mimeJSON)
	}
	return httpReq, nil
}

func (r *Request) bodyReader() (io.Reader, bool, error) {
	if !r.HasBody {
		return nil, false, nil
	}
	if s, ok := r.Body.(string); ok {
		return strings.NewReader(s), false, nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, false, errdef.Wrap(errdef.CodeHTTP, err, "encode body")
	}
	return bytes.NewReader(data), true, nil
}
