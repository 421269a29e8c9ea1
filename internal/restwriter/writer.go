package restwriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unkn0wn-root/curlparse/internal/curl"
)

type Options struct {
	OverwriteExisting bool
	HeaderComment     string
}

// WriteDocument renders reqs as a .http document and writes it to dst.
func WriteDocument(ctx context.Context, reqs []*curl.Request, dst string, opts Options) error {
	if len(reqs) == 0 {
		return errors.New("writer: no requests to write")
	}
	if strings.TrimSpace(dst) == "" {
		return errors.New("writer: destination path is empty")
	}

	content := Render(reqs, opts)
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFile(dst, content, opts.OverwriteExisting)
}

func writeFile(dst, content string, overwrite bool) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writer: create directory: %w", err)
	}

	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("writer: destination %s already exists", dst)
		}
	}

	tmp, err := os.CreateTemp(dir, "curlparse-*.http")
	if err != nil {
		return fmt.Errorf("writer: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := io.WriteString(tmp, content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writer: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writer: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("writer: rename temp file: %w", err)
	}
	return nil
}

func Render(reqs []*curl.Request, opts Options) string {
	var b strings.Builder

	renderHeader(&b, opts.HeaderComment)

	idx := 0
	for _, req := range reqs {
		if req == nil {
			continue
		}
		if idx > 0 {
			b.WriteString("\n")
		}
		renderRequest(&b, req)
		idx++
	}

	return b.String()
}

func renderHeader(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("# ")
		b.WriteString(strings.TrimSpace(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderRequest(b *strings.Builder, req *curl.Request) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}
	fmt.Fprintf(b, "### %s %s\n", method, req.URL)
	for _, w := range req.Warnings {
		b.WriteString("# warning: ")
		b.WriteString(w)
		b.WriteString("\n")
	}

	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(req.FullURL)
	b.WriteString("\n")
	renderHeaders(b, req.Headers)
	b.WriteString("\n")

	if text := bodyText(req); text != "" {
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
}

func renderHeaders(b *strings.Builder, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(headers[name])
		b.WriteString("\n")
	}
}

// bodyText pretty prints decoded JSON bodies and passes raw text through.
func bodyText(req *curl.Request) string {
	if !req.HasBody {
		return ""
	}
	if s, ok := req.Body.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(req.Body, "", "  ")
	if err != nil {
		return fmt.Sprint(req.Body)
	}
	return string(data)
}
