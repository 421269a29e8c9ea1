package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/restwriter"
	"github.com/unkn0wn-root/curlparse/internal/util"
)

const errWriterNotConfigured = "curlimport: writer not configured"

type DocumentWriter interface {
	WriteDocument(ctx context.Context, reqs []*curl.Request, dst string, opts WriterOptions) error
}

type WriterOptions struct {
	OverwriteExisting bool
	HeaderComment     string
}

type Service struct {
	Parser *curl.Parser
	Writer DocumentWriter
}

func NewService(p *curl.Parser) *Service {
	return &Service{Parser: p, Writer: FileWriter{}}
}

func (s *Service) GenerateHTTPFile(ctx context.Context, cmd, dst string, opts WriterOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Writer == nil {
		return errors.New(errWriterNotConfigured)
	}

	reqs, warn, err := s.build(cmd)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opts.HeaderComment = buildHeader(opts.HeaderComment, cmd, warn)
	return s.Writer.WriteDocument(ctx, reqs, dst, opts)
}

func (s *Service) build(cmd string) ([]*curl.Request, []string, error) {
	p := s.Parser
	if p == nil {
		p = curl.NewParser(curl.Options{})
	}

	cmds := curl.SplitCommands(cmd)
	if len(cmds) == 0 {
		cmds = []string{cmd}
	}
	reqs := make([]*curl.Request, 0, len(cmds))
	var warn []string
	for i, cur := range cmds {
		req, err := p.Parse(cur)
		if err != nil {
			return nil, nil, fmt.Errorf("curl command %d: %w", i+1, err)
		}
		if req.FullURL == "" {
			return nil, nil, fmt.Errorf("curl command %d: missing URL", i+1)
		}
		reqs = append(reqs, req)
		warn = append(warn, req.Warnings...)
	}
	return reqs, uniqSorted(warn), nil
}

func buildHeader(base, cmd string, warn []string) string {
	var lines []string
	lines = appendLines(lines, base)
	lines = append(lines, sourceLines(cmd)...)
	for _, w := range warn {
		if t := strings.TrimSpace(w); t != "" {
			lines = append(lines, "Warning: "+t)
		}
	}
	return strings.Join(lines, "\n")
}

func appendLines(lines []string, raw string) []string {
	for _, line := range strings.Split(raw, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

func sourceLines(cmd string) []string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil
	}
	parts := strings.Split(cmd, "\n")
	out := make([]string, 0, len(parts)+1)
	out = append(out, "Source:")
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func uniqSorted(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return util.DedupeSortedStrings(out)
}

// FileWriter writes documents to disk through restwriter.
type FileWriter struct{}

func (FileWriter) WriteDocument(
	ctx context.Context,
	reqs []*curl.Request,
	dst string,
	opts WriterOptions,
) error {
	return restwriter.WriteDocument(ctx, reqs, dst, restwriter.Options{
		OverwriteExisting: opts.OverwriteExisting,
		HeaderComment:     opts.HeaderComment,
	})
}
