package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/chroma/quick"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"

	"github.com/unkn0wn-root/curlparse/internal/config"
	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/history"
	"github.com/unkn0wn-root/curlparse/internal/telemetry"
)

const traceSource = "cli"

type inputSource struct {
	args      []string
	file      string
	clipboard bool
	stdin     io.Reader
	// readClipboard is swapped in tests.
	readClipboard func() (string, error)
}

// readInput picks the command text: positional args, then -file, then the
// clipboard, then stdin.
func readInput(in inputSource) (string, error) {
	if len(in.args) > 0 {
		return joinArgs(in.args), nil
	}
	if in.file != "" {
		data, err := os.ReadFile(in.file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return nonEmpty(string(data))
	}
	if in.clipboard {
		read := in.readClipboard
		if read == nil {
			read = clipboard.ReadAll
		}
		text, err := read()
		if err != nil {
			return "", fmt.Errorf("read clipboard: %w", err)
		}
		return nonEmpty(text)
	}
	if in.stdin == nil {
		return "", errNoInput
	}
	if f, ok := in.stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", errNoInput
		}
	}
	data, err := io.ReadAll(in.stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return nonEmpty(string(data))
}

// joinArgs accepts either one quoted argument holding the whole command or
// the shell-split words of it.
func joinArgs(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	if !strings.EqualFold(args[0], "curl") {
		args = append([]string{"curl"}, args...)
	}
	return strings.Join(args, " ")
}

func nonEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", errNoInput
	}
	return s, nil
}

// saveSettings writes settings back to the file they were loaded from, or
// settings.toml in the config dir when none existed.
func saveSettings(w io.Writer, settings config.Settings, handle config.SettingsHandle) error {
	if handle.Path == "" {
		handle = config.SettingsHandle{
			Path:   filepath.Join(config.Dir(), "settings.toml"),
			Format: config.SettingsFormatTOML,
		}
	}
	if err := config.SaveSettings(settings, handle); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	_, err := fmt.Fprintf(w, "Saved settings to %s\n", handle.Path)
	return err
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type historyAppender interface {
	Append(ctx context.Context, entry history.Entry) (history.Entry, error)
}

type runner struct {
	parser  *curl.Parser
	tel     telemetry.Instrumenter
	history historyAppender
	now     func() time.Time
}

func (r *runner) parse(ctx context.Context, src string, all bool) []curl.Result {
	cmds := []string{src}
	if all {
		if split := curl.SplitCommands(src); len(split) > 0 {
			cmds = split
		}
	}

	results := make([]curl.Result, 0, len(cmds))
	for _, cmd := range cmds {
		res := curl.NewResult(telemetry.TracedParse(ctx, r.tel, r.parser, cmd, traceSource))
		if r.history != nil {
			entry := history.EntryFromResult(cmd, res, r.now())
			if _, err := r.history.Append(ctx, entry); err != nil {
				log.Printf("history append failed: %v", err)
			}
		}
		results = append(results, res)
	}
	return results
}

// writeResults encodes the results as JSON. A non-empty formatter names a
// chroma terminal formatter used to colour the output.
func writeResults(w io.Writer, results []curl.Result, all, pretty bool, formatter string) error {
	var v any = results
	if !all && len(results) == 1 {
		v = results[0]
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	if formatter == "" {
		_, err := w.Write(buf.Bytes())
		return err
	}
	return quick.Highlight(w, buf.String(), "json", formatter, outputStyle)
}

const outputStyle = "monokai"

// colorFormatter maps a terminal colour profile onto a chroma formatter.
// Mode is one of auto, always or never.
func colorFormatter(mode string, profile termenv.Profile) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "never":
		return "", nil
	case "always":
		if profile == termenv.Ascii {
			profile = termenv.ANSI256
		}
	case "", "auto":
	default:
		return "", fmt.Errorf("unknown color mode %q", mode)
	}
	switch profile {
	case termenv.TrueColor:
		return "terminal16m", nil
	case termenv.ANSI256:
		return "terminal256", nil
	case termenv.ANSI:
		return "terminal16", nil
	default:
		return "", nil
	}
}

type historyLister interface {
	Entries(ctx context.Context, limit int) ([]history.Entry, error)
}

func printHistory(ctx context.Context, w io.Writer, store historyLister, n int) error {
	entries, err := store.Entries(ctx, n)
	if err != nil {
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		StyleFunc(func(_, _ int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(2)
		}).
		Headers("ID", "PARSED", "STATUS", "METHOD", "URL")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		t.Row(e.ID, e.ParsedAt.Local().Format(time.DateTime), status, e.Method, e.URL)
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

// firstCommand returns the first curl invocation in src, or src itself when
// none is recognised.
func firstCommand(src string) string {
	if cmds := curl.SplitCommands(src); len(cmds) > 0 {
		return cmds[0]
	}
	return src
}

func sendFirst(ctx context.Context, w io.Writer, results []curl.Result, timeout time.Duration) error {
	if len(results) == 0 || !results[0].Success {
		return errors.New("nothing to send")
	}
	req := results[0].Request
	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s -> %s (%d bytes)\n", httpReq.Method, req.FullURL, resp.Status, n)
	return err
}

func allSucceeded(results []curl.Result) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
