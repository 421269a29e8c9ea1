package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/curlparse/internal/util"
)

type ParserSettings struct {
	MatchTimeout Duration `json:"match_timeout" toml:"match_timeout" yaml:"match_timeout"`
}

type ServerSettings struct {
	Addr           string   `json:"addr"            toml:"addr"            yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins"`
}

type HistorySettings struct {
	Path       string `json:"path"        toml:"path"        yaml:"path"`
	MaxEntries int    `json:"max_entries" toml:"max_entries" yaml:"max_entries"`
	Enabled    bool   `json:"enabled"     toml:"enabled"     yaml:"enabled"`
}

const (
	MatchTimeoutDefault = 250 * time.Millisecond
	MatchTimeoutMax     = 10 * time.Second
	ServerAddrDefault   = ":8080"
	HistoryFileName     = "history.db"
	HistoryMaxDefault   = 500
	HistoryMaxLimit     = 100000
)

func DefaultSettings(dir string) Settings {
	return Settings{
		Parser: ParserSettings{MatchTimeout: Duration(MatchTimeoutDefault)},
		Server: ServerSettings{
			Addr:           ServerAddrDefault,
			AllowedOrigins: []string{"*"},
		},
		History: HistorySettings{
			Path:       filepath.Join(dir, HistoryFileName),
			MaxEntries: HistoryMaxDefault,
			Enabled:    true,
		},
	}
}

// NormaliseSettings fills blanks with defaults and clamps numeric knobs.
// A negative match timeout disables the limit.
func NormaliseSettings(in Settings, dir string) Settings {
	def := DefaultSettings(dir)
	out := in

	switch mt := in.Parser.MatchTimeout.Std(); {
	case mt < 0:
		out.Parser.MatchTimeout = -1
	case mt == 0:
		out.Parser.MatchTimeout = def.Parser.MatchTimeout
	case mt > MatchTimeoutMax:
		out.Parser.MatchTimeout = Duration(MatchTimeoutMax)
	}

	out.Server.Addr = strings.TrimSpace(in.Server.Addr)
	if out.Server.Addr == "" {
		out.Server.Addr = def.Server.Addr
	}
	out.Server.AllowedOrigins = cleanOrigins(in.Server.AllowedOrigins)
	if len(out.Server.AllowedOrigins) == 0 {
		out.Server.AllowedOrigins = def.Server.AllowedOrigins
	}

	out.History.Path = strings.TrimSpace(in.History.Path)
	if out.History.Path == "" {
		out.History.Path = def.History.Path
	}
	out.History.MaxEntries = clampInt(
		in.History.MaxEntries,
		1,
		HistoryMaxLimit,
		HistoryMaxDefault,
	)
	return out
}

func cleanOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		out = append(out, strings.TrimRight(strings.TrimSpace(o), "/"))
	}
	return util.DedupeNonEmptyStrings(out)
}

func clampInt(value, min, max, fallback int) int {
	if value == 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Duration is a time.Duration that reads and writes as "250ms" style text.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}
