package curl

import (
	"strings"
)

// SplitCommands finds every curl invocation in src. A command continues over
// backslash line endings and over newlines inside an open quote; a blank
// line outside quotes ends it.
func SplitCommands(src string) []string {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		if !IsStartLine(lines[i]) {
			i++
			continue
		}
		end, cmd := extractCommand(lines, i)
		if cmd != "" {
			out = append(out, cmd)
		}
		i = end + 1
	}
	return out
}

func extractCommand(lines []string, start int) (int, string) {
	var (
		st  quoteState
		b   strings.Builder
		end = start
	)
	for i := start; i < len(lines); i++ {
		line := lines[i]
		openBefore := st.open()
		if !openBefore && i > start && strings.TrimSpace(line) == "" {
			break
		}
		if !openBefore {
			line = strings.Trim(line, " \t")
		}

		cont := lineContinues(line)
		if cont {
			line = line[:len(line)-1]
		}

		if b.Len() > 0 {
			if openBefore {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(line)
		st.consume(line)
		end = i

		if cont {
			st.resetEscape()
			continue
		}
		if !st.open() {
			break
		}
	}
	return end, strings.TrimSpace(b.String())
}

// IsStartLine reports whether line begins a curl invocation, ignoring a
// shell prompt and wrappers such as sudo or env.
func IsStartLine(line string) bool {
	line = stripCurlPrefixes(stripPromptPrefix(line))
	return line == cmdCurl || strings.HasPrefix(line, cmdCurl+" ")
}

func lineContinues(v string) bool {
	count := 0
	for i := len(v) - 1; i >= 0 && v[i] == '\\'; i-- {
		count++
	}
	return count%2 == 1
}

func stripPromptPrefix(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range promptPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			trimmed = strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}

// wrapperArgs lists the short options of each wrapper command that consume
// the following word.
var wrapperArgs = map[string]string{
	cmdSudo:    "ughpCcU",
	cmdEnv:     "uC",
	cmdTime:    "fo",
	cmdCommand: "",
	cmdNoGlob:  "",
}

func stripCurlPrefixes(line string) string {
	for {
		tok, rest := nextTok(line)
		argOpts, ok := wrapperArgs[strings.ToLower(tok)]
		if !ok {
			return strings.TrimSpace(line)
		}
		line = skipWrapperArgs(rest, argOpts, strings.EqualFold(tok, cmdEnv))
	}
}

func skipWrapperArgs(line, argOpts string, assignments bool) string {
	for {
		tok, rest := nextTok(line)
		switch {
		case tok == "":
			return ""
		case tok == "--":
			return rest
		case strings.HasPrefix(tok, "-"):
			line = rest
			if len(tok) == 2 && strings.ContainsRune(argOpts, rune(tok[1])) {
				_, line = nextTok(rest)
			}
		case assignments && strings.Contains(tok, "=") && !strings.HasPrefix(tok, "="):
			line = rest
		default:
			return line
		}
	}
}

// nextTok returns the first shell word of line, quotes kept, and the rest.
func nextTok(line string) (string, string) {
	line = strings.TrimLeft(line, " \t")
	var st quoteState
	i := 0
	for i < len(line) {
		if !st.open() && !st.escape && (line[i] == ' ' || line[i] == '\t') {
			break
		}
		i = st.step(line, i)
	}
	return line[:i], strings.TrimLeft(line[i:], " \t")
}
