package curl

// quoteState tracks shell quoting across the lines of a pasted command so
// the scanner knows whether a newline is inside a quoted argument.
type quoteState struct {
	inSingle bool
	inDouble bool
	inANSI   bool
	escape   bool
}

func (s *quoteState) open() bool {
	return s.inSingle || s.inDouble || s.inANSI
}

func (s *quoteState) resetEscape() {
	s.escape = false
}

func (s *quoteState) consume(line string) {
	for i := 0; i < len(line); {
		i = s.step(line, i)
	}
}

// step feeds line[i] into the state and returns the index of the next
// unread byte.
func (s *quoteState) step(line string, i int) int {
	c := line[i]
	if s.escape {
		s.escape = false
		return i + 1
	}
	switch {
	case s.inSingle:
		if c == '\'' {
			s.inSingle = false
		}
	case s.inANSI:
		switch c {
		case '\\':
			s.escape = true
		case '\'':
			s.inANSI = false
		}
	case s.inDouble:
		switch c {
		case '\\':
			s.escape = true
		case '"':
			s.inDouble = false
		}
	default:
		switch c {
		case '\\':
			s.escape = true
		case '\'':
			s.inSingle = true
		case '"':
			s.inDouble = true
		case '$':
			if i+1 < len(line) && line[i+1] == '\'' {
				s.inANSI = true
				return i + 2
			}
		}
	}
	return i + 1
}
