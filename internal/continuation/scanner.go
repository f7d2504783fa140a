package continuation

import "strings"

// heredoc is one pending here-document whose terminator line has not been
// seen yet.
type heredoc struct {
	terminator string
	indented   bool // <<- form: terminator line may be indented
}

// scanner is the single-pass lexical state for Check. It classifies each
// byte as word material, operator, quote boundary, or comment, and drives
// the opener/closer stack off complete words so keywords are only honored
// in leading command position.
type scanner struct {
	length int

	quote   byte // 0, '\'' or '"'
	escaped bool // pending backslash, set outside single quotes only
	joinEnd int  // one past the most recent backslash-newline join

	comment bool

	word       []byte
	wordQuoted bool // word contains quoted or escaped material; never a keyword

	atCommandStart bool
	stack          []Structure

	heredocs []heredoc
	inBody   bool
	bodyLine []byte
}

func (s *scanner) scan(input string) {
	s.length = len(input)
	s.atCommandStart = true

	for i := 0; i < len(input); i++ {
		c := input[i]

		if s.inBody {
			if c == '\n' {
				s.finishBodyLine()
			} else {
				s.bodyLine = append(s.bodyLine, c)
			}
			continue
		}

		if s.comment {
			if c == '\n' {
				s.comment = false
				s.newline()
			}
			continue
		}

		if s.escaped {
			s.escaped = false
			if c == '\n' {
				// Backslash-newline joins lines: the current word and
				// command position carry over.
				s.joinEnd = i + 1
				continue
			}
			s.word = append(s.word, c)
			s.wordQuoted = true
			continue
		}

		if s.quote == '\'' {
			if c == '\'' {
				s.quote = 0
			}
			continue
		}
		if s.quote == '"' {
			switch c {
			case '\\':
				s.escaped = true
			case '"':
				s.quote = 0
			}
			continue
		}

		switch c {
		case '\\':
			s.escaped = true
		case '\'', '"':
			s.quote = c
			s.wordQuoted = true
		case '\n':
			s.flushWord()
			s.newline()
		case ' ', '\t':
			s.flushWord()
		case '#':
			if len(s.word) == 0 && !s.wordQuoted {
				s.comment = true
			} else {
				s.word = append(s.word, c)
			}
		case ';', '&', '|', '(', ')':
			s.flushWord()
			s.atCommandStart = true
		case '<':
			s.flushWord()
			if i+1 < len(input) && input[i+1] == '<' {
				if i+2 < len(input) && input[i+2] == '<' {
					i += 2 // <<< herestring, plain operator
				} else {
					i = s.readHeredocOp(input, i)
				}
			}
		case '>':
			s.flushWord()
		default:
			s.word = append(s.word, c)
		}
	}

	s.flushWord()
}

// newline ends the current logical line. If heredoc redirects were opened on
// it, their bodies start here.
func (s *scanner) newline() {
	if len(s.heredocs) > 0 {
		s.inBody = true
		s.bodyLine = s.bodyLine[:0]
		return
	}
	s.atCommandStart = true
}

// finishBodyLine matches one completed heredoc body line against the awaited
// terminator. Terminators are consumed in FIFO order when several heredocs
// were opened on the same line.
func (s *scanner) finishBodyLine() {
	line := string(s.bodyLine)
	s.bodyLine = s.bodyLine[:0]

	h := s.heredocs[0]
	if h.indented {
		line = strings.TrimLeft(line, " \t")
	}
	if h.terminator != "" && line == h.terminator {
		s.heredocs = s.heredocs[1:]
		if len(s.heredocs) == 0 {
			s.inBody = false
			s.atCommandStart = true
		}
	}
}

// flushWord completes the word being accumulated, if any, and applies the
// keyword rules: openers push their expected closer, a matching closer pops,
// linking keywords reintroduce command position, anything else is a plain
// word. Words containing quoted or escaped material are never keywords.
func (s *scanner) flushWord() {
	w := string(s.word)
	quoted := s.wordQuoted
	s.word = s.word[:0]
	s.wordQuoted = false

	if w == "" && !quoted {
		return
	}
	if quoted {
		s.atCommandStart = false
		return
	}

	switch {
	case s.atCommandStart && structureOpeners[w] != "":
		s.stack = append(s.stack, Structure{Opener: w, ExpectedCloser: structureOpeners[w]})
		s.atCommandStart = conditionOpeners[w]
	case s.atCommandStart && len(s.stack) > 0 && s.stack[len(s.stack)-1].ExpectedCloser == w:
		s.stack = s.stack[:len(s.stack)-1]
		s.atCommandStart = false
	case s.atCommandStart && linkingKeywords[w]:
		s.atCommandStart = true
	default:
		s.atCommandStart = false
	}
}

// readHeredocOp consumes a << or <<- operator starting at input[i] together
// with its delimiter word and queues the pending heredoc. Returns the index
// of the last consumed byte. Quotes and backslashes in the delimiter are
// stripped; what remains is matched literally against body lines.
func (s *scanner) readHeredocOp(input string, i int) int {
	j := i + 2
	indented := false
	if j < len(input) && input[j] == '-' {
		indented = true
		j++
	}
	for j < len(input) && (input[j] == ' ' || input[j] == '\t') {
		j++
	}

	var term []byte
loop:
	for j < len(input) {
		switch c := input[j]; c {
		case '\'':
			j++
			for j < len(input) && input[j] != '\'' {
				term = append(term, input[j])
				j++
			}
			if j < len(input) {
				j++
			}
		case '"':
			j++
			for j < len(input) && input[j] != '"' {
				if input[j] == '\\' && j+1 < len(input) {
					j++
				}
				term = append(term, input[j])
				j++
			}
			if j < len(input) {
				j++
			}
		case '\\':
			if j+1 >= len(input) {
				j++
				break loop
			}
			term = append(term, input[j+1])
			j += 2
		case ' ', '\t', '\n', ';', '&', '|', '<', '>', '(', ')':
			break loop
		default:
			term = append(term, c)
			j++
		}
	}

	s.heredocs = append(s.heredocs, heredoc{terminator: string(term), indented: indented})
	s.atCommandStart = false
	return j - 1
}

// lineContinuation reports whether the buffer ends mid line-join: either in a
// pending backslash or exactly at a backslash-newline.
func (s *scanner) lineContinuation() bool {
	return s.escaped || (s.joinEnd > 0 && s.joinEnd == s.length)
}
