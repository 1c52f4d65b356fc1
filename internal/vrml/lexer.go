package vrml

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokNumber
	tokString
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
)

type token struct {
	kind tokenKind
	text string
	num  float64
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	}
	return t.text
}

type lexer struct {
	src  []byte
	pos  int
	line int
	peek *token
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ','
}

func isDelim(c byte) bool {
	return isSpace(c) || c == '{' || c == '}' || c == '[' || c == ']' || c == '#' || c == '"'
}

func (l *lexer) Peek() (token, error) {
	if l.peek == nil {
		t, err := l.scan()
		if err != nil {
			return token{}, err
		}
		l.peek = &t
	}
	return *l.peek, nil
}

func (l *lexer) Next() (token, error) {
	if l.peek != nil {
		t := *l.peek
		l.peek = nil
		return t, nil
	}
	return l.scan()
}

func (l *lexer) scan() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case isSpace(c):
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return l.scanToken()
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) scanToken() (token, error) {
	c := l.src[l.pos]
	line := l.line
	switch c {
	case '{':
		l.pos++
		return token{kind: tokLBrace, text: "{", line: line}, nil
	case '}':
		l.pos++
		return token{kind: tokRBrace, text: "}", line: line}, nil
	case '[':
		l.pos++
		return token{kind: tokLBracket, text: "[", line: line}, nil
	case ']':
		l.pos++
		return token{kind: tokRBracket, text: "]", line: line}, nil
	case '"':
		return l.scanString()
	}

	start := l.pos
	for l.pos < len(l.src) && !isDelim(l.src[l.pos]) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			// 0x hex ints are legal in SFInt32 fields.
			i, ierr := strconv.ParseInt(text, 0, 64)
			if ierr != nil {
				return token{}, fmt.Errorf("line %d: bad number %q", line, text)
			}
			n = float64(i)
		}
		return token{kind: tokNumber, text: text, num: n, line: line}, nil
	}
	return token{kind: tokWord, text: text, line: line}, nil
}

func (l *lexer) scanString() (token, error) {
	line := l.line
	l.pos++ // opening quote
	var buf []byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			if l.pos+1 < len(l.src) {
				buf = append(buf, l.src[l.pos+1])
				l.pos += 2
				continue
			}
		case '"':
			l.pos++
			return token{kind: tokString, text: string(buf), line: line}, nil
		case '\n':
			l.line++
		}
		buf = append(buf, c)
		l.pos++
	}
	return token{}, fmt.Errorf("line %d: unterminated string", line)
}
