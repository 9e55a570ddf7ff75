package pdfcpu

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokOperator
	tokArray
	tokDict
)

type token struct {
	kind  tokenKind
	text  string
	num   float64
	items []token
}

// winAnsiHigh maps the WinAnsiEncoding code points in 0x80-0x9F that differ from Latin-1.
var winAnsiHigh = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„', 0x85: '…', 0x86: '†', 0x87: '‡',
	0x88: 'ˆ', 0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ', 0x8E: 'Ž',
	0x91: '‘', 0x92: '’', 0x93: '“', 0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
	0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›', 0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
}

// TJ displacements below this (thousandths of text space) read as word gaps.
const tjSpaceThreshold = -250

// ContentText interprets the text-showing operators of a page content stream and returns the
// text they draw. Line breaks follow text positioning operators. Glyph codes are decoded as
// WinAnsi; strings with a UTF-16BE byte order mark are decoded as UTF-16.
func ContentText(stream []byte) string {
	return contentText(stream, nil)
}

// contentText is ContentText with the page's fonts keyed by resource name. Strings shown with a
// font that carries a ToUnicode CMap are decoded through it.
func contentText(stream []byte, fonts map[string]*fontDecoder) string {
	if len(stream) == 0 {
		return ""
	}
	w := &textWriter{fonts: fonts}
	lx := &lexer{data: stream}
	var operands []token
	lastY := math.NaN()

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tf":
			if name, ok := lastOf(operands, tokName); ok {
				w.font = fonts[name.text]
			}
		case "Tj":
			if s, ok := lastOf(operands, tokString); ok {
				w.text(s.text)
			}
		case "'":
			w.newline()
			if s, ok := lastOf(operands, tokString); ok {
				w.text(s.text)
			}
		case "\"":
			w.newline()
			if s, ok := lastOf(operands, tokString); ok {
				w.text(s.text)
			}
		case "TJ":
			if arr, ok := lastOf(operands, tokArray); ok {
				for _, it := range arr.items {
					switch it.kind {
					case tokString:
						w.text(it.text)
					case tokNumber:
						if it.num < tjSpaceThreshold {
							w.space()
						}
					}
				}
			}
		case "Td", "TD":
			if len(operands) >= 2 {
				tx, ty := operands[len(operands)-2], operands[len(operands)-1]
				switch {
				case ty.kind == tokNumber && ty.num != 0:
					w.newline()
				case tx.kind == tokNumber && tx.num > 0:
					w.space()
				}
			}
		case "Tm":
			if len(operands) >= 6 {
				if f := operands[len(operands)-1]; f.kind == tokNumber {
					if !math.IsNaN(lastY) && f.num != lastY {
						w.newline()
					}
					lastY = f.num
				}
			}
		case "T*":
			w.newline()
		case "ET":
			w.newline()
		case "ID":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}
	return w.String()
}

func lastOf(operands []token, kind tokenKind) (token, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == kind {
			return operands[i], true
		}
	}
	return token{}, false
}

type textWriter struct {
	lines []string
	cur   strings.Builder
	fonts map[string]*fontDecoder
	font  *fontDecoder
}

func (w *textWriter) text(raw string) {
	w.cur.WriteString(w.font.decode([]byte(raw)))
}

func (w *textWriter) space() {
	s := w.cur.String()
	if s != "" && !strings.HasSuffix(s, " ") {
		w.cur.WriteByte(' ')
	}
}

func (w *textWriter) newline() {
	line := strings.TrimRight(w.cur.String(), " ")
	w.cur.Reset()
	if line == "" {
		return
	}
	w.lines = append(w.lines, line)
}

func (w *textWriter) String() string {
	w.newline()
	return strings.Join(w.lines, "\n")
}

func decodeString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if r, ok := winAnsiHigh[c]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

type lexer struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next operand or operator. Arrays and dictionaries come back as single tokens.
func (l *lexer) next() (token, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return token{}, false
	}
	c := l.data[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokString, text: l.literal()}, true
	case c == '<' && l.peek(1) == '<':
		l.pos += 2
		return token{kind: tokDict, items: l.until(">>")}, true
	case c == '<':
		l.pos++
		return token{kind: tokString, text: l.hex()}, true
	case c == '[':
		l.pos++
		return token{kind: tokArray, items: l.until("]")}, true
	case c == '/':
		l.pos++
		return token{kind: tokName, text: l.regular()}, true
	case c == ']' || c == '>' || c == ')' || c == '{' || c == '}':
		l.pos++
		return l.next()
	}

	word := l.regular()
	if word == "" {
		l.pos++
		return l.next()
	}
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokNumber, num: n, text: word}, true
	}
	return token{kind: tokOperator, text: word}, true
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.data) {
		return l.data[l.pos+off]
	}
	return 0
}

func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// until collects tokens up to the closing delimiter.
func (l *lexer) until(end string) []token {
	var items []token
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return items
		}
		if bytes.HasPrefix(l.data[l.pos:], []byte(end)) {
			l.pos += len(end)
			return items
		}
		tok, ok := l.next()
		if !ok {
			return items
		}
		items = append(items, tok)
	}
}

func (l *lexer) literal() string {
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return string(out)
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.data) {
				return string(out)
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					out = append(out, byte(v))
					continue
				}
				out = append(out, e)
			}
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func (l *lexer) hex() string {
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		if isWhite(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return string(out)
}

// skipInlineImage advances past binary inline image data terminated by EI.
func (l *lexer) skipInlineImage() {
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isWhite(l.data[l.pos-1])) &&
			(l.pos+2 == len(l.data) || isWhite(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}
