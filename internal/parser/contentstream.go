package parser

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// tjKernSpace is the TJ displacement, in thousandths of an em, past which a
// space is assumed between two strings.
const tjKernSpace = -200

// contentStreamText pulls readable text out of a decoded page content
// stream. It follows the text-showing operators (Tj, TJ, ' and ") and turns
// line moves and text object ends into newlines.
func contentStreamText(data []byte) string {
	var (
		out      strings.Builder
		operands []csToken
	)
	newline := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}
	lastString := func() (string, bool) {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == tokString {
				return operands[i].text, true
			}
		}
		return "", false
	}

	lx := &csLexer{data: data}
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
		case "Tj":
			if s, ok := lastString(); ok {
				out.WriteString(s)
			}
		case "'", "\"":
			newline()
			if s, ok := lastString(); ok {
				out.WriteString(s)
			}
		case "TJ":
			for _, o := range operands {
				switch o.kind {
				case tokString:
					out.WriteString(o.text)
				case tokNumber:
					if o.num < tjKernSpace {
						out.WriteByte(' ')
					}
				}
			}
		case "Td", "TD", "T*", "ET":
			newline()
		}
		operands = operands[:0]
	}
	return cleanStreamText(out.String())
}

// cleanStreamText collapses runs of blanks inside lines and drops empty lines.
func cleanStreamText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

type csTokenKind int

const (
	tokOperator csTokenKind = iota
	tokString
	tokNumber
	tokOther
)

type csToken struct {
	kind csTokenKind
	text string
	num  float64
}

// csLexer tokenizes just enough of the content stream grammar to find
// string operands and operators. Array brackets are dropped so TJ sees its
// strings and numbers as plain operands.
type csLexer struct {
	data []byte
	pos  int
}

func (l *csLexer) next() (csToken, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c) || c == '[' || c == ']':
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return csToken{kind: tokString, text: winAnsi(l.literal())}, true
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				return csToken{kind: tokOther, text: "<<"}, true
			}
			return csToken{kind: tokString, text: winAnsi(l.hexString())}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return csToken{kind: tokOther, text: ">>"}, true
		case c == '/':
			start := l.pos
			l.pos++
			for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelim(l.data[l.pos]) {
				l.pos++
			}
			return csToken{kind: tokOther, text: string(l.data[start:l.pos])}, true
		default:
			start := l.pos
			for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelim(l.data[l.pos]) {
				l.pos++
			}
			if l.pos == start {
				l.pos++
				continue
			}
			word := string(l.data[start:l.pos])
			if n, ok := parsePDFNumber(word); ok {
				return csToken{kind: tokNumber, text: word, num: n}, true
			}
			return csToken{kind: tokOperator, text: word}, true
		}
	}
	return csToken{}, false
}

// literal reads a parenthesised string with nesting and escapes.
func (l *csLexer) literal() []byte {
	l.pos++ // (
	depth := 1
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.data) {
				return out
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
			case '\r', '\n':
				if e == '\r' && l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; k++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *csLexer) hexString() []byte {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	b, err := hex.DecodeString(string(digits))
	if err != nil {
		return nil
	}
	return b
}

// winAnsi maps single-byte string operands to text. Two-byte encoded
// strings come out as noise, which cleanStreamText cannot repair.
func winAnsi(b []byte) string {
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func parsePDFNumber(s string) (float64, bool) {
	if s == "" || strings.IndexByte("+-.0123456789", s[0]) < 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
