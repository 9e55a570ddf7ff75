package pdfcpu

import (
	"bytes"
	"strings"
	"unicode/utf16"
)

// codeSpace is one begincodespacerange entry. lo and hi have the same length.
type codeSpace struct {
	lo, hi []byte
}

func (s codeSpace) contains(code []byte) bool {
	if len(code) != len(s.lo) {
		return false
	}
	for i, c := range code {
		if c < s.lo[i] || c > s.hi[i] {
			return false
		}
	}
	return true
}

// bfRange maps a contiguous run of codes either to consecutive UTF-16 values starting at dst
// or element-wise to the strings in dstList.
type bfRange struct {
	width   int
	lo, hi  uint32
	dst     []uint16
	dstList [][]uint16
}

// toUnicode is a parsed ToUnicode CMap.
type toUnicode struct {
	spaces []codeSpace
	chars  map[string][]uint16
	ranges []bfRange
}

// parseToUnicode reads the codespace, bfchar and bfrange sections of a ToUnicode CMap stream.
// Unknown operators are ignored.
func parseToUnicode(data []byte) *toUnicode {
	m := &toUnicode{chars: make(map[string][]uint16)}
	lx := &lexer{data: data}
	var operands []token

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
		case "endcodespacerange":
			for i := 0; i+1 < len(operands); i += 2 {
				lo, hi := operands[i], operands[i+1]
				if lo.kind != tokString || hi.kind != tokString || len(lo.text) != len(hi.text) || lo.text == "" {
					continue
				}
				m.spaces = append(m.spaces, codeSpace{lo: []byte(lo.text), hi: []byte(hi.text)})
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, dst := operands[i], operands[i+1]
				if src.kind != tokString || dst.kind != tokString {
					continue
				}
				m.chars[src.text] = utf16Units([]byte(dst.text))
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				if r, ok := newBFRange(operands[i], operands[i+1], operands[i+2]); ok {
					m.ranges = append(m.ranges, r)
				}
			}
		}
		operands = operands[:0]
	}
	return m
}

func newBFRange(lo, hi, dst token) (bfRange, bool) {
	if lo.kind != tokString || hi.kind != tokString || len(lo.text) != len(hi.text) {
		return bfRange{}, false
	}
	if len(lo.text) == 0 || len(lo.text) > 4 {
		return bfRange{}, false
	}
	r := bfRange{width: len(lo.text), lo: codeValue([]byte(lo.text)), hi: codeValue([]byte(hi.text))}
	if r.lo > r.hi {
		return bfRange{}, false
	}
	switch dst.kind {
	case tokString:
		r.dst = utf16Units([]byte(dst.text))
	case tokArray:
		for _, it := range dst.items {
			if it.kind == tokString {
				r.dstList = append(r.dstList, utf16Units([]byte(it.text)))
			} else {
				r.dstList = append(r.dstList, nil)
			}
		}
	default:
		return bfRange{}, false
	}
	return r, true
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func utf16Units(b []byte) []uint16 {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return u
}

// codeWidth returns the byte length of the code at the start of b.
func (m *toUnicode) codeWidth(b []byte) int {
	for n := 1; n <= 4 && n <= len(b); n++ {
		for _, s := range m.spaces {
			if s.contains(b[:n]) {
				return n
			}
		}
	}
	if len(m.spaces) == 0 && len(m.ranges) > 0 {
		return min(m.ranges[0].width, len(b))
	}
	return 1
}

func (m *toUnicode) lookup(code []byte) ([]uint16, bool) {
	if u, ok := m.chars[string(code)]; ok {
		return u, true
	}
	v := codeValue(code)
	for _, r := range m.ranges {
		if r.width != len(code) || v < r.lo || v > r.hi {
			continue
		}
		off := v - r.lo
		if r.dstList != nil {
			if int(off) < len(r.dstList) && r.dstList[off] != nil {
				return r.dstList[off], true
			}
			return nil, false
		}
		if len(r.dst) == 0 {
			return nil, false
		}
		u := append([]uint16(nil), r.dst...)
		u[len(u)-1] += uint16(off)
		return u, true
	}
	return nil, false
}

// decode maps shown string bytes to text. Codes without a mapping are dropped.
func (m *toUnicode) decode(b []byte) string {
	var units []uint16
	for len(b) > 0 {
		n := m.codeWidth(b)
		if u, ok := m.lookup(b[:n]); ok {
			units = append(units, u...)
		}
		b = b[n:]
	}
	return strings.ReplaceAll(string(utf16.Decode(units)), "\x00", "")
}

// fontDecoder turns the bytes shown with one font into text.
type fontDecoder struct {
	cmap *toUnicode
	// composite fonts use multi-byte codes that carry no meaning without a CMap
	composite bool
}

func (d *fontDecoder) decode(b []byte) string {
	switch {
	case d == nil:
		return decodeString(b)
	case d.cmap != nil:
		return d.cmap.decode(b)
	case d.composite:
		if bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
			return decodeString(b)
		}
		return ""
	default:
		return decodeString(b)
	}
}
