package views

import (
	"strings"
	"unicode"
)

// joiners are the emoji modifiers tcell draws as stray cells: skin tones,
// the zero width joiner and variation selectors. Dropping them leaves the
// base glyph, e.g. a thumbs-up without its tone.
var joiners = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0xfe00, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f3fb, Hi: 0x1f3ff, Stride: 1},
		{Lo: 0xe0100, Hi: 0xe01ef, Stride: 1},
	},
}

// bodyText prepares server-supplied message content for a multi-line text
// view. Newlines survive; every other control character is dropped so a
// peer cannot move the cursor or inject escape sequences.
func bodyText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r), unicode.Is(joiners, r):
			return -1
		}
		return r
	}, s)
}

// cellText flattens s to a single line for table cells: newlines and tabs
// become spaces and runs of whitespace collapse.
func cellText(s string) string {
	return strings.Join(strings.Fields(bodyText(s)), " ")
}
