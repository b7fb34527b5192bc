// Package terminal binds a raw-mode terminal to the exam session: it turns
// resize and focus-report events into integrity signals and keystrokes into
// navigation input.
package terminal

import (
	"unicode/utf8"
)

// InputKind classifies a decoded input event.
type InputKind int

const (
	InputRune InputKind = iota
	InputKey
	InputFocusIn
	InputFocusOut
	InputBlocked
)

// Key identifies a non-printable key.
type Key int

const (
	KeyNone Key = iota
	KeyEnter
	KeyBackspace
	KeyTab
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// Input is one decoded event from the terminal.
type Input struct {
	Kind InputKind
	Rune rune
	Key  Key
	// Name is the shortcut name for InputBlocked.
	Name string
}

// Control bytes that map to shortcuts the exam forbids.
var blockedControls = map[byte]string{
	0x03: "Ctrl+C",
	0x0e: "Ctrl+N",
	0x12: "Ctrl+R",
	0x14: "Ctrl+T",
	0x17: "Ctrl+W",
	0x1a: "Ctrl+Z",
}

// CSI sequences (without the ESC [ prefix) for forbidden function keys.
var blockedCSI = map[string]string{
	"15~":  "F5",
	"23~":  "F11",
	"24~":  "F12",
	"1;3S": "Alt+F4",
	"1;5I": "Ctrl+Tab",
}

// Parser decodes raw terminal bytes. Bytes of an incomplete escape sequence
// or UTF-8 rune are held until the next Feed or Flush.
type Parser struct {
	pending []byte
}

// Feed decodes data and returns the complete events it contains. A lone ESC
// at the end of a chunk is reported as KeyEscape, since terminals write an
// escape sequence in a single chunk.
func (p *Parser) Feed(data []byte) []Input {
	buf := append(p.pending, data...)
	p.pending = nil

	var out []Input
	for len(buf) > 0 {
		in, n, ok := decode(buf)
		if !ok {
			p.pending = append([]byte(nil), buf...)
			break
		}
		buf = buf[n:]
		if in != nil {
			out = append(out, *in)
		}
	}
	return out
}

// Pending reports whether bytes of an unfinished sequence are held.
func (p *Parser) Pending() bool {
	return len(p.pending) > 0
}

// Flush gives up on held bytes. An unfinished escape sequence becomes a bare
// Escape and its remaining bytes are discarded; a partial UTF-8 rune is dropped.
func (p *Parser) Flush() []Input {
	held := p.pending
	p.pending = nil
	if len(held) > 0 && held[0] == 0x1b {
		return []Input{{Kind: InputKey, Key: KeyEscape}}
	}
	return nil
}

// decode reads one event from buf. ok is false when buf holds only the
// beginning of an event. A nil event with n > 0 means the bytes were consumed
// and ignored.
func decode(buf []byte) (in *Input, n int, ok bool) {
	b := buf[0]

	if name, blocked := blockedControls[b]; blocked {
		return &Input{Kind: InputBlocked, Name: name}, 1, true
	}

	switch b {
	case '\r', '\n':
		return &Input{Kind: InputKey, Key: KeyEnter}, 1, true
	case 0x7f, 0x08:
		return &Input{Kind: InputKey, Key: KeyBackspace}, 1, true
	case '\t':
		return &Input{Kind: InputKey, Key: KeyTab}, 1, true
	case 0x1b:
		return decodeEscape(buf)
	}

	if b < 0x20 {
		return nil, 1, true
	}

	if !utf8.FullRune(buf) {
		return nil, 0, false
	}
	r, size := utf8.DecodeRune(buf)
	if r == utf8.RuneError {
		return nil, size, true
	}
	return &Input{Kind: InputRune, Rune: r}, size, true
}

func decodeEscape(buf []byte) (*Input, int, bool) {
	if len(buf) == 1 {
		return &Input{Kind: InputKey, Key: KeyEscape}, 1, true
	}

	switch buf[1] {
	case '[':
		return decodeCSI(buf)
	case 'O':
		if len(buf) < 3 {
			return nil, 0, false
		}
		if k := arrow(buf[2]); k != KeyNone {
			return &Input{Kind: InputKey, Key: k}, 3, true
		}
		return nil, 3, true
	case '\t':
		return &Input{Kind: InputBlocked, Name: "Alt+Tab"}, 2, true
	case 0x1b:
		return &Input{Kind: InputKey, Key: KeyEscape}, 1, true
	}
	// Alt+key: ignored.
	return nil, 2, true
}

func decodeCSI(buf []byte) (*Input, int, bool) {
	for i := 2; i < len(buf); i++ {
		c := buf[i]
		if c < 0x40 || c > 0x7e {
			continue
		}
		body := string(buf[2 : i+1])
		n := i + 1

		switch body {
		case "I":
			return &Input{Kind: InputFocusIn}, n, true
		case "O":
			return &Input{Kind: InputFocusOut}, n, true
		}
		if name, blocked := blockedCSI[body]; blocked {
			return &Input{Kind: InputBlocked, Name: name}, n, true
		}
		if len(body) == 1 {
			if k := arrow(c); k != KeyNone {
				return &Input{Kind: InputKey, Key: k}, n, true
			}
		}
		return nil, n, true
	}
	return nil, 0, false
}

func arrow(c byte) Key {
	switch c {
	case 'A':
		return KeyUp
	case 'B':
		return KeyDown
	case 'C':
		return KeyRight
	case 'D':
		return KeyLeft
	}
	return KeyNone
}
