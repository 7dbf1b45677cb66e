//go:build !portable

package driver

import (
	"bufio"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// termiosBackend drives a real terminal: raw mode via termios, CSI/SS3
// escape decoding, SGR mouse reporting and SIGWINCH resize tracking.
type termiosBackend struct {
	mu       sync.Mutex
	fd       int
	oldState *term.State
	out      chan Notification
	winchCh  chan os.Signal
	stopCh   chan struct{}
	width    int
	height   int
}

func newPlatformBackend() Backend {
	return &termiosBackend{fd: int(os.Stdin.Fd())}
}

func (b *termiosBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, err := term.MakeRaw(b.fd)
	if err != nil {
		return err
	}
	b.oldState = state
	b.width, b.height = ttySize()
	b.out = make(chan Notification, 64)
	b.stopCh = make(chan struct{})
	b.winchCh = make(chan os.Signal, 1)
	signal.Notify(b.winchCh, unix.SIGWINCH)
	// Enable SGR mouse reporting and bracketed paste.
	os.Stdout.WriteString("\x1b[?1000h\x1b[?1006h\x1b[?2004h")
	go b.readInput()
	go b.watchResize()
	return nil
}

func (b *termiosBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.oldState == nil {
		return
	}
	signal.Stop(b.winchCh)
	close(b.stopCh)
	os.Stdout.WriteString("\x1b[?2004l\x1b[?1006l\x1b[?1000l")
	_ = term.Restore(b.fd, b.oldState)
	b.oldState = nil
}

func (b *termiosBackend) Width() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width
}

func (b *termiosBackend) Height() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.height
}

func (b *termiosBackend) Events() <-chan Notification {
	return b.out
}

func (b *termiosBackend) emit(n Notification) {
	select {
	case b.out <- n:
	case <-b.stopCh:
	}
}

func (b *termiosBackend) watchResize() {
	for {
		select {
		case <-b.stopCh:
			return
		case <-b.winchCh:
			w, h := ttySize()
			b.mu.Lock()
			b.width, b.height = w, h
			b.mu.Unlock()
			b.emit(Notification{Type: NoticeResize, Width: w, Height: h})
		}
	}
}

func (b *termiosBackend) readInput() {
	br := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		c, err := br.ReadByte()
		if err != nil {
			select {
			case <-b.stopCh:
			default:
				b.emit(Notification{Type: NoticeError, Err: err})
			}
			return
		}
		switch c {
		case 0x1b:
			b.readEscape(br)
		case '\r', '\n':
			b.emit(Notification{Type: NoticeKey, Code: CodeEnter})
		case 0x09:
			b.emit(Notification{Type: NoticeKey, Code: CodeTab})
		case 0x7f, 0x08:
			b.emit(Notification{Type: NoticeKey, Code: CodeBack})
		case 0x20:
			b.emit(Notification{Type: NoticeKey, Code: CodeSpace})
		default:
			if c < 0x20 {
				// Ctrl-letter byte. Ctrl-A is 0x01.
				b.emit(Notification{Type: NoticeKey, Ch: rune(c + 'a' - 1), Mod: RawModCtrl})
				continue
			}
			if c < utf8.RuneSelf {
				b.emit(Notification{Type: NoticeKey, Ch: rune(c)})
				continue
			}
			_ = br.UnreadByte()
			rn, _, err := br.ReadRune()
			if err != nil {
				return
			}
			b.emit(Notification{Type: NoticeKey, Ch: rn})
		}
	}
}

func (b *termiosBackend) readEscape(br *bufio.Reader) {
	if br.Buffered() == 0 {
		b.emit(Notification{Type: NoticeKey, Code: CodeEsc})
		return
	}
	c, err := br.ReadByte()
	if err != nil {
		return
	}
	switch c {
	case '[':
		b.readCSI(br)
	case 'O':
		b.readSS3(br)
	default:
		// ESC-prefixed rune is Alt plus the rune.
		if c < utf8.RuneSelf {
			b.emit(Notification{Type: NoticeKey, Ch: rune(c), Mod: RawModAlt})
		}
	}
}

func (b *termiosBackend) readCSI(br *bufio.Reader) {
	seq := []byte{}
	for {
		c, err := br.ReadByte()
		if err != nil {
			return
		}
		seq = append(seq, c)
		if c == '~' || unicode.IsLetter(rune(c)) {
			break
		}
		if len(seq) > 24 {
			return
		}
	}
	s := string(seq)
	if strings.HasPrefix(s, "<") {
		b.decodeSGRMouse(s)
		return
	}
	if s == "200~" {
		b.readPaste(br)
		return
	}
	code, mod := decodeCSI(s)
	if code != 0 {
		b.emit(Notification{Type: NoticeKey, Code: code, Mod: mod})
	}
}

func (b *termiosBackend) readSS3(br *bufio.Reader) {
	c, err := br.ReadByte()
	if err != nil {
		return
	}
	switch c {
	case 'H':
		b.emit(Notification{Type: NoticeKey, Code: CodeHome})
	case 'F':
		b.emit(Notification{Type: NoticeKey, Code: CodeEnd})
	case 'P':
		b.emit(Notification{Type: NoticeKey, Code: CodeF1})
	case 'Q':
		b.emit(Notification{Type: NoticeKey, Code: CodeF2})
	case 'R':
		b.emit(Notification{Type: NoticeKey, Code: CodeF3})
	case 'S':
		b.emit(Notification{Type: NoticeKey, Code: CodeF4})
	}
}

// readPaste collects bracketed-paste text until the closing marker.
func (b *termiosBackend) readPaste(br *bufio.Reader) {
	var text strings.Builder
	for {
		c, err := br.ReadByte()
		if err != nil {
			return
		}
		if c == 0x1b {
			rest, err := br.Peek(5)
			if err == nil && string(rest) == "[201~" {
				br.Discard(5)
				b.emit(Notification{Type: NoticeText, Text: text.String()})
				return
			}
		}
		text.WriteByte(c)
	}
}

// decodeCSI maps a CSI sequence body (final byte included) to a raw key
// code and modifier bits. Unknown sequences yield zero.
func decodeCSI(s string) (int, uint8) {
	var mod uint8
	body, final := s[:len(s)-1], s[len(s)-1]
	// Forms like "1;5A" carry a modifier parameter.
	if idx := strings.IndexByte(body, ';'); idx >= 0 {
		if n, err := strconv.Atoi(body[idx+1:]); err == nil && n > 1 {
			m := n - 1
			if m&1 != 0 {
				mod |= RawModShift
			}
			if m&2 != 0 {
				mod |= RawModAlt
			}
			if m&4 != 0 {
				mod |= RawModCtrl
			}
			if m&8 != 0 {
				mod |= RawModMeta
			}
		}
		body = body[:idx]
	}
	if final == '~' {
		n, err := strconv.Atoi(body)
		if err != nil {
			return 0, 0
		}
		switch n {
		case 1, 7:
			return CodeHome, mod
		case 2:
			return CodeInsert, mod
		case 3:
			return CodeDelete, mod
		case 4, 8:
			return CodeEnd, mod
		case 5:
			return CodePageUp, mod
		case 6:
			return CodePageDown, mod
		case 11, 12, 13, 14:
			return CodeF1 + n - 11, mod
		case 15:
			return CodeF5, mod
		case 17, 18, 19, 20, 21:
			return CodeF6 + n - 17, mod
		case 23, 24:
			return CodeF11 + n - 23, mod
		}
		return 0, 0
	}
	switch final {
	case 'A':
		return CodeUp, mod
	case 'B':
		return CodeDown, mod
	case 'C':
		return CodeRight, mod
	case 'D':
		return CodeLeft, mod
	case 'H':
		return CodeHome, mod
	case 'F':
		return CodeEnd, mod
	case 'Z':
		return CodeTab, mod | RawModShift
	}
	return 0, 0
}

// decodeSGRMouse parses an SGR mouse report of the form "<b;x;yM" or
// "<b;x;ym" where M is press/motion and m is release.
func (b *termiosBackend) decodeSGRMouse(s string) {
	final := s[len(s)-1]
	if final != 'M' && final != 'm' {
		return
	}
	parts := strings.Split(strings.TrimPrefix(s[:len(s)-1], "<"), ";")
	if len(parts) != 3 {
		return
	}
	code, err1 := strconv.Atoi(parts[0])
	x, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}
	n := Notification{Type: NoticeMouse, X: x - 1, Y: y - 1}
	if code&4 != 0 {
		n.Mod |= RawModShift
	}
	if code&8 != 0 {
		n.Mod |= RawModAlt
	}
	if code&16 != 0 {
		n.Mod |= RawModCtrl
	}
	switch {
	case code&64 != 0:
		if code&1 == 0 {
			n.Button = RawButtonWheelUp
		} else {
			n.Button = RawButtonWheelDown
		}
		n.Action = RawMousePress
	case code&32 != 0:
		n.Action = RawMouseMotion
		n.Button = code & 3
	default:
		n.Button = code & 3
		if final == 'm' {
			n.Action = RawMouseRelease
		} else {
			n.Action = RawMousePress
		}
	}
	if n.Button == 3 {
		// Button code 3 is "no button" in X10 encoding.
		n.Button = RawButtonLeft
		if n.Action != RawMouseMotion {
			return
		}
	}
	b.emit(n)
}
