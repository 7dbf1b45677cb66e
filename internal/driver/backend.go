package driver

// NoticeType classifies a raw backend notification.
type NoticeType int

const (
	// NoticeKey is a raw key notification.
	NoticeKey NoticeType = iota
	// NoticeMouse is a raw mouse notification.
	NoticeMouse
	// NoticeText is a raw text chunk (e.g. a bracketed paste).
	NoticeText
	// NoticeResize is a raw resize notification.
	NoticeResize
	// NoticeError reports a runtime backend failure.
	NoticeError
	// NoticeAux is an auxiliary notification the runtime does not need.
	NoticeAux
)

// Modifier bits in Notification.Mod.
const (
	RawModShift uint8 = 1 << iota
	RawModCtrl
	RawModAlt
	RawModMeta
)

// Raw key codes for non-printable keys. Printable keys carry Ch instead.
const (
	CodeEnter = 0x0d
	CodeTab   = 0x09
	CodeEsc   = 0x1b
	CodeSpace = 0x20
	CodeBack  = 0x7f

	CodeUp = 0x100 + iota
	CodeDown
	CodeLeft
	CodeRight
	CodeHome
	CodeEnd
	CodePageUp
	CodePageDown
	CodeInsert
	CodeDelete
	CodeF1
	CodeF2
	CodeF3
	CodeF4
	CodeF5
	CodeF6
	CodeF7
	CodeF8
	CodeF9
	CodeF10
	CodeF11
	CodeF12
)

// Raw mouse button codes.
const (
	RawButtonLeft = iota
	RawButtonMiddle
	RawButtonRight
	RawButtonWheelUp
	RawButtonWheelDown
)

// Raw mouse actions.
const (
	RawMousePress = iota
	RawMouseRelease
	RawMouseMotion
)

// Notification is the backend-native shape the driver normalizes into
// events. Backends may emit notification types the runtime does not know;
// those are silently ignored.
type Notification struct {
	Type   NoticeType
	Code   int
	Ch     rune
	Mod    uint8
	X      int
	Y      int
	Button int
	Action int
	Text   string
	Width  int
	Height int
	Err    error
}

// Backend is the raw terminal-control implementation behind the driver.
// Exactly one implementation is compiled in, selected by the portable build
// tag: a termios backend for real terminals, or a pure-software fallback.
type Backend interface {
	// Init puts the terminal into the mode the backend needs and starts
	// the notification stream.
	Init() error
	// Shutdown restores the terminal. Safe to call more than once.
	Shutdown()
	Width() int
	Height() int
	// Events returns the raw notification stream. Valid after Init.
	Events() <-chan Notification
}

// NewBackend returns the build-selected platform backend.
func NewBackend() Backend {
	return newPlatformBackend()
}
