package schema

import "fmt"

// EventKind classifies a normalized input or system notification.
type EventKind string

const (
	// EventKey is a decoded keyboard event.
	EventKey EventKind = "key"
	// EventMouse is a decoded mouse event.
	EventMouse EventKind = "mouse"
	// EventText carries free-form text input (e.g. a paste).
	EventText EventKind = "text"
	// EventResize reports new terminal dimensions.
	EventResize EventKind = "resize"
	// EventFocus reports terminal focus gained or lost.
	EventFocus EventKind = "focus"
	// EventQuit requests runtime shutdown.
	EventQuit EventKind = "quit"
	// EventError surfaces a runtime-level error.
	EventError EventKind = "error"
	// EventSystem carries an uninterpreted system notification.
	EventSystem EventKind = "system"
)

// Mod is a bitmask of key modifiers.
type Mod uint8

const (
	// ModShift marks the shift modifier.
	ModShift Mod = 1 << iota
	// ModCtrl marks the control modifier.
	ModCtrl
	// ModAlt marks the alt modifier.
	ModAlt
	// ModMeta marks the meta modifier.
	ModMeta
)

// Has reports whether all modifiers in mask are set.
func (m Mod) Has(mask Mod) bool {
	return m&mask == mask
}

func (m Mod) String() string {
	if m == 0 {
		return "none"
	}
	out := ""
	add := func(name string) {
		if out != "" {
			out += "+"
		}
		out += name
	}
	if m.Has(ModShift) {
		add("shift")
	}
	if m.Has(ModCtrl) {
		add("ctrl")
	}
	if m.Has(ModAlt) {
		add("alt")
	}
	if m.Has(ModMeta) {
		add("meta")
	}
	return out
}

// Key identifies a named key. Printable keys use KeyRune and carry the
// decoded character alongside.
type Key string

const (
	KeyRune      Key = "rune"
	KeyEnter     Key = "enter"
	KeyTab       Key = "tab"
	KeyBackspace Key = "backspace"
	KeyDelete    Key = "delete"
	KeyEscape    Key = "escape"
	KeySpace     Key = "space"
	KeyUp        Key = "up"
	KeyDown      Key = "down"
	KeyLeft      Key = "left"
	KeyRight     Key = "right"
	KeyHome      Key = "home"
	KeyEnd       Key = "end"
	KeyPageUp    Key = "pgup"
	KeyPageDown  Key = "pgdown"
	KeyInsert    Key = "insert"
	KeyF1        Key = "f1"
	KeyF2        Key = "f2"
	KeyF3        Key = "f3"
	KeyF4        Key = "f4"
	KeyF5        Key = "f5"
	KeyF6        Key = "f6"
	KeyF7        Key = "f7"
	KeyF8        Key = "f8"
	KeyF9        Key = "f9"
	KeyF10       Key = "f10"
	KeyF11       Key = "f11"
	KeyF12       Key = "f12"
	// KeyUnknown marks a backend key code the runtime does not recognize.
	KeyUnknown Key = "unknown"
)

// MouseButton identifies a named mouse button.
type MouseButton string

const (
	ButtonLeft      MouseButton = "left"
	ButtonMiddle    MouseButton = "middle"
	ButtonRight     MouseButton = "right"
	ButtonWheelUp   MouseButton = "wheel-up"
	ButtonWheelDown MouseButton = "wheel-down"
	// ButtonUnknown marks a backend button code the runtime does not recognize.
	ButtonUnknown MouseButton = "unknown"
)

// MouseAction describes what the mouse did.
type MouseAction string

const (
	MousePress   MouseAction = "press"
	MouseRelease MouseAction = "release"
	MouseMotion  MouseAction = "motion"
)

// KeyEvent is the payload of an EventKey event.
type KeyEvent struct {
	Key  Key
	Rune rune
	Mods Mod
}

func (k KeyEvent) String() string {
	if k.Key == KeyRune {
		return fmt.Sprintf("%q/%s", k.Rune, k.Mods)
	}
	return fmt.Sprintf("%s/%s", k.Key, k.Mods)
}

// MouseEvent is the payload of an EventMouse event.
type MouseEvent struct {
	Action MouseAction
	X      int
	Y      int
	Button MouseButton
}

// ResizeEvent is the payload of an EventResize event.
type ResizeEvent struct {
	Width  int
	Height int
}

// Event is a normalized notification produced by the terminal driver and
// consumed by the event dispatcher. Immutable once constructed; exactly one
// payload field matching Kind is set.
type Event struct {
	Kind   EventKind
	Key    KeyEvent
	Mouse  MouseEvent
	Text   string
	Resize ResizeEvent
	Focus  bool
	Err    error
	Data   any
}

// Payload returns the kind-specific payload for broadcast purposes.
func (e Event) Payload() any {
	switch e.Kind {
	case EventKey:
		return e.Key
	case EventMouse:
		return e.Mouse
	case EventText:
		return e.Text
	case EventResize:
		return e.Resize
	case EventFocus:
		return e.Focus
	case EventError:
		return e.Err
	default:
		return e.Data
	}
}

// System reports whether the event is handled by the dispatcher itself
// rather than routed through the application update function.
func (e Event) System() bool {
	switch e.Kind {
	case EventResize, EventFocus, EventQuit, EventError, EventSystem:
		return true
	default:
		return false
	}
}
