package schema

// Message is an application-level message produced by the dispatcher from a
// normalized event, a command result, or an external info payload, and passed
// to the application update function.
type Message interface {
	isMessage()
}

// KeyPressMsg is delivered for surviving key events.
type KeyPressMsg struct {
	Key  Key
	Rune rune
	Mods Mod
}

// MouseMsg is delivered for surviving mouse events.
type MouseMsg struct {
	Action MouseAction
	X      int
	Y      int
	Button MouseButton
}

// TextInputMsg is delivered for surviving text events.
type TextInputMsg struct {
	Text string
}

// EventMsg wraps any other surviving event verbatim.
type EventMsg struct {
	Event Event
}

// InfoMsg wraps arbitrary external messages routed through the update loop
// without plugin filtering.
type InfoMsg struct {
	Value any
}

// QuitMsg asks the runtime to shut down. Returned by the Quit command.
type QuitMsg struct{}

// CommandResultMsg wraps the result a command executor delivered back.
type CommandResultMsg struct {
	Command string
	Value   Message
	Err     error
}

func (KeyPressMsg) isMessage()      {}
func (MouseMsg) isMessage()         {}
func (TextInputMsg) isMessage()     {}
func (EventMsg) isMessage()         {}
func (InfoMsg) isMessage()          {}
func (QuitMsg) isMessage()          {}
func (CommandResultMsg) isMessage() {}

// Broadcast is one published payload on a pub/sub topic. Successful event
// dispatches are re-broadcast on the topic named after the event kind.
type Broadcast struct {
	Topic   string
	Payload any
}
