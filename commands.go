package termrun

import (
	"context"

	"pkt.systems/termrun/schema"
)

// Quit returns a command whose result asks the runtime to shut down.
func Quit() schema.Command {
	return schema.Command{
		Name: "quit",
		Run: func(ctx context.Context) (schema.Message, error) {
			return schema.QuitMsg{}, nil
		},
	}
}

// Emit returns a command that delivers a fixed message back to the update
// loop. Handy for startup commands.
func Emit(name string, msg schema.Message) schema.Command {
	return schema.Command{
		Name: name,
		Run: func(ctx context.Context) (schema.Message, error) {
			return msg, nil
		},
	}
}
