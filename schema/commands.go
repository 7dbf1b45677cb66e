package schema

import "context"

// CommandFunc performs the side effect a command describes. The returned
// message, if any, is delivered back to the dispatcher asynchronously.
type CommandFunc func(ctx context.Context) (Message, error)

// Command is a declarative description of an asynchronous side effect
// returned by the application update function. A command with a nil Run is
// resolved by Name against the command registry at execution time.
type Command struct {
	Name string
	Run  CommandFunc
}

// InitArgs is handed to the application's optional Init function.
type InitArgs struct {
	Width  int
	Height int
	Debug  bool
	// Options carries arbitrary pass-through application options.
	Options map[string]any
}

// RenderContext is the dispatcher state snapshot fetched per render cycle.
type RenderContext struct {
	Model  any
	Theme  ThemeName
	Width  int
	Height int
}

// Themed is the optional capability a model implements to report its theme
// identifier. The dispatcher syncs changed identifiers to the preferences
// store.
type Themed interface {
	ThemeID() ThemeName
}
