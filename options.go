package termrun

import (
	"io"
	"os"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/termrun/schema"
)

// Plugin filters events before they reach the application. Filters run in
// registration order; returning schema.ErrEventHalted vetoes the event.
type Plugin interface {
	Name() string
	Filter(ev schema.Event) (schema.Event, error)
}

// Options configures a Runtime. The zero value is usable.
type Options struct {
	// Width and Height seed the dimensions until the driver reports real
	// ones. Zero means 80x24.
	Width  int
	Height int
	// Debug is passed through to the application's InitArgs.
	Debug bool
	// TerminalDriver toggles the terminal driver. Nil means enabled.
	TerminalDriver *bool
	// InitialCommands are queued until both the dispatcher and the plugin
	// manager report ready, then executed once in order.
	InitialCommands []schema.Command
	// Plugins to register with the plugin manager.
	Plugins []Plugin
	// PluginFilterTimeout bounds a single filter pass. Zero means the
	// plugin manager default.
	PluginFilterTimeout time.Duration
	// AppName overrides the name used in logs. Empty falls back to the
	// application's Namer capability, then to "app".
	AppName string
	// Args is passed through to the application's InitArgs untouched.
	Args map[string]any
	// StateDir is where preferences (theme) persist. Empty disables
	// persistence.
	StateDir string
	// Output receives rendered frames. Nil means stdout.
	Output io.Writer
	// CallTimeout bounds synchronous dispatcher calls. Zero means 500ms.
	CallTimeout time.Duration
	Logger      pslog.Logger
}

const (
	defaultWidth       = 80
	defaultHeight      = 24
	defaultCallTimeout = 500 * time.Millisecond
)

func normalizeOptions(opts Options) Options {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return opts
}

func driverEnabled(opts Options) bool {
	if opts.TerminalDriver == nil {
		return true
	}
	return *opts.TerminalDriver
}
