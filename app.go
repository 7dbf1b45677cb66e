package termrun

import (
	"pkt.systems/termrun/schema"
)

// Application is the surface the runtime drives. Update is the only
// required method; the optional capabilities below are detected once at
// construction.
type Application interface {
	// Update reacts to a message against the current model and returns the
	// next model plus any commands to execute. Returning an error leaves the
	// model unchanged.
	Update(msg schema.Message, model any) (any, []schema.Command, error)
}

// Initializer produces the initial model plus optional startup commands.
// Returned commands join the readiness-gated startup queue. Applications
// without Init start with an empty model.
type Initializer interface {
	Init(args schema.InitArgs) (any, []schema.Command, error)
}

// Viewer renders the model into a view tree. Applications without it are
// headless.
type Viewer interface {
	View(rc schema.RenderContext) schema.View
}

// Namer overrides the application name used in logs.
type Namer interface {
	Name() string
}

// capabilities caches the optional interface assertions for an application.
type capabilities struct {
	init Initializer
	view Viewer
	name Namer
}

func detectCapabilities(app Application) capabilities {
	caps := capabilities{}
	if v, ok := app.(Initializer); ok {
		caps.init = v
	}
	if v, ok := app.(Viewer); ok {
		caps.view = v
	}
	if v, ok := app.(Namer); ok {
		caps.name = v
	}
	return caps
}
