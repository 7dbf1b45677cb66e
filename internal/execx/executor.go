// Package execx runs commands returned by the application update function.
// Execution is fire-and-forget from the dispatcher's perspective; results
// come back asynchronously as command-result messages.
package execx

import (
	"context"
	"fmt"

	"pkt.systems/pslog"
	"pkt.systems/termrun/internal/registry"
	"pkt.systems/termrun/schema"
)

// ResultSink receives command results. The event dispatcher implements it.
type ResultSink interface {
	CommandResult(msg schema.CommandResultMsg)
}

// Lifecycle is the lifecycle-manager handle exposed to commands.
type Lifecycle interface {
	// Forward delivers an arbitrary message to the lifecycle manager.
	Forward(msg any)
}

// Context is the execution context handed to every command.
type Context struct {
	Dispatcher ResultSink
	Registry   *registry.Instance
	Lifecycle  Lifecycle
}

// Executor executes commands.
type Executor interface {
	Execute(cmd schema.Command, execCtx Context)
}

type executor struct {
	ctx context.Context
	log pslog.Logger
}

// New constructs the default asynchronous executor. Commands inherit ctx,
// so canceling it aborts in-flight commands.
func New(ctx context.Context, logger pslog.Logger) Executor {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	return &executor{ctx: ctx, log: logger.With("component", "executor")}
}

func (e *executor) Execute(cmd schema.Command, execCtx Context) {
	go func() {
		msg, err := e.run(cmd, execCtx)
		if err != nil {
			e.log.Warn("command failed", "command", cmd.Name, "err", err)
		}
		if execCtx.Dispatcher == nil {
			return
		}
		if msg == nil && err == nil {
			return
		}
		execCtx.Dispatcher.CommandResult(schema.CommandResultMsg{
			Command: cmd.Name,
			Value:   msg,
			Err:     err,
		})
	}()
}

func (e *executor) run(cmd schema.Command, execCtx Context) (msg schema.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("command %s panicked: %v", cmd.Name, r)
		}
	}()
	fn := cmd.Run
	if fn == nil {
		if execCtx.Registry == nil {
			return nil, fmt.Errorf("%w: %s", schema.ErrUnknownCommand, cmd.Name)
		}
		resolved, ok := execCtx.Registry.Resolve(cmd.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", schema.ErrUnknownCommand, cmd.Name)
		}
		fn = resolved
	}
	return fn(e.ctx)
}
