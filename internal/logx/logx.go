// Package logx carries the logging field conventions shared by the runtime
// components.
package logx

import (
	"context"

	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithComponent annotates the logger with a runtime component name.
func WithComponent(log pslog.Logger, component string) pslog.Logger {
	if component == "" {
		return log
	}
	return log.With("component", component)
}

// WithInstance annotates the logger with the application instance id.
func WithInstance(log pslog.Logger, instanceID string) pslog.Logger {
	if instanceID == "" {
		return log
	}
	return log.With("instance", instanceID)
}

// ContextWithInstanceLogger attaches an instance-annotated logger to the
// context so nested components pick it up through Ctx.
func ContextWithInstanceLogger(ctx context.Context, log pslog.Logger, instanceID string) context.Context {
	return pslog.ContextWithLogger(ctx, WithInstance(log, instanceID))
}
