package schema

import "errors"

var (
	// ErrEventHalted indicates a plugin vetoed an event during filtering.
	ErrEventHalted = errors.New("event halted by plugin")
	// ErrDispatcherStopped indicates the dispatcher is no longer running.
	ErrDispatcherStopped = errors.New("dispatcher stopped")
	// ErrDispatcherBusy indicates a synchronous dispatcher call timed out.
	ErrDispatcherBusy = errors.New("dispatcher call timed out")
	// ErrPluginUnavailable indicates the plugin manager did not answer a
	// filter call in time.
	ErrPluginUnavailable = errors.New("plugin manager unavailable")
	// ErrBackendUnavailable indicates the terminal backend could not be
	// initialized and terminal features are disabled.
	ErrBackendUnavailable = errors.New("terminal backend unavailable")
	// ErrDriverStopped indicates the terminal driver has terminated.
	ErrDriverStopped = errors.New("terminal driver stopped")
	// ErrNotStarted indicates the runtime has not been started.
	ErrNotStarted = errors.New("runtime not started")
	// ErrAlreadyStarted indicates the runtime was started twice.
	ErrAlreadyStarted = errors.New("runtime already started")
	// ErrUnknownCommand indicates a named command was not found in the
	// command registry.
	ErrUnknownCommand = errors.New("unknown command")
)
