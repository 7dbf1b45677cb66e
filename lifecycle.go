package termrun

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"pkt.systems/pslog"
	"pkt.systems/termrun/internal/dispatch"
	"pkt.systems/termrun/internal/driver"
	"pkt.systems/termrun/internal/execx"
	"pkt.systems/termrun/internal/logx"
	"pkt.systems/termrun/internal/plugin"
	"pkt.systems/termrun/internal/prefs"
	"pkt.systems/termrun/internal/registry"
	"pkt.systems/termrun/schema"
)

// Runtime is the lifecycle manager. It starts the plugin manager, the
// dispatcher and the terminal driver, tracks their readiness, replays
// queued startup commands once both the dispatcher and the plugin manager
// are ready, and drives rendering.
type Runtime struct {
	app  Application
	caps capabilities
	opts Options
	log  pslog.Logger
	name string

	mailbox chan any
	doneCh  chan struct{}

	mu         sync.Mutex
	started    bool
	stopped    bool
	cancel     context.CancelFunc
	instanceID string
	plugins    plugin.Manager
	dispatcher *dispatch.Dispatcher
	drv        *driver.Driver
	executor   execx.Executor
	waitErr    error

	// actor-owned readiness state, touched only inside loop
	dispatcherReady bool
	pluginsReady    bool
	drained         bool
	queue           []schema.Command

	// overrides plugin manager construction in tests
	newPluginManager func(plugin.Options) plugin.Manager
}

type dispatcherReadyMsg struct{}

type pluginsReadyMsg struct{}

type renderRequestMsg struct{}

type forwardMsg struct{ value any }

type commandMsg struct{ cmd schema.Command }

type dispatcherStoppedMsg struct{ reason error }

type driverFailedMsg struct{ err error }

type stopMsg struct{}

// New constructs a runtime for app. Call Start to run it.
func New(app Application, opts Options) *Runtime {
	opts = normalizeOptions(opts)
	caps := detectCapabilities(app)
	name := opts.AppName
	if name == "" && caps.name != nil {
		name = caps.name.Name()
	}
	if name == "" {
		name = "app"
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Runtime{
		app:     app,
		caps:    caps,
		opts:    opts,
		log:     logx.WithComponent(logger, "runtime").With("app", name),
		name:    name,
		mailbox: make(chan any, 64),
		doneCh:  make(chan struct{}),
		queue:   append([]schema.Command(nil), opts.InitialCommands...),
	}
}

// Start brings the runtime up: registry instance, plugin manager, initial
// model, dispatcher, terminal driver. A driver start failure is logged but
// not fatal; everything else unwinds already-started components and returns
// the error.
func (r *Runtime) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return schema.ErrAlreadyStarted
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	instanceID := uuid.NewString()
	instance := registry.Acquire(instanceID)
	log := logx.WithInstance(r.log, instanceID)

	undo := func() {
		registry.Release(instanceID)
		cancel()
	}

	var plugins plugin.Manager
	if len(r.opts.Plugins) > 0 {
		wrapped := make([]plugin.Plugin, 0, len(r.opts.Plugins))
		for _, p := range r.opts.Plugins {
			wrapped = append(wrapped, p)
		}
		newManager := plugin.NewManager
		if r.newPluginManager != nil {
			newManager = r.newPluginManager
		}
		plugins = newManager(plugin.Options{
			Plugins:       wrapped,
			FilterTimeout: r.opts.PluginFilterTimeout,
			Logger:        log,
		})
		if err := plugins.Start(runCtx); err != nil {
			err = fmt.Errorf("start plugin manager: %w", err)
			undo()
			// The mailbox loop is not running yet, so close doneCh here
			// or a later Wait would block forever.
			r.teardown(err)
			return err
		}
	}

	model, initCommands := r.initialModel(log)
	r.queue = append(r.queue, initCommands...)

	var store dispatch.PrefStore
	if r.opts.StateDir != "" {
		s, err := prefs.NewStore(r.opts.StateDir, log)
		if err != nil {
			log.Warn("preferences unavailable", "dir", r.opts.StateDir, "err", err)
		} else {
			store = s
		}
	}

	executor := execx.New(runCtx, log)
	dispatcher := dispatch.New(dispatch.Config{
		Lifecycle:    r,
		Updater:      r.app,
		InitialModel: model,
		Width:        r.opts.Width,
		Height:       r.opts.Height,
		Debug:        r.opts.Debug,
		Plugins:      plugins,
		Registry:     instance,
		Executor:     executor,
		Prefs:        store,
		CallTimeout:  r.opts.CallTimeout,
		Logger:       log,
	})

	r.mu.Lock()
	r.instanceID = instanceID
	r.plugins = plugins
	r.dispatcher = dispatcher
	r.executor = executor
	r.log = log
	r.mu.Unlock()

	go r.loop(runCtx)

	if err := dispatcher.Start(runCtx); err != nil {
		if plugins != nil {
			_ = plugins.Stop(context.Background())
		}
		undo()
		return fmt.Errorf("start dispatcher: %w", err)
	}

	if driverEnabled(r.opts) {
		drv := driver.New(driver.Config{
			Sink:    dispatcher,
			Monitor: r,
			Logger:  log,
		})
		if err := drv.Start(runCtx); err != nil {
			log.Warn("terminal driver unavailable, continuing headless", "err", err)
		} else {
			r.mu.Lock()
			r.drv = drv
			r.mu.Unlock()
		}
	}

	log.Info("runtime started", "driver", driverEnabled(r.opts), "plugins", len(r.opts.Plugins))
	return nil
}

// initialModel runs the application's optional Init. A failed or malformed
// init logs a warning and falls back to an empty model.
func (r *Runtime) initialModel(log pslog.Logger) (any, []schema.Command) {
	if r.caps.init == nil {
		return struct{}{}, nil
	}
	model, commands, err := r.caps.init.Init(schema.InitArgs{
		Width:   r.opts.Width,
		Height:  r.opts.Height,
		Debug:   r.opts.Debug,
		Options: r.opts.Args,
	})
	if err != nil {
		log.Warn("application init failed, starting with empty model", "err", err)
		return struct{}{}, nil
	}
	if model == nil {
		log.Warn("application init returned no model, starting with empty model")
		return struct{}{}, commands
	}
	return model, commands
}

// Wait blocks until the runtime has terminated. It returns nil after a
// clean quit and the fatal driver error after exhausted driver recovery.
func (r *Runtime) Wait() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return schema.ErrNotStarted
	}
	<-r.doneCh
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitErr
}

// Done is closed once the runtime has terminated.
func (r *Runtime) Done() <-chan struct{} {
	return r.doneCh
}

// RunCommand hands a command to the runtime. Before both the dispatcher
// and the plugin manager are ready it is queued; afterwards it executes
// immediately.
func (r *Runtime) RunCommand(cmd schema.Command) {
	r.post(commandMsg{cmd: cmd})
}

// Forward delivers an arbitrary message to the runtime. Known runtime
// messages are handled directly; everything else is passed to the
// dispatcher as an info message while it is alive, otherwise dropped.
func (r *Runtime) Forward(msg any) {
	r.post(forwardMsg{value: msg})
}

// DispatcherReady implements the dispatcher's lifecycle hook.
func (r *Runtime) DispatcherReady() {
	r.post(dispatcherReadyMsg{})
}

// PluginsReady implements the dispatcher's lifecycle hook.
func (r *Runtime) PluginsReady() {
	r.post(pluginsReadyMsg{})
}

// RequestRender implements the dispatcher's lifecycle hook.
func (r *Runtime) RequestRender() {
	r.post(renderRequestMsg{})
}

// DispatcherStopped implements the dispatcher's lifecycle hook.
func (r *Runtime) DispatcherStopped(reason error) {
	r.post(dispatcherStoppedMsg{reason: reason})
}

// DriverFailed implements the driver's monitor hook.
func (r *Runtime) DriverFailed(err error) {
	r.post(driverFailedMsg{err: err})
}

// Stop terminates the runtime: dispatcher first, then the plugin manager
// with a bounded wait, then the registry instance. Idempotent.
func (r *Runtime) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-r.doneCh:
		return nil
	default:
	}
	select {
	case r.mailbox <- stopMsg{}:
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) post(msg any) {
	select {
	case r.mailbox <- msg:
	case <-r.doneCh:
	}
}

func (r *Runtime) loop(ctx context.Context) {
	var exitErr error
	defer func() {
		r.teardown(exitErr)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-r.mailbox:
			switch msg := raw.(type) {
			case dispatcherReadyMsg:
				r.dispatcherReady = true
				r.log.Debug("dispatcher ready")
				r.maybeDrain()
			case pluginsReadyMsg:
				r.pluginsReady = true
				r.log.Debug("plugins ready")
				r.maybeDrain()
			case commandMsg:
				if r.drained {
					r.execute(msg.cmd)
				} else {
					r.queue = append(r.queue, msg.cmd)
				}
			case renderRequestMsg:
				r.render()
			case forwardMsg:
				r.forward(msg.value)
			case dispatcherStoppedMsg:
				exitErr = msg.reason
				return
			case driverFailedMsg:
				r.log.Error("terminal driver failed", "err", msg.err)
				exitErr = msg.err
				return
			case stopMsg:
				return
			}
		}
	}
}

// maybeDrain executes the startup queue exactly once, after both readiness
// flags are set, and requests the first render.
func (r *Runtime) maybeDrain() {
	if r.drained {
		return
	}
	if !r.dispatcherReady {
		r.log.Debug("startup queue held", "waiting_for", "dispatcher")
		return
	}
	if !r.pluginsReady {
		r.log.Debug("startup queue held", "waiting_for", "plugins")
		return
	}
	r.drained = true
	queued := r.queue
	r.queue = nil
	if len(queued) > 0 {
		r.log.Info("replaying startup commands", "count", len(queued))
	}
	for _, cmd := range queued {
		r.execute(cmd)
	}
	r.render()
}

func (r *Runtime) execute(cmd schema.Command) {
	r.mu.Lock()
	executor := r.executor
	dispatcher := r.dispatcher
	instanceID := r.instanceID
	r.mu.Unlock()
	if executor == nil {
		return
	}
	// Resolve through the process directory so a released instance stops
	// serving named commands.
	instance, _ := registry.Lookup(instanceID)
	executor.Execute(cmd, execx.Context{
		Dispatcher: dispatcher,
		Registry:   instance,
		Lifecycle:  r,
	})
}

func (r *Runtime) forward(value any) {
	r.mu.Lock()
	dispatcher := r.dispatcher
	r.mu.Unlock()
	if dispatcher == nil {
		r.log.Debug("message dropped, no dispatcher", "msg", fmt.Sprintf("%T", value))
		return
	}
	select {
	case <-dispatcher.Done():
		r.log.Debug("message dropped, dispatcher stopped", "msg", fmt.Sprintf("%T", value))
	default:
		dispatcher.Info(value)
	}
}

// render fetches the current model and theme from the dispatcher and
// writes the flattened view to the output writer. A fetch failure skips
// the cycle.
func (r *Runtime) render() {
	if r.caps.view == nil {
		return
	}
	r.mu.Lock()
	dispatcher := r.dispatcher
	r.mu.Unlock()
	if dispatcher == nil {
		return
	}
	rc, err := dispatcher.RenderContext()
	if err != nil {
		r.log.Warn("render skipped", "err", err)
		return
	}
	view := r.caps.view.View(rc)
	if err := writeFrame(r.opts.Output, view, rc.Width); err != nil {
		r.log.Warn("render write failed", "err", err)
	}
}

func (r *Runtime) teardown(exitErr error) {
	r.mu.Lock()
	dispatcher := r.dispatcher
	plugins := r.plugins
	drv := r.drv
	instanceID := r.instanceID
	cancel := r.cancel
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.waitErr = exitErr
	r.mu.Unlock()

	ctx, cancelWait := context.WithTimeout(context.Background(), r.opts.CallTimeout*4)
	defer cancelWait()
	if drv != nil {
		_ = drv.Stop(ctx)
	}
	if dispatcher != nil {
		_ = dispatcher.Stop(ctx)
	}
	if plugins != nil {
		_ = plugins.Stop(ctx)
	}
	if instanceID != "" {
		registry.Release(instanceID)
	}
	if cancel != nil {
		cancel()
	}
	r.log.Info("runtime stopped", "err", exitErr)
	close(r.doneCh)
}

// Dispatch injects a normalized event as if it came from the terminal
// driver. Useful when the driver is disabled or for software-generated
// events.
func (r *Runtime) Dispatch(ev schema.Event) {
	r.mu.Lock()
	dispatcher := r.dispatcher
	r.mu.Unlock()
	if dispatcher == nil {
		return
	}
	dispatcher.Dispatch(ev)
}

// Subscribe registers for re-broadcast events on a topic. Topics are event
// kind names. The returned cancel function removes the subscription.
func (r *Runtime) Subscribe(topic string) (<-chan schema.Broadcast, func()) {
	r.mu.Lock()
	dispatcher := r.dispatcher
	r.mu.Unlock()
	if dispatcher == nil {
		return nil, func() {}
	}
	return dispatcher.Subscribe(topic)
}
