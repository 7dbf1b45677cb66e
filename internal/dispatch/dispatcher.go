// Package dispatch implements the event dispatcher: the actor that owns the
// application model, runs the update loop, executes returned commands, and
// re-broadcasts events on the pub/sub exchange.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/termrun/internal/execx"
	"pkt.systems/termrun/internal/plugin"
	"pkt.systems/termrun/internal/pubsub"
	"pkt.systems/termrun/internal/registry"
	"pkt.systems/termrun/schema"
)

// Updater is the application surface the dispatcher needs: the required
// update function.
type Updater interface {
	Update(msg schema.Message, model any) (any, []schema.Command, error)
}

// Lifecycle receives readiness and render notifications from the dispatcher.
type Lifecycle interface {
	DispatcherReady()
	PluginsReady()
	RequestRender()
	DispatcherStopped(reason error)
}

// PrefStore is the preferences surface used for theme sync.
type PrefStore interface {
	ThemeID() schema.ThemeName
	SetTheme(name schema.ThemeName) error
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Lifecycle    Lifecycle
	Updater      Updater
	InitialModel any
	Width        int
	Height       int
	Debug        bool
	Plugins      plugin.Manager
	Registry     *registry.Instance
	Executor     execx.Executor
	Exchange     *pubsub.Exchange
	Prefs        PrefStore
	// CallTimeout bounds synchronous calls. Zero means 500ms.
	CallTimeout time.Duration
	Logger      pslog.Logger
}

// Dispatcher owns the application model. All state mutation happens on the
// mailbox goroutine; exported methods only pass messages.
type Dispatcher struct {
	cfg      Config
	log      pslog.Logger
	timeout  time.Duration
	exchange *pubsub.Exchange

	mailbox chan any
	doneCh  chan struct{}

	// actor-owned state, touched only inside loop
	model   any
	width   int
	height  int
	focused bool
	theme   schema.ThemeName
}

type eventEnvelope struct{ ev schema.Event }

type infoEnvelope struct{ value any }

type resultEnvelope struct{ msg schema.CommandResultMsg }

type modelRequest struct{ reply chan any }

type renderCtxRequest struct{ reply chan schema.RenderContext }

type stopRequest struct{}

// New constructs a dispatcher. Call Start to run it.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	exchange := cfg.Exchange
	if exchange == nil {
		exchange = pubsub.New(logger)
	}
	return &Dispatcher{
		cfg:      cfg,
		log:      logger.With("component", "dispatcher"),
		timeout:  timeout,
		exchange: exchange,
		mailbox:  make(chan any, 64),
		doneCh:   make(chan struct{}),
		model:    cfg.InitialModel,
		width:    cfg.Width,
		height:   cfg.Height,
	}
}

// Start reads the theme from preferences, launches the mailbox loop, and
// signals readiness for the dispatcher and, pass-through, for the plugin
// manager.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.theme = schema.DefaultTheme
	if d.cfg.Prefs != nil {
		d.theme = d.cfg.Prefs.ThemeID()
	}
	go d.loop(ctx)
	if d.cfg.Lifecycle != nil {
		d.cfg.Lifecycle.DispatcherReady()
		if d.cfg.Plugins == nil {
			d.cfg.Lifecycle.PluginsReady()
		} else {
			ready := d.cfg.Plugins.Ready()
			go func() {
				select {
				case <-ready:
					d.cfg.Lifecycle.PluginsReady()
				case <-d.doneCh:
				case <-ctx.Done():
				}
			}()
		}
	}
	d.log.Debug("dispatcher started", "width", d.width, "height", d.height, "theme", d.theme)
	return nil
}

// Done is closed once the dispatcher has terminated.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.doneCh
}

func (d *Dispatcher) loop(ctx context.Context) {
	var reason error
	defer func() {
		close(d.doneCh)
		if d.cfg.Lifecycle != nil {
			d.cfg.Lifecycle.DispatcherStopped(reason)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			reason = ctx.Err()
			return
		case raw := <-d.mailbox:
			switch msg := raw.(type) {
			case eventEnvelope:
				if stop := d.handleEvent(ctx, msg.ev); stop {
					return
				}
			case infoEnvelope:
				d.runUpdate(schema.InfoMsg{Value: msg.value})
			case resultEnvelope:
				if _, quit := msg.msg.Value.(schema.QuitMsg); quit {
					d.log.Info("dispatcher quitting", "command", msg.msg.Command)
					return
				}
				d.runUpdate(msg.msg)
			case modelRequest:
				msg.reply <- d.model
			case renderCtxRequest:
				msg.reply <- schema.RenderContext{Model: d.model, Theme: d.theme, Width: d.width, Height: d.height}
			case stopRequest:
				return
			default:
				d.log.Warn("dispatcher dropped unknown mailbox message")
			}
		}
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev schema.Event) bool {
	if ev.System() {
		switch ev.Kind {
		case schema.EventResize:
			d.width = ev.Resize.Width
			d.height = ev.Resize.Height
			d.log.Debug("dispatcher resized", "width", d.width, "height", d.height)
		case schema.EventFocus:
			d.focused = ev.Focus
		case schema.EventError:
			d.log.Error("dispatcher received error event", "err", ev.Err)
		case schema.EventQuit:
			d.log.Info("dispatcher quitting")
			return true
		case schema.EventSystem:
			d.log.Trace("dispatcher ignored system event", "data", ev.Data)
		}
		return false
	}

	filtered, ok := d.filterEvent(ctx, ev)
	if !ok {
		return false
	}
	if d.runUpdate(eventMessage(filtered)) {
		d.exchange.Publish(string(ev.Kind), ev.Payload())
	}
	return false
}

func (d *Dispatcher) filterEvent(ctx context.Context, ev schema.Event) (schema.Event, bool) {
	if d.cfg.Plugins == nil {
		return ev, true
	}
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	filtered, err := d.cfg.Plugins.FilterEvent(callCtx, ev)
	if err != nil {
		if errors.Is(err, schema.ErrEventHalted) {
			d.log.Debug("event vetoed by plugin", "kind", ev.Kind)
		} else {
			d.log.Warn("event filter failed, dropping event", "kind", ev.Kind, "err", err)
		}
		return schema.Event{}, false
	}
	return filtered, true
}

func eventMessage(ev schema.Event) schema.Message {
	switch ev.Kind {
	case schema.EventKey:
		return schema.KeyPressMsg{Key: ev.Key.Key, Rune: ev.Key.Rune, Mods: ev.Key.Mods}
	case schema.EventMouse:
		return schema.MouseMsg{Action: ev.Mouse.Action, X: ev.Mouse.X, Y: ev.Mouse.Y, Button: ev.Mouse.Button}
	case schema.EventText:
		return schema.TextInputMsg{Text: ev.Text}
	default:
		return schema.EventMsg{Event: ev}
	}
}

// runUpdate invokes the application update function and reports whether the
// model was replaced. Dispatch failures never escape this method.
func (d *Dispatcher) runUpdate(msg schema.Message) bool {
	if d.cfg.Updater == nil {
		return false
	}
	newModel, commands, err := d.safeUpdate(msg)
	if err != nil {
		d.log.Warn("update failed, model unchanged", "msg", msgName(msg), "err", err)
		return false
	}
	if newModel == nil {
		d.log.Warn("update returned no model, model unchanged", "msg", msgName(msg))
		return false
	}
	d.model = newModel
	d.syncTheme(newModel)
	d.executeCommands(commands)
	if d.cfg.Lifecycle != nil {
		d.cfg.Lifecycle.RequestRender()
	}
	return true
}

func (d *Dispatcher) safeUpdate(msg schema.Message) (model any, commands []schema.Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			commands = nil
			err = errPanic{value: r}
		}
	}()
	return d.cfg.Updater.Update(msg, d.model)
}

type errPanic struct{ value any }

func (e errPanic) Error() string { return fmt.Sprintf("update panicked: %v", e.value) }

func (d *Dispatcher) syncTheme(model any) {
	themed, ok := model.(schema.Themed)
	if !ok {
		return
	}
	id := themed.ThemeID()
	if id == "" || id == d.theme {
		return
	}
	if d.cfg.Prefs != nil {
		if err := d.cfg.Prefs.SetTheme(id); err != nil {
			d.log.Warn("theme preference write failed", "theme", id, "err", err)
		}
	}
	d.theme = id
	d.log.Debug("theme changed", "theme", id)
}

func (d *Dispatcher) executeCommands(commands []schema.Command) {
	if d.cfg.Executor == nil || len(commands) == 0 {
		return
	}
	execCtx := execx.Context{
		Dispatcher: d,
		Registry:   d.cfg.Registry,
	}
	if fwd, ok := d.cfg.Lifecycle.(execx.Lifecycle); ok {
		execCtx.Lifecycle = fwd
	}
	for _, cmd := range commands {
		d.cfg.Executor.Execute(cmd, execCtx)
	}
}

// Dispatch delivers a normalized event asynchronously.
func (d *Dispatcher) Dispatch(ev schema.Event) {
	d.post(eventEnvelope{ev: ev})
}

// Info routes an arbitrary external message through the update loop without
// plugin filtering.
func (d *Dispatcher) Info(value any) {
	d.post(infoEnvelope{value: value})
}

// CommandResult delivers a command result through the update loop. It
// satisfies execx.ResultSink.
func (d *Dispatcher) CommandResult(msg schema.CommandResultMsg) {
	d.post(resultEnvelope{msg: msg})
}

func (d *Dispatcher) post(msg any) {
	select {
	case d.mailbox <- msg:
	case <-d.doneCh:
	}
}

// Model returns the current model without side effects.
func (d *Dispatcher) Model() (any, error) {
	req := modelRequest{reply: make(chan any, 1)}
	if err := d.call(req); err != nil {
		return nil, err
	}
	select {
	case model := <-req.reply:
		return model, nil
	case <-d.doneCh:
		return nil, schema.ErrDispatcherStopped
	case <-time.After(d.timeout):
		return nil, schema.ErrDispatcherBusy
	}
}

// RenderContext returns the current model and theme without side effects.
func (d *Dispatcher) RenderContext() (schema.RenderContext, error) {
	req := renderCtxRequest{reply: make(chan schema.RenderContext, 1)}
	if err := d.call(req); err != nil {
		return schema.RenderContext{}, err
	}
	select {
	case rc := <-req.reply:
		return rc, nil
	case <-d.doneCh:
		return schema.RenderContext{}, schema.ErrDispatcherStopped
	case <-time.After(d.timeout):
		return schema.RenderContext{}, schema.ErrDispatcherBusy
	}
}

func (d *Dispatcher) call(req any) error {
	select {
	case d.mailbox <- req:
		return nil
	case <-d.doneCh:
		return schema.ErrDispatcherStopped
	case <-time.After(d.timeout):
		return schema.ErrDispatcherBusy
	}
}

// Subscribe registers a subscriber for a broadcast topic.
func (d *Dispatcher) Subscribe(topic string) (<-chan pubsub.Broadcast, func()) {
	return d.exchange.Subscribe(topic)
}

// Broadcast publishes a payload to all current subscribers of a topic.
// Best-effort; absence of subscribers is not an error.
func (d *Dispatcher) Broadcast(topic string, payload any) {
	d.exchange.Publish(topic, payload)
}

// Stop terminates the dispatcher, waiting up to the context deadline.
// Stopping an already-stopped dispatcher is not an error.
func (d *Dispatcher) Stop(ctx context.Context) error {
	select {
	case <-d.doneCh:
		return nil
	default:
	}
	select {
	case d.mailbox <- stopRequest{}:
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func msgName(msg schema.Message) string {
	switch msg.(type) {
	case schema.KeyPressMsg:
		return "key_press"
	case schema.MouseMsg:
		return "mouse_event"
	case schema.TextInputMsg:
		return "text_input"
	case schema.InfoMsg:
		return "info"
	case schema.CommandResultMsg:
		return "command_result"
	default:
		return "event"
	}
}
