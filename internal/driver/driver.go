// Package driver owns the raw-I/O terminal backend. It normalizes
// backend-native notifications into events, forwards them to the event
// dispatcher, and manages backend initialization retry and runtime
// recovery.
package driver

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/termrun/schema"
)

// EventSink receives normalized events. The event dispatcher implements it.
type EventSink interface {
	Dispatch(ev schema.Event)
}

// Monitor is notified when the driver terminates after exhausted recovery.
type Monitor interface {
	DriverFailed(err error)
}

type backendState int

const (
	backendUninitialized backendState = iota
	backendInitialized
	backendFailed
)

// DefaultMaxInitRetries bounds backend init attempts.
const DefaultMaxInitRetries = 3

// Config wires the driver's collaborators.
type Config struct {
	// Backend overrides the build-selected backend. Nil means NewBackend().
	Backend Backend
	// Sink may be nil and late-bound through RegisterDispatcher.
	Sink    EventSink
	Monitor Monitor
	// Interactive forces the real-terminal decision; nil probes stdin.
	Interactive *bool
	// MaxInitRetries bounds init attempts; zero means DefaultMaxInitRetries.
	MaxInitRetries int
	// RetryDelay spaces init attempts; zero means 500ms.
	RetryDelay time.Duration
	Logger     pslog.Logger
}

type registerSink struct{ sink EventSink }

type retryInit struct{}

type stopDriver struct{}

// Driver is the terminal driver actor.
type Driver struct {
	cfg     Config
	log     pslog.Logger
	backend Backend

	mailbox chan any
	doneCh  chan struct{}

	// actor-owned state, touched only inside loop
	sink     EventSink
	state    backendState
	retries  int
	disabled bool
	width    int
	height   int
	events   <-chan Notification
}

// New constructs a driver. Call Start to run it.
func New(cfg Config) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	backend := cfg.Backend
	if backend == nil {
		backend = NewBackend()
	}
	if cfg.MaxInitRetries <= 0 {
		cfg.MaxInitRetries = DefaultMaxInitRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Driver{
		cfg:     cfg,
		log:     logger.With("component", "driver"),
		backend: backend,
		mailbox: make(chan any, 16),
		doneCh:  make(chan struct{}),
		sink:    cfg.Sink,
	}
}

// Start determines the baseline terminal size, initializes the backend when
// attached to a real terminal, and launches the mailbox loop. Running
// without a real terminal is a documented degraded mode, not an error.
func (d *Driver) Start(ctx context.Context) error {
	d.width, d.height = ttySize()
	interactive := isInteractive()
	if d.cfg.Interactive != nil {
		interactive = *d.cfg.Interactive
	}
	if !interactive {
		d.disabled = true
		d.log.Info("no interactive terminal, terminal features disabled", "width", d.width, "height", d.height)
	} else if !d.tryInit() {
		d.scheduleRetry()
	}
	if d.sink != nil {
		d.sendInitialResize()
	}
	go d.loop(ctx)
	return nil
}

// Done is closed once the driver has terminated.
func (d *Driver) Done() <-chan struct{} {
	return d.doneCh
}

// RegisterDispatcher late-binds the event sink and immediately emits the
// initial resize event.
func (d *Driver) RegisterDispatcher(sink EventSink) {
	d.post(registerSink{sink: sink})
}

// Stop terminates the driver. Idempotent.
func (d *Driver) Stop(ctx context.Context) error {
	select {
	case <-d.doneCh:
		return nil
	default:
	}
	select {
	case d.mailbox <- stopDriver{}:
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

func (d *Driver) post(msg any) {
	select {
	case d.mailbox <- msg:
	case <-d.doneCh:
	}
}

func (d *Driver) loop(ctx context.Context) {
	defer func() {
		if d.state == backendInitialized {
			d.backend.Shutdown()
		}
		close(d.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-d.mailbox:
			switch msg := raw.(type) {
			case registerSink:
				d.sink = msg.sink
				d.sendInitialResize()
			case retryInit:
				d.handleRetry()
			case stopDriver:
				return
			}
		case notice, ok := <-d.events:
			if !ok {
				d.events = nil
				continue
			}
			if notice.Type == NoticeError {
				if fatal := d.handleBackendError(notice.Err); fatal {
					return
				}
				continue
			}
			d.forward(notice)
		}
	}
}

// tryInit attempts backend initialization. The retry counter only moves
// while the backend is not initialized.
func (d *Driver) tryInit() bool {
	err := d.backend.Init()
	if err != nil {
		d.retries++
		d.state = backendFailed
		d.log.Warn("backend init failed", "attempt", d.retries, "err", err)
		return false
	}
	d.state = backendInitialized
	d.events = d.backend.Events()
	if w, h := d.backend.Width(), d.backend.Height(); w > 0 && h > 0 {
		d.width, d.height = w, h
	}
	d.log.Info("backend initialized", "width", d.width, "height", d.height)
	return true
}

func (d *Driver) scheduleRetry() {
	if d.retries >= d.cfg.MaxInitRetries {
		d.disabled = true
		d.log.Warn("backend init retries exhausted, terminal features disabled", "attempts", d.retries)
		return
	}
	// The timer becomes a no-op once the driver is gone: post drops the
	// message when doneCh is closed.
	time.AfterFunc(d.cfg.RetryDelay, func() {
		d.post(retryInit{})
	})
}

func (d *Driver) handleRetry() {
	if d.state == backendInitialized || d.disabled {
		return
	}
	if !d.tryInit() {
		d.scheduleRetry()
		return
	}
	d.sendInitialResize()
}

// handleBackendError runs the bounded recovery sequence for runtime backend
// failures: shutdown plus one re-init. Recovery failure is fatal with the
// original error.
func (d *Driver) handleBackendError(cause error) bool {
	if d.state != backendInitialized {
		d.log.Error("backend error outside initialized state", "err", cause)
		d.fail(cause)
		return true
	}
	d.log.Warn("backend runtime error, attempting recovery", "err", cause)
	d.backend.Shutdown()
	d.state = backendUninitialized
	if err := d.backend.Init(); err != nil {
		d.log.Error("backend recovery failed", "err", err, "cause", cause)
		d.state = backendFailed
		d.fail(cause)
		return true
	}
	d.state = backendInitialized
	d.events = d.backend.Events()
	d.log.Info("backend recovered")
	d.sendInitialResize()
	return false
}

func (d *Driver) fail(cause error) {
	if d.cfg.Monitor != nil {
		d.cfg.Monitor.DriverFailed(cause)
	}
}

func (d *Driver) sendInitialResize() {
	if d.sink == nil {
		return
	}
	width, height := d.width, d.height
	if d.state == backendInitialized {
		if w, h := d.backend.Width(), d.backend.Height(); w > 0 && h > 0 {
			width, height = w, h
		}
	}
	d.sink.Dispatch(schema.Event{
		Kind:   schema.EventResize,
		Resize: schema.ResizeEvent{Width: width, Height: height},
	})
}

func (d *Driver) forward(notice Notification) {
	if d.sink == nil {
		return
	}
	ev, ok := translate(notice)
	if !ok {
		return
	}
	if ev.Kind == schema.EventResize {
		d.width, d.height = ev.Resize.Width, ev.Resize.Height
	}
	d.sink.Dispatch(ev)
}

var keyCodes = map[int]schema.Key{
	CodeEnter:    schema.KeyEnter,
	CodeTab:      schema.KeyTab,
	CodeEsc:      schema.KeyEscape,
	CodeSpace:    schema.KeySpace,
	CodeBack:     schema.KeyBackspace,
	CodeUp:       schema.KeyUp,
	CodeDown:     schema.KeyDown,
	CodeLeft:     schema.KeyLeft,
	CodeRight:    schema.KeyRight,
	CodeHome:     schema.KeyHome,
	CodeEnd:      schema.KeyEnd,
	CodePageUp:   schema.KeyPageUp,
	CodePageDown: schema.KeyPageDown,
	CodeInsert:   schema.KeyInsert,
	CodeDelete:   schema.KeyDelete,
	CodeF1:       schema.KeyF1,
	CodeF2:       schema.KeyF2,
	CodeF3:       schema.KeyF3,
	CodeF4:       schema.KeyF4,
	CodeF5:       schema.KeyF5,
	CodeF6:       schema.KeyF6,
	CodeF7:       schema.KeyF7,
	CodeF8:       schema.KeyF8,
	CodeF9:       schema.KeyF9,
	CodeF10:      schema.KeyF10,
	CodeF11:      schema.KeyF11,
	CodeF12:      schema.KeyF12,
}

var buttonCodes = map[int]schema.MouseButton{
	RawButtonLeft:      schema.ButtonLeft,
	RawButtonMiddle:    schema.ButtonMiddle,
	RawButtonRight:     schema.ButtonRight,
	RawButtonWheelUp:   schema.ButtonWheelUp,
	RawButtonWheelDown: schema.ButtonWheelDown,
}

// translate normalizes a backend notification. Unrecognized shapes are
// dropped without logging since backends may emit auxiliary notifications
// the runtime does not need.
func translate(notice Notification) (schema.Event, bool) {
	switch notice.Type {
	case NoticeKey:
		key := schema.KeyEvent{Mods: translateMods(notice.Mod)}
		switch {
		case notice.Ch != 0:
			key.Key = schema.KeyRune
			key.Rune = notice.Ch
		default:
			named, ok := keyCodes[notice.Code]
			if !ok {
				named = schema.KeyUnknown
			}
			key.Key = named
		}
		return schema.Event{Kind: schema.EventKey, Key: key}, true
	case NoticeMouse:
		button, ok := buttonCodes[notice.Button]
		if !ok {
			button = schema.ButtonUnknown
		}
		mouse := schema.MouseEvent{X: notice.X, Y: notice.Y, Button: button}
		switch notice.Action {
		case RawMouseRelease:
			mouse.Action = schema.MouseRelease
		case RawMouseMotion:
			mouse.Action = schema.MouseMotion
		default:
			mouse.Action = schema.MousePress
		}
		return schema.Event{Kind: schema.EventMouse, Mouse: mouse}, true
	case NoticeText:
		return schema.Event{Kind: schema.EventText, Text: notice.Text}, true
	case NoticeResize:
		return schema.Event{
			Kind:   schema.EventResize,
			Resize: schema.ResizeEvent{Width: notice.Width, Height: notice.Height},
		}, true
	default:
		return schema.Event{}, false
	}
}

func translateMods(raw uint8) schema.Mod {
	var mods schema.Mod
	if raw&RawModShift != 0 {
		mods |= schema.ModShift
	}
	if raw&RawModCtrl != 0 {
		mods |= schema.ModCtrl
	}
	if raw&RawModAlt != 0 {
		mods |= schema.ModAlt
	}
	if raw&RawModMeta != 0 {
		mods |= schema.ModMeta
	}
	return mods
}
