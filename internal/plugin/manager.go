// Package plugin defines the plugin subsystem consumed by the runtime core
// and ships an in-process manager so the runtime is usable without an
// external plugin host. Loading and sandboxing of external plugins stay
// behind the Manager interface.
package plugin

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/termrun/schema"
)

// State describes one plugin's condition inside the manager.
type State string

const (
	// StateActive marks a plugin participating in event filtering.
	StateActive State = "active"
	// StateFailed marks a plugin disabled after a filter crash.
	StateFailed State = "failed"
)

// Plugin filters events. Returning schema.ErrEventHalted vetoes the event;
// any other error drops that event while the plugin stays active. Only a
// panic disables a plugin.
type Plugin interface {
	Name() string
	Filter(ev schema.Event) (schema.Event, error)
}

// Manager is the plugin subsystem surface the runtime core depends on.
type Manager interface {
	Start(ctx context.Context) error
	// Ready is closed once the manager finished its own initialization.
	Ready() <-chan struct{}
	FilterEvent(ctx context.Context, ev schema.Event) (schema.Event, error)
	ListPlugins() []string
	PluginState(name string) (State, bool)
	Stop(ctx context.Context) error
}

// Options configures the in-process manager.
type Options struct {
	Plugins []Plugin
	// FilterTimeout bounds one FilterEvent round trip. Zero means 250ms.
	FilterTimeout time.Duration
	Logger        pslog.Logger
}

type filterRequest struct {
	ev    schema.Event
	reply chan filterReply
}

type filterReply struct {
	ev  schema.Event
	err error
}

type stateRequest struct {
	name  string
	list  bool
	reply chan stateReply
}

type stateReply struct {
	names []string
	state State
	ok    bool
}

type manager struct {
	plugins []Plugin
	timeout time.Duration
	log     pslog.Logger

	ready    chan struct{}
	filterCh chan filterRequest
	stateCh  chan stateRequest
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager constructs the in-process manager.
func NewManager(opts Options) Manager {
	timeout := opts.FilterTimeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &manager{
		plugins:  opts.Plugins,
		timeout:  timeout,
		log:      logger.With("component", "plugins"),
		ready:    make(chan struct{}),
		filterCh: make(chan filterRequest),
		stateCh:  make(chan stateRequest),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (m *manager) Start(ctx context.Context) error {
	go m.loop(ctx)
	return nil
}

func (m *manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *manager) loop(ctx context.Context) {
	defer close(m.doneCh)
	states := make(map[string]State, len(m.plugins))
	order := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		states[p.Name()] = StateActive
		order = append(order, p.Name())
	}
	m.log.Debug("plugin manager ready", "plugins", len(m.plugins))
	close(m.ready)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case req := <-m.filterCh:
			req.reply <- m.runFilters(req.ev, states)
		case req := <-m.stateCh:
			if req.list {
				names := make([]string, len(order))
				copy(names, order)
				req.reply <- stateReply{names: names}
				continue
			}
			state, ok := states[req.name]
			req.reply <- stateReply{state: state, ok: ok}
		}
	}
}

func (m *manager) runFilters(ev schema.Event, states map[string]State) filterReply {
	for _, p := range m.plugins {
		if states[p.Name()] != StateActive {
			continue
		}
		filtered, panicked, err := m.filterOne(p, ev)
		if err != nil {
			if err == schema.ErrEventHalted {
				return filterReply{err: err}
			}
			m.log.Warn("plugin filter failed", "plugin", p.Name(), "err", err)
			if panicked {
				states[p.Name()] = StateFailed
			}
			return filterReply{err: err}
		}
		ev = filtered
	}
	return filterReply{ev: ev}
}

func (m *manager) filterOne(p Plugin, ev schema.Event) (out schema.Event, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", p.Name(), r)
			panicked = true
		}
	}()
	out, err = p.Filter(ev)
	return out, false, err
}

func (m *manager) FilterEvent(ctx context.Context, ev schema.Event) (schema.Event, error) {
	reply := make(chan filterReply, 1)
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case m.filterCh <- filterRequest{ev: ev, reply: reply}:
	case <-m.doneCh:
		return schema.Event{}, schema.ErrPluginUnavailable
	case <-ctx.Done():
		return schema.Event{}, ctx.Err()
	case <-timer.C:
		return schema.Event{}, schema.ErrPluginUnavailable
	}
	select {
	case res := <-reply:
		return res.ev, res.err
	case <-ctx.Done():
		return schema.Event{}, ctx.Err()
	case <-timer.C:
		return schema.Event{}, schema.ErrPluginUnavailable
	}
}

func (m *manager) ListPlugins() []string {
	reply := make(chan stateReply, 1)
	select {
	case m.stateCh <- stateRequest{list: true, reply: reply}:
		return (<-reply).names
	case <-m.doneCh:
		return nil
	}
}

func (m *manager) PluginState(name string) (State, bool) {
	reply := make(chan stateReply, 1)
	select {
	case m.stateCh <- stateRequest{name: name, reply: reply}:
		res := <-reply
		return res.state, res.ok
	case <-m.doneCh:
		return "", false
	}
}

func (m *manager) Stop(ctx context.Context) error {
	select {
	case <-m.doneCh:
		return nil
	default:
	}
	select {
	case m.stopCh <- struct{}{}:
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Func adapts a name and filter function into a Plugin.
func Func(name string, filter func(schema.Event) (schema.Event, error)) Plugin {
	return funcPlugin{name: name, filter: filter}
}

type funcPlugin struct {
	name   string
	filter func(schema.Event) (schema.Event, error)
}

func (p funcPlugin) Name() string { return p.name }

func (p funcPlugin) Filter(ev schema.Event) (schema.Event, error) {
	if p.filter == nil {
		return ev, nil
	}
	return p.filter(ev)
}
