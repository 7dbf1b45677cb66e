package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/termrun/internal/execx"
	"pkt.systems/termrun/internal/plugin"
	"pkt.systems/termrun/schema"
)

type fakeLifecycle struct {
	mu         sync.Mutex
	dispatcher int
	plugins    int
	renders    int
	stopped    chan error
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{stopped: make(chan error, 1)}
}

func (f *fakeLifecycle) DispatcherReady() {
	f.mu.Lock()
	f.dispatcher++
	f.mu.Unlock()
}

func (f *fakeLifecycle) PluginsReady() {
	f.mu.Lock()
	f.plugins++
	f.mu.Unlock()
}

func (f *fakeLifecycle) RequestRender() {
	f.mu.Lock()
	f.renders++
	f.mu.Unlock()
}

func (f *fakeLifecycle) DispatcherStopped(reason error) {
	select {
	case f.stopped <- reason:
	default:
	}
}

func (f *fakeLifecycle) renderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders
}

type updateFunc func(msg schema.Message, model any) (any, []schema.Command, error)

func (fn updateFunc) Update(msg schema.Message, model any) (any, []schema.Command, error) {
	return fn(msg, model)
}

type fakePrefs struct {
	mu     sync.Mutex
	theme  schema.ThemeName
	writes int
}

func (p *fakePrefs) ThemeID() schema.ThemeName {
	if p.theme == "" {
		return schema.DefaultTheme
	}
	return p.theme
}

func (p *fakePrefs) SetTheme(name schema.ThemeName) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = name
	p.writes++
	return nil
}

func (p *fakePrefs) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

type themedModel struct {
	theme schema.ThemeName
	count int
}

func (m themedModel) ThemeID() schema.ThemeName { return m.theme }

func startDispatcher(t *testing.T, cfg Config) (*Dispatcher, *fakeLifecycle) {
	t.Helper()
	lc := newFakeLifecycle()
	cfg.Lifecycle = lc
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = time.Second
	}
	d := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = d.Stop(stopCtx)
	})
	return d, lc
}

func keyPress(r rune) schema.Event {
	return schema.Event{Kind: schema.EventKey, Key: schema.KeyEvent{Key: schema.KeyRune, Rune: r}}
}

func waitModel(t *testing.T, d *Dispatcher, want func(any) bool) any {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		model, err := d.Model()
		if err != nil {
			t.Fatalf("model: %v", err)
		}
		if want(model) {
			return model
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("model never reached expected state")
	return nil
}

func TestKeyEventRunsUpdate(t *testing.T) {
	d, _ := startDispatcher(t, Config{
		InitialModel: 0,
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			key, ok := msg.(schema.KeyPressMsg)
			if !ok {
				return model, nil, nil
			}
			if key.Rune == '+' {
				return model.(int) + 1, nil, nil
			}
			return model, nil, nil
		}),
	})
	d.Dispatch(keyPress('+'))
	waitModel(t, d, func(m any) bool { return m == 1 })
}

func TestResizeUpdatesDimensionsWithoutUpdateCall(t *testing.T) {
	calls := 0
	d, _ := startDispatcher(t, Config{
		InitialModel: struct{}{},
		Width:        80,
		Height:       24,
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			calls++
			return model, nil, nil
		}),
	})
	d.Dispatch(schema.Event{Kind: schema.EventResize, Resize: schema.ResizeEvent{Width: 100, Height: 40}})
	// A sync call after the dispatch proves the resize was processed.
	if _, err := d.Model(); err != nil {
		t.Fatalf("model: %v", err)
	}
	if d.width != 100 || d.height != 40 {
		t.Fatalf("expected 100x40, got %dx%d", d.width, d.height)
	}
	if calls != 0 {
		t.Fatalf("expected no update call, got %d", calls)
	}
}

func TestUpdateErrorLeavesModelUnchanged(t *testing.T) {
	d, lc := startDispatcher(t, Config{
		InitialModel: "initial",
		Updater: updateFunc(func(schema.Message, any) (any, []schema.Command, error) {
			return nil, nil, errors.New("boom")
		}),
	})
	d.Dispatch(keyPress('x'))
	model, err := d.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if model != "initial" {
		t.Fatalf("expected model unchanged, got %v", model)
	}
	if lc.renderCount() != 0 {
		t.Fatalf("expected no render request on failed update")
	}
}

func TestUpdateNilModelLeavesModelUnchanged(t *testing.T) {
	d, _ := startDispatcher(t, Config{
		InitialModel: "initial",
		Updater: updateFunc(func(schema.Message, any) (any, []schema.Command, error) {
			return nil, nil, nil
		}),
	})
	d.Dispatch(keyPress('x'))
	model, err := d.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if model != "initial" {
		t.Fatalf("expected model unchanged, got %v", model)
	}
}

func TestUpdatePanicLeavesModelUnchanged(t *testing.T) {
	d, _ := startDispatcher(t, Config{
		InitialModel: "initial",
		Updater: updateFunc(func(schema.Message, any) (any, []schema.Command, error) {
			panic("boom")
		}),
	})
	d.Dispatch(keyPress('x'))
	model, err := d.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if model != "initial" {
		t.Fatalf("expected model unchanged, got %v", model)
	}
}

func TestPluginVetoDropsEventAndBroadcast(t *testing.T) {
	mgr := plugin.NewManager(vetoPluginOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("plugin start: %v", err)
	}
	<-mgr.Ready()

	calls := 0
	d, _ := startDispatcher(t, Config{
		InitialModel: struct{}{},
		Plugins:      mgr,
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			calls++
			return model, nil, nil
		}),
	})
	sub, cancelSub := d.Subscribe(string(schema.EventKey))
	defer cancelSub()

	d.Dispatch(keyPress('x'))
	if _, err := d.Model(); err != nil {
		t.Fatalf("model: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected veto to prevent update, got %d calls", calls)
	}
	select {
	case got := <-sub:
		t.Fatalf("unexpected broadcast: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

// vetoPluginOptions builds a plugin manager config whose single plugin
// vetoes everything.
func vetoPluginOptions() plugin.Options {
	return plugin.Options{Plugins: []plugin.Plugin{
		plugin.Func("veto", func(schema.Event) (schema.Event, error) {
			return schema.Event{}, schema.ErrEventHalted
		}),
	}}
}

func TestSuccessfulDispatchBroadcasts(t *testing.T) {
	d, _ := startDispatcher(t, Config{
		InitialModel: 0,
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			return model.(int) + 1, nil, nil
		}),
	})
	sub, cancelSub := d.Subscribe(string(schema.EventKey))
	defer cancelSub()

	d.Dispatch(keyPress('x'))
	select {
	case got := <-sub:
		key, ok := got.Payload.(schema.KeyEvent)
		if !ok || key.Rune != 'x' {
			t.Fatalf("unexpected broadcast payload: %+v", got.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestThemeSyncIdempotence(t *testing.T) {
	prefs := &fakePrefs{}
	d, _ := startDispatcher(t, Config{
		InitialModel: themedModel{theme: schema.DefaultTheme},
		Prefs:        prefs,
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			m := model.(themedModel)
			if key, ok := msg.(schema.KeyPressMsg); ok && key.Rune == 't' {
				m.theme = "gruvbox"
			}
			m.count++
			return m, nil, nil
		}),
	})

	// Same theme id: zero writes.
	d.Dispatch(keyPress('x'))
	waitModel(t, d, func(m any) bool { return m.(themedModel).count == 1 })
	if prefs.writeCount() != 0 {
		t.Fatalf("expected zero writes, got %d", prefs.writeCount())
	}

	// Changed id: exactly one write, cache updated.
	d.Dispatch(keyPress('t'))
	waitModel(t, d, func(m any) bool { return m.(themedModel).count == 2 })
	if prefs.writeCount() != 1 {
		t.Fatalf("expected one write, got %d", prefs.writeCount())
	}
	rc, err := d.RenderContext()
	if err != nil {
		t.Fatalf("render context: %v", err)
	}
	if rc.Theme != schema.ThemeName("gruvbox") {
		t.Fatalf("expected cached theme gruvbox, got %q", rc.Theme)
	}

	// Repeat with the same id: still one write.
	d.Dispatch(keyPress('x'))
	waitModel(t, d, func(m any) bool { return m.(themedModel).count == 3 })
	if prefs.writeCount() != 1 {
		t.Fatalf("expected writes to stay at one, got %d", prefs.writeCount())
	}
}

func TestCommandResultRoutedThroughUpdate(t *testing.T) {
	seen := make(chan schema.CommandResultMsg, 1)
	d, _ := startDispatcher(t, Config{
		InitialModel: struct{}{},
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			if res, ok := msg.(schema.CommandResultMsg); ok {
				seen <- res
			}
			return model, nil, nil
		}),
	})
	d.CommandResult(schema.CommandResultMsg{Command: "tick", Value: schema.InfoMsg{Value: "tock"}})
	select {
	case res := <-seen:
		if res.Command != "tick" {
			t.Fatalf("unexpected result: %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for command result")
	}
}

func TestCommandsExecuteAfterUpdate(t *testing.T) {
	ran := make(chan struct{}, 1)
	d, _ := startDispatcher(t, Config{
		InitialModel: struct{}{},
		Executor:     execx.New(context.Background(), nil),
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			if _, ok := msg.(schema.KeyPressMsg); !ok {
				return model, nil, nil
			}
			cmd := schema.Command{Name: "mark", Run: func(context.Context) (schema.Message, error) {
				ran <- struct{}{}
				return nil, nil
			}}
			return model, []schema.Command{cmd}, nil
		}),
	})
	d.Dispatch(keyPress('x'))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for command execution")
	}
}

func TestQuitStopsDispatcher(t *testing.T) {
	d, lc := startDispatcher(t, Config{
		InitialModel: struct{}{},
		Updater: updateFunc(func(msg schema.Message, model any) (any, []schema.Command, error) {
			return model, nil, nil
		}),
	})
	d.Dispatch(schema.Event{Kind: schema.EventQuit})
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatalf("dispatcher did not stop on quit")
	}
	select {
	case reason := <-lc.stopped:
		if reason != nil {
			t.Fatalf("unexpected stop reason: %v", reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("lifecycle never notified of stop")
	}
	if _, err := d.Model(); !errors.Is(err, schema.ErrDispatcherStopped) {
		t.Fatalf("expected stopped error, got %v", err)
	}
}
