package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/termrun/schema"
)

type fakeBackend struct {
	mu        sync.Mutex
	initErr   error
	initCalls int
	shutdowns int
	events    chan Notification
	width     int
	height    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{width: 120, height: 40}
}

func (f *fakeBackend) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return f.initErr
	}
	f.events = make(chan Notification, 16)
	return nil
}

func (f *fakeBackend) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func (f *fakeBackend) Width() int  { return f.width }
func (f *fakeBackend) Height() int { return f.height }

func (f *fakeBackend) Events() <-chan Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *fakeBackend) send(n Notification) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- n
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls
}

func (f *fakeBackend) setInitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErr = err
}

type fakeSink struct {
	ch chan schema.Event
}

func newFakeSink() *fakeSink {
	return &fakeSink{ch: make(chan schema.Event, 16)}
}

func (f *fakeSink) Dispatch(ev schema.Event) {
	f.ch <- ev
}

func (f *fakeSink) next(t *testing.T) schema.Event {
	t.Helper()
	select {
	case ev := <-f.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return schema.Event{}
	}
}

func (f *fakeSink) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-f.ch:
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(wait):
	}
}

type fakeMonitor struct {
	ch chan error
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{ch: make(chan error, 1)}
}

func (f *fakeMonitor) DriverFailed(err error) {
	f.ch <- err
}

func interactive(v bool) *bool { return &v }

func startDriver(t *testing.T, cfg Config) (*Driver, context.CancelFunc) {
	t.Helper()
	if cfg.Interactive == nil {
		cfg.Interactive = interactive(true)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := New(cfg)
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start driver: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = d.Stop(stopCtx)
		cancel()
	})
	return d, cancel
}

func TestDriverEmitsInitialResize(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	startDriver(t, Config{Backend: backend, Sink: sink})

	ev := sink.next(t)
	if ev.Kind != schema.EventResize {
		t.Fatalf("expected resize, got %v", ev.Kind)
	}
	if ev.Resize.Width != 120 || ev.Resize.Height != 40 {
		t.Fatalf("unexpected dimensions %dx%d", ev.Resize.Width, ev.Resize.Height)
	}
}

func TestDriverRegisterDispatcherEmitsResize(t *testing.T) {
	backend := newFakeBackend()
	d, _ := startDriver(t, Config{Backend: backend})

	sink := newFakeSink()
	d.RegisterDispatcher(sink)

	ev := sink.next(t)
	if ev.Kind != schema.EventResize {
		t.Fatalf("expected resize, got %v", ev.Kind)
	}
}

func TestDriverTranslatesKeys(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	startDriver(t, Config{Backend: backend, Sink: sink})
	sink.next(t) // initial resize

	backend.send(Notification{Type: NoticeKey, Ch: 'q'})
	ev := sink.next(t)
	if ev.Kind != schema.EventKey || ev.Key.Key != schema.KeyRune || ev.Key.Rune != 'q' {
		t.Fatalf("unexpected key event %+v", ev.Key)
	}

	backend.send(Notification{Type: NoticeKey, Code: CodeUp, Mod: RawModCtrl | RawModShift})
	ev = sink.next(t)
	if ev.Key.Key != schema.KeyUp {
		t.Fatalf("expected up key, got %v", ev.Key.Key)
	}
	if !ev.Key.Mods.Has(schema.ModCtrl) || !ev.Key.Mods.Has(schema.ModShift) {
		t.Fatalf("modifiers lost: %v", ev.Key.Mods)
	}

	backend.send(Notification{Type: NoticeKey, Code: 0x7fff})
	ev = sink.next(t)
	if ev.Key.Key != schema.KeyUnknown {
		t.Fatalf("expected unknown key fallback, got %v", ev.Key.Key)
	}
}

func TestDriverTranslatesMouse(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	startDriver(t, Config{Backend: backend, Sink: sink})
	sink.next(t)

	backend.send(Notification{Type: NoticeMouse, X: 3, Y: 7, Button: RawButtonRight, Action: RawMouseRelease})
	ev := sink.next(t)
	if ev.Kind != schema.EventMouse {
		t.Fatalf("expected mouse event, got %v", ev.Kind)
	}
	if ev.Mouse.Button != schema.ButtonRight || ev.Mouse.Action != schema.MouseRelease {
		t.Fatalf("unexpected mouse event %+v", ev.Mouse)
	}
	if ev.Mouse.X != 3 || ev.Mouse.Y != 7 {
		t.Fatalf("coordinates lost: %+v", ev.Mouse)
	}

	backend.send(Notification{Type: NoticeMouse, Button: 99})
	ev = sink.next(t)
	if ev.Mouse.Button != schema.ButtonUnknown {
		t.Fatalf("expected unknown button fallback, got %v", ev.Mouse.Button)
	}
}

func TestDriverIgnoresAuxNotifications(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	startDriver(t, Config{Backend: backend, Sink: sink})
	sink.next(t)

	backend.send(Notification{Type: NoticeAux})
	sink.expectNone(t, 100*time.Millisecond)
}

func TestDriverInitRetriesBounded(t *testing.T) {
	backend := newFakeBackend()
	backend.setInitErr(errors.New("no tty"))
	startDriver(t, Config{
		Backend:        backend,
		MaxInitRetries: 3,
		RetryDelay:     10 * time.Millisecond,
	})

	deadline := time.Now().Add(2 * time.Second)
	for backend.calls() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := backend.calls(); got != 3 {
		t.Fatalf("expected 3 init attempts, got %d", got)
	}
	time.Sleep(100 * time.Millisecond)
	if got := backend.calls(); got != 3 {
		t.Fatalf("retries kept going after bound: %d attempts", got)
	}
}

func TestDriverRecoversFromBackendError(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	startDriver(t, Config{Backend: backend, Sink: sink})
	sink.next(t)

	backend.send(Notification{Type: NoticeError, Err: errors.New("read failed")})

	// Recovery shuts the backend down, re-initializes and re-announces the
	// terminal size.
	ev := sink.next(t)
	if ev.Kind != schema.EventResize {
		t.Fatalf("expected resize after recovery, got %v", ev.Kind)
	}
	if backend.calls() != 2 {
		t.Fatalf("expected re-init, got %d init calls", backend.calls())
	}

	backend.send(Notification{Type: NoticeKey, Ch: 'x'})
	ev = sink.next(t)
	if ev.Kind != schema.EventKey {
		t.Fatalf("driver not functional after recovery: %v", ev.Kind)
	}
}

func TestDriverFailsWhenRecoveryFails(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	monitor := newFakeMonitor()
	d, _ := startDriver(t, Config{Backend: backend, Sink: sink, Monitor: monitor})
	sink.next(t)

	cause := errors.New("terminal gone")
	backend.setInitErr(errors.New("still gone"))
	backend.send(Notification{Type: NoticeError, Err: cause})

	select {
	case err := <-monitor.ch:
		if !errors.Is(err, cause) {
			t.Fatalf("expected original cause, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never notified")
	}
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not terminate")
	}
}

func TestDriverStopIdempotent(t *testing.T) {
	backend := newFakeBackend()
	d, _ := startDriver(t, Config{Backend: backend})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("driver did not terminate")
	}
}

func TestDriverDisabledOffTerminal(t *testing.T) {
	backend := newFakeBackend()
	sink := newFakeSink()
	startDriver(t, Config{Backend: backend, Sink: sink, Interactive: interactive(false)})

	// Degraded mode still announces a baseline size but never touches the
	// backend.
	ev := sink.next(t)
	if ev.Kind != schema.EventResize {
		t.Fatalf("expected resize, got %v", ev.Kind)
	}
	if backend.calls() != 0 {
		t.Fatalf("backend initialized off-terminal: %d calls", backend.calls())
	}
}
