//go:build portable

package driver

import (
	"bufio"
	"os"
	"sync"
)

// portableBackend is the pure-software fallback compiled with the portable
// build tag. It never touches termios: the terminal stays in cooked mode
// and input arrives line by line as text notifications.
type portableBackend struct {
	mu     sync.Mutex
	out    chan Notification
	stopCh chan struct{}
	width  int
	height int
	run    bool
}

func newPlatformBackend() Backend {
	return &portableBackend{}
}

func (b *portableBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run {
		return nil
	}
	b.width, b.height = ttySize()
	b.out = make(chan Notification, 64)
	b.stopCh = make(chan struct{})
	b.run = true
	go b.readLines()
	return nil
}

func (b *portableBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.run {
		return
	}
	close(b.stopCh)
	b.run = false
}

func (b *portableBackend) Width() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width
}

func (b *portableBackend) Height() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.height
}

func (b *portableBackend) Events() <-chan Notification {
	return b.out
}

func (b *portableBackend) readLines() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		n := Notification{Type: NoticeText, Text: scanner.Text()}
		select {
		case b.out <- n:
		case <-b.stopCh:
			return
		}
	}
}
