package pubsub

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	exchange := New(nil)
	ch, cancel := exchange.Subscribe("key")
	defer cancel()

	exchange.Publish("key", "payload")

	select {
	case got := <-ch:
		if got.Topic != "key" {
			t.Fatalf("expected key topic, got %q", got.Topic)
		}
		if got.Payload != "payload" {
			t.Fatalf("unexpected payload: %+v", got.Payload)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	exchange := New(nil)
	exchange.Publish("resize", 42)
	if n := exchange.Subscribers("resize"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	exchange := New(nil)
	ch, cancel := exchange.Subscribe("key")
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	cancel()
}

func TestConcurrentPublishAndCancel(t *testing.T) {
	exchange := New(nil)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					exchange.Publish("key", 1)
				}
			}
		}()
	}
	for i := 0; i < 500; i++ {
		_, cancel := exchange.Subscribe("key")
		cancel()
	}
	close(stop)
	wg.Wait()
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	exchange := New(nil)
	exchange.depth = 1
	ch, cancel := exchange.Subscribe("mouse")
	defer cancel()

	exchange.Publish("mouse", 1)
	done := make(chan struct{})
	go func() {
		exchange.Publish("mouse", 2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
	if got := <-ch; got.Payload != 1 {
		t.Fatalf("expected first payload preserved, got %+v", got.Payload)
	}
}
