package shutdown

import (
	"sync"
	"testing"
	"time"
)

func TestStopObservableByAllReaders(t *testing.T) {
	c := New()
	if c.Requested() {
		t.Fatal("fresh coordinator already stopped")
	}

	const readers = 8
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			<-c.Done()
		}()
	}

	c.RequestStop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not every reader observed the stop")
	}

	if !c.Requested() {
		t.Error("Requested() false after RequestStop")
	}
}

func TestRequestStopIdempotent(t *testing.T) {
	c := New()
	c.RequestStop()
	c.RequestStop()
	c.RequestStop()
	if !c.Requested() {
		t.Error("stop lost after repeated requests")
	}
}

func TestConcurrentRequestStop(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RequestStop()
		}()
	}
	wg.Wait()
	if !c.Requested() {
		t.Error("stop not observable after concurrent requests")
	}
}

func TestDoneBlocksUntilStop(t *testing.T) {
	c := New()
	select {
	case <-c.Done():
		t.Fatal("Done() closed before any stop request")
	default:
	}
}
