package transport

import (
	"testing"
	"time"

	"github.com/maskpipe/maskpipe/internal/shutdown"
)

func TestPublisherToReceiverEndToEnd(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer recv.Close()

	coord := shutdown.New()
	pub, err := Dial(recv.Addr(), 8, coord)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	for seq := uint64(1); seq <= 5; seq++ {
		if !pub.Publish(testFrame(seq)) {
			t.Fatalf("Publish(%d) rejected", seq)
		}
		// Pace the publisher so nothing is overwritten in this test.
		time.Sleep(5 * time.Millisecond)
	}

	var seqs []uint64
	for len(seqs) < 5 {
		f, ok := recv.Dequeue()
		if !ok {
			t.Fatalf("stream ended early, got %v", seqs)
		}
		seqs = append(seqs, f.Seq)
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("seqs = %v, want [1 2 3 4 5]", seqs)
		}
	}

	// Closing the publisher posts the shutdown token; the receiver
	// stream must end without delivering anything new.
	if err := pub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	deadline := time.After(2 * time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, ok := recv.Dequeue(); !ok {
				return
			}
		}
	}()
	select {
	case <-done:
	case <-deadline:
		t.Fatal("receiver stream did not end after publisher close")
	}
}

func TestReceiverRequestStopReachesPublisher(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer recv.Close()

	coord := shutdown.New()
	pub, err := Dial(recv.Addr(), 4, coord)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer pub.Close()

	// Let the connection register before stopping.
	pub.Publish(testFrame(1))
	if f, ok := recv.Dequeue(); !ok || f.Seq != 1 {
		t.Fatalf("Dequeue = (%v, %v), want frame 1", f, ok)
	}

	recv.RequestStop()

	select {
	case <-coord.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("capture-side coordinator never saw the consumer stop")
	}
}

func TestReceiverDrainsBufferedFramesAfterShutdownToken(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 16)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer recv.Close()

	coord := shutdown.New()
	pub, err := Dial(recv.Addr(), 16, coord)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// Publish a batch and stop before the consumer dequeues anything.
	for seq := uint64(1); seq <= 10; seq++ {
		pub.Publish(testFrame(seq))
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	var seqs []uint64
	timeout := time.After(2 * time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			f, ok := recv.Dequeue()
			if !ok {
				return
			}
			seqs = append(seqs, f.Seq)
		}
	}()
	select {
	case <-done:
	case <-timeout:
		t.Fatal("receiver never drained")
	}

	if len(seqs) == 0 {
		t.Fatal("no buffered frames delivered after stop")
	}
	var last uint64
	for _, seq := range seqs {
		if seq <= last {
			t.Fatalf("out-of-order delivery: %v", seqs)
		}
		last = seq
	}
	if last != 10 {
		t.Errorf("final frame %d, want 10 (latest frame wins)", last)
	}
}

func TestSecondCaptureConnectionRejected(t *testing.T) {
	recv, err := Listen("127.0.0.1:0", 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer recv.Close()

	coordA := shutdown.New()
	pubA, err := Dial(recv.Addr(), 4, coordA)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer pubA.Close()

	pubA.Publish(testFrame(1))
	if _, ok := recv.Dequeue(); !ok {
		t.Fatal("first connection not serving")
	}

	// The second producer connects at the websocket level but its
	// connection is closed immediately; its link must break.
	coordB := shutdown.New()
	pubB, err := Dial(recv.Addr(), 4, coordB)
	if err == nil {
		defer pubB.Close()
		for i := 0; i < 50; i++ {
			pubB.Publish(testFrame(uint64(i + 2)))
			if coordB.Requested() {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if !coordB.Requested() {
			t.Error("second producer never noticed its rejected link")
		}
	}
}
