package router

import (
	"sync"
	"testing"
	"time"
)

func TestGrowableBuffer_BasicSendReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](10, 0)

	for i := 0; i < 5; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("received %d, want %d", val, i)
		}
	}

	if _, ok := buf.TryReceive(); ok {
		t.Error("TryReceive() on empty buffer returned true")
	}
}

func TestGrowableBuffer_GrowAt70Percent(t *testing.T) {
	buf := NewGrowableBuffer[int](10, 0)

	for i := 0; i < 7; i++ {
		buf.Send(i)
	}

	stats := buf.Stats()
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want 20 after 70%% fill", stats.Capacity)
	}
	if stats.ResizeCount != 1 {
		t.Errorf("ResizeCount = %d, want 1", stats.ResizeCount)
	}

	for i := 0; i < 7; i++ {
		val, ok := buf.TryReceive()
		if !ok || val != i {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", val, ok, i)
		}
	}
}

func TestGrowableBuffer_MultipleGrows(t *testing.T) {
	buf := NewGrowableBuffer[int](4, 0)

	for i := 0; i < 100; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	stats := buf.Stats()
	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.ResizeCount < 5 {
		t.Errorf("ResizeCount = %d, want at least 5", stats.ResizeCount)
	}

	for i := 0; i < 100; i++ {
		val, ok := buf.TryReceive()
		if !ok || val != i {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", val, ok, i)
		}
	}
}

func TestGrowableBuffer_WrapAroundThenGrow(t *testing.T) {
	buf := NewGrowableBuffer[int](10, 0)

	// Move head forward so the ring wraps before growing.
	for i := 0; i < 5; i++ {
		buf.Send(i)
	}
	for i := 0; i < 5; i++ {
		buf.TryReceive()
	}
	for i := 0; i < 12; i++ {
		buf.Send(100 + i)
	}

	for i := 0; i < 12; i++ {
		val, ok := buf.TryReceive()
		if !ok || val != 100+i {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", val, ok, 100+i)
		}
	}
}

func TestGrowableBuffer_CeilingBlocksSend(t *testing.T) {
	buf := NewGrowableBuffer[int](2, 4)

	for i := 0; i < 4; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}
	if buf.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4", buf.Cap())
	}

	sent := make(chan bool)
	go func() { sent <- buf.Send(4) }()

	select {
	case <-sent:
		t.Fatal("Send did not block at ceiling")
	case <-time.After(50 * time.Millisecond):
	}

	if v, ok := buf.Receive(); !ok || v != 0 {
		t.Fatalf("Receive() = %d, %v", v, ok)
	}

	select {
	case ok := <-sent:
		if !ok {
			t.Error("blocked Send returned false")
		}
	case <-time.After(time.Second):
		t.Fatal("Send stayed blocked after space freed")
	}

	if got := buf.Stats().BlockedSend; got != 1 {
		t.Errorf("BlockedSend = %d, want 1", got)
	}
	for want := 1; want <= 4; want++ {
		if v, _ := buf.TryReceive(); v != want {
			t.Errorf("got %d, want %d", v, want)
		}
	}
}

func TestGrowableBuffer_CloseUnblocksSend(t *testing.T) {
	buf := NewGrowableBuffer[int](1, 1)
	buf.Send(1)

	sent := make(chan bool)
	go func() { sent <- buf.Send(2) }()

	time.Sleep(20 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-sent:
		if ok {
			t.Error("Send after Close returned true")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Send")
	}
}

func TestGrowableBuffer_BlockingReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](10, 0)

	received := make(chan int)
	go func() {
		val, ok := buf.Receive()
		if ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("received %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for receive")
	}
}

func TestGrowableBuffer_Close(t *testing.T) {
	buf := NewGrowableBuffer[int](10, 0)

	buf.Send(1)
	buf.Send(2)
	buf.Close()

	if buf.Send(3) {
		t.Error("Send() after Close() should return false")
	}

	// Remaining items drain before the closed signal.
	for _, want := range []int{1, 2} {
		val, ok := buf.Receive()
		if !ok || val != want {
			t.Errorf("Receive() = %d, %v; want %d, true", val, ok, want)
		}
	}

	if _, ok := buf.Receive(); ok {
		t.Error("Receive() should return false when closed and empty")
	}
}

func TestGrowableBuffer_CloseUnblocksReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](10, 0)

	done := make(chan bool)
	go func() {
		_, ok := buf.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive() should return false after Close()")
		}
	case <-time.After(time.Second):
		t.Fatal("Close() did not unblock Receive()")
	}
}

func TestGrowableBuffer_ConcurrentSendReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](8, 64)

	const producers = 4
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Send(i)
			}
		}()
	}

	total := 0
	done := make(chan struct{})
	go func() {
		for {
			if _, ok := buf.Receive(); !ok {
				close(done)
				return
			}
			total++
		}
	}()

	wg.Wait()
	buf.Close()
	<-done

	if total != producers*perProducer {
		t.Errorf("received %d items, want %d", total, producers*perProducer)
	}
	stats := buf.Stats()
	if stats.Enqueued != stats.Dequeued {
		t.Errorf("Enqueued = %d, Dequeued = %d", stats.Enqueued, stats.Dequeued)
	}
	if stats.Capacity > 64 {
		t.Errorf("Capacity = %d exceeds ceiling", stats.Capacity)
	}
}

func TestNewGrowableBuffer_MinCapacity(t *testing.T) {
	buf := NewGrowableBuffer[int](0, 0)
	if buf.Cap() < 1 {
		t.Errorf("Cap() = %d, want at least 1", buf.Cap())
	}
	if !buf.Send(1) {
		t.Error("Send() on minimum buffer failed")
	}

	capped := NewGrowableBuffer[int](8, 2)
	if capped.Stats().MaxCapacity != 8 {
		t.Errorf("MaxCapacity = %d, want raised to initial 8", capped.Stats().MaxCapacity)
	}
}
