package metrics

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSink_ZeroRates(t *testing.T) {
	s := NewSink()
	sum := s.Summary()
	if sum.ConnectionSuccessRate != 0 || sum.DatabaseSuccessRate != 0 || sum.HeartbeatSuccessRate != 0 {
		t.Errorf("rates = %v/%v/%v, want 0", sum.ConnectionSuccessRate, sum.DatabaseSuccessRate, sum.HeartbeatSuccessRate)
	}
	if !sum.LastDataReceived.IsZero() {
		t.Errorf("LastDataReceived = %v, want zero", sum.LastDataReceived)
	}
	if sum.Connected {
		t.Error("Connected = true before any session")
	}
}

func TestSink_ConnectionRates(t *testing.T) {
	s := NewSink()
	for i := 0; i < 4; i++ {
		s.ConnectionAttempt()
	}
	s.ConnectionSucceeded()
	s.ConnectionFailed()
	s.ConnectionFailed()
	s.ConnectionFailed()

	sum := s.Summary()
	if sum.ConnectionAttempts != 4 {
		t.Errorf("ConnectionAttempts = %d, want 4", sum.ConnectionAttempts)
	}
	if sum.FailedConnections != 3 {
		t.Errorf("FailedConnections = %d, want 3", sum.FailedConnections)
	}
	if sum.ConnectionSuccessRate != 25 {
		t.Errorf("ConnectionSuccessRate = %v, want 25", sum.ConnectionSuccessRate)
	}
}

func TestSink_Uptime(t *testing.T) {
	clk := newFakeClock()
	s := NewSinkWithClock(clk.Now)

	s.ConnectionSucceeded()
	clk.Advance(10 * time.Second)

	sum := s.Summary()
	if !sum.Connected || sum.CurrentUptime != 10*time.Second {
		t.Fatalf("connected=%v uptime=%v, want true 10s", sum.Connected, sum.CurrentUptime)
	}

	s.Disconnected()
	clk.Advance(5 * time.Second)
	s.ConnectionSucceeded()
	clk.Advance(3 * time.Second)

	sum = s.Summary()
	if sum.TotalUptime != 13*time.Second {
		t.Errorf("TotalUptime = %v, want 13s", sum.TotalUptime)
	}
	if sum.CurrentUptime != 3*time.Second {
		t.Errorf("CurrentUptime = %v, want 3s", sum.CurrentUptime)
	}
	if sum.LastDisconnect.IsZero() {
		t.Error("LastDisconnect not recorded")
	}
}

func TestSink_MessageKinds(t *testing.T) {
	clk := newFakeClock()
	s := NewSinkWithClock(clk.Now)

	s.MessageReceived(KindOrderBook)
	s.MessageReceived(KindOrderBook)
	s.MessageReceived(KindTrade)
	s.MessageReceived(KindError)
	s.MessageReceived(KindInvalid)
	s.MessageReceived(KindUnknown)
	s.MessageReceived(KindAck)

	sum := s.Summary()
	if sum.MessagesReceived != 7 {
		t.Errorf("MessagesReceived = %d, want 7", sum.MessagesReceived)
	}
	if sum.OrderBookUpdates != 2 || sum.TradeUpdates != 1 {
		t.Errorf("book/trade = %d/%d, want 2/1", sum.OrderBookUpdates, sum.TradeUpdates)
	}
	if sum.ErrorMessages != 1 || sum.InvalidMessages != 1 || sum.UnknownMessages != 1 || sum.Acks != 1 {
		t.Errorf("error/invalid/unknown/ack = %d/%d/%d/%d", sum.ErrorMessages, sum.InvalidMessages, sum.UnknownMessages, sum.Acks)
	}
	if !sum.LastDataReceived.Equal(clk.Now()) {
		t.Errorf("LastDataReceived = %v, want %v", sum.LastDataReceived, clk.Now())
	}
}

func TestSink_SecondsSinceLastData(t *testing.T) {
	clk := newFakeClock()
	s := NewSinkWithClock(clk.Now)

	clk.Advance(30 * time.Second)
	if got := s.Summary().SecondsSinceLastData; got != 30 {
		t.Errorf("before any data = %v, want 30 (since start)", got)
	}

	s.MessageReceived(KindTrade)
	clk.Advance(5 * time.Second)
	if got := s.Summary().SecondsSinceLastData; got != 5 {
		t.Errorf("after data = %v, want 5", got)
	}
}

func TestSink_Heartbeats(t *testing.T) {
	s := NewSink()
	s.HeartbeatSent()
	s.HeartbeatSent()
	s.HeartbeatSent()
	s.HeartbeatSent()
	s.HeartbeatFailed()
	s.HeartbeatFailed()

	if got := s.Summary().ConsecutiveHeartbeatFailures; got != 2 {
		t.Fatalf("consecutive = %d, want 2", got)
	}

	s.HeartbeatReceived()
	s.HeartbeatReceived()

	sum := s.Summary()
	if sum.ConsecutiveHeartbeatFailures != 0 {
		t.Errorf("consecutive = %d, want 0 after reply", sum.ConsecutiveHeartbeatFailures)
	}
	if sum.HeartbeatFailures != 2 {
		t.Errorf("HeartbeatFailures = %d, want 2", sum.HeartbeatFailures)
	}
	if sum.HeartbeatSuccessRate != 50 {
		t.Errorf("HeartbeatSuccessRate = %v, want 50", sum.HeartbeatSuccessRate)
	}
}

func TestSink_DatabaseRate(t *testing.T) {
	s := NewSink()
	s.DatabaseWrite()
	s.DatabaseWrite()
	s.DatabaseWrite()
	s.DatabaseError()
	s.DuplicateSnapshot()
	s.DuplicateTrade()

	sum := s.Summary()
	if sum.DatabaseSuccessRate != 75 {
		t.Errorf("DatabaseSuccessRate = %v, want 75", sum.DatabaseSuccessRate)
	}
	if sum.DuplicateSnapshots != 1 || sum.DuplicateTrades != 1 {
		t.Errorf("duplicates = %d/%d, want 1/1", sum.DuplicateSnapshots, sum.DuplicateTrades)
	}
}

func TestSink_Concurrent(t *testing.T) {
	s := NewSink()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.MessageReceived(KindTrade)
				s.DatabaseWrite()
			}
		}()
	}
	wg.Wait()

	sum := s.Summary()
	if sum.MessagesReceived != 8000 || sum.DatabaseWrites != 8000 {
		t.Errorf("messages/writes = %d/%d, want 8000/8000", sum.MessagesReceived, sum.DatabaseWrites)
	}
}
