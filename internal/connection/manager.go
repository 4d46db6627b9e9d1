package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/protocol"
)

// Manager owns the exchange session: it dials, replays subscriptions,
// supervises the session and reconnects with backoff.
type Manager struct {
	cfg       ManagerConfig
	sink      *metrics.Sink
	tracker   *Tracker
	logger    *slog.Logger
	newClient ClientFactory
	now       func() time.Time

	// Output to the router. Never closed.
	out chan TimestampedMessage

	mu      sync.RWMutex
	state   State
	client  Client
	session uint64     // id of the current session, 0 when none
	seq     uint64     // last session id handed out
	fail    chan error // write failures of the current session
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) {
		m.newClient = f
	}
}

// WithTracker shares a subscription tracker with other components.
func WithTracker(t *Tracker) ManagerOption {
	return func(m *Manager) {
		m.tracker = t
	}
}

// WithClock sets the time source used for commands and health checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a disconnected Manager.
func NewManager(cfg ManagerConfig, sink *metrics.Sink, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.NewSink()
	}
	if cfg.MessageBufferSize < 1 {
		cfg.MessageBufferSize = 1
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = config.DefaultHealthInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = config.DefaultHeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = config.DefaultHeartbeatTimeout
	}

	m := &Manager{
		cfg:       cfg,
		sink:      sink,
		tracker:   NewTracker(),
		logger:    logger.With("component", "connection"),
		newClient: NewClient,
		now:       time.Now,
		out:       make(chan TimestampedMessage, cfg.MessageBufferSize),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Connect starts the supervisory loop. Calling it while running is a no-op.
// It returns ErrRetriesExhausted once the Manager has given up.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateGivenUp {
		return ErrRetriesExhausted
	}
	if m.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.run(runCtx)

	return nil
}

// Disconnect stops the supervisory loop, waits for it (bounded by ctx) and
// closes the socket. It is safe to call when already disconnected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	m.logger.Info("disconnecting")
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.mu.Lock()
	c := m.client
	m.client = nil
	m.session = 0
	m.running = false
	if m.state != StateGivenUp {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}

	m.logger.Info("disconnected")
	return nil
}

// Subscribe records every (symbol, channel) pair and, when connected,
// sends one SUBSCRIBE per pair with a fresh correlation id. A pair already
// sent on the current session, by replay or an earlier call, is not sent
// again and keeps its correlation id.
func (m *Manager) Subscribe(symbols, channels []string) {
	session := m.liveSession()
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		for _, ch := range channels {
			if session != 0 && !m.tracker.MarkSent(sym, ch, session) {
				continue
			}
			cmd := protocol.NewCommand(protocol.ActionSubscribe, protocol.Channel(ch), sym, m.now())
			m.tracker.Add(sym, ch, cmd.ChannelUUID)
			if session != 0 {
				m.sendCommand(cmd)
			}
		}
	}
}

// Unsubscribe forgets symbols and, when connected, sends UNSUBSCRIBE for
// each channel they were active on.
func (m *Manager) Unsubscribe(symbols []string) {
	connected := m.Connected()
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		for _, ch := range m.tracker.Remove(sym) {
			if connected {
				m.sendCommand(protocol.NewCommand(protocol.ActionUnsubscribe, protocol.Channel(ch), sym, m.now()))
			}
		}
	}
}

// Send writes a message to the current session. It returns false, with a
// warning logged, when there is no session or the write fails. A failed
// write ends the session.
func (m *Manager) Send(msg []byte) bool {
	m.mu.RLock()
	c := m.client
	fail := m.fail
	state := m.state
	m.mu.RUnlock()

	if c == nil || (state != StateConnected && state != StateListening) {
		m.logger.Warn("cannot send message, websocket is not connected", "state", state)
		return false
	}

	if err := c.Send(msg); err != nil {
		m.logger.Warn("send failed", "error", err)
		select {
		case fail <- fmt.Errorf("%w: %v", ErrWriteFailed, err):
		default:
		}
		return false
	}
	return true
}

// Connected reports whether a session is established.
func (m *Manager) Connected() bool {
	s := m.State()
	return s == StateConnected || s == StateListening
}

// liveSession returns the current session id, or 0 when not connected.
func (m *Manager) liveSession() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateConnected && m.state != StateListening {
		return 0
	}
	return m.session
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Messages returns raw frames from every session.
func (m *Manager) Messages() <-chan TimestampedMessage {
	return m.out
}

// Tracker returns the subscription tracker.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Done is closed when the Manager gives up reconnecting.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns ErrRetriesExhausted after Done is closed, nil before.
func (m *Manager) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Debug("state change", "from", prev, "to", s)
	}
}

// run is the supervisory loop. It is the only writer of state and client
// besides Disconnect.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	b := &backoff.Backoff{
		Min:    m.cfg.ReconnectDelay,
		Max:    m.cfg.ReconnectMaxDelay,
		Factor: m.cfg.ReconnectFactor,
		Jitter: false,
	}

	// retries counts against the budget; consecutive drives the delay and
	// always resets on a successful connect.
	retries := 0
	consecutive := 0
	first := true

	for {
		if ctx.Err() != nil {
			return
		}

		m.setState(StateConnecting)
		m.sink.ConnectionAttempt()
		if !first {
			m.sink.ReconnectAttempt()
		}
		first = false

		c := m.newClient(m.cfg.Client, m.logger)
		err := c.Connect(ctx)
		if err != nil {
			c.Close()
			if ctx.Err() != nil {
				return
			}
			m.sink.ConnectionFailed()
			m.logger.Error("connection failed", "url", m.cfg.Client.URL, "error", err)
		} else {
			m.sink.ConnectionSucceeded()
			consecutive = 0
			if !m.cfg.CarryRetries {
				retries = 0
			}
			m.logger.Info("websocket connected", "url", m.cfg.Client.URL)

			err = m.runSession(ctx, c)

			c.Close()
			m.sink.Disconnected()
			m.mu.Lock()
			m.client = nil
			m.session = 0
			m.fail = nil
			m.mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrSilence) || errors.Is(err, ErrHeartbeatFailures) {
				m.logger.Warn("session abandoned", "reason", err)
			} else {
				m.sink.ConnectionFailed()
				m.logger.Error("websocket connection lost", "error", err)
			}
		}

		retries++
		consecutive++
		if m.cfg.MaxRetries > 0 && retries >= m.cfg.MaxRetries {
			m.giveUp(retries)
			return
		}

		delay := b.ForAttempt(float64(consecutive - 1))
		m.setState(StateReconnecting)
		m.logger.Info("attempting to reconnect",
			"attempt", retries,
			"max_retries", m.cfg.MaxRetries,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) giveUp(retries int) {
	m.setState(StateGivenUp)
	m.logger.Error("max retries reached, giving up", "attempts", retries)

	m.doneOnce.Do(func() {
		m.err = ErrRetriesExhausted
		close(m.done)
	})
}

// runSession runs one connected session until it fails or ctx ends.
func (m *Manager) runSession(ctx context.Context, c Client) error {
	fail := make(chan error, 1)

	m.mu.Lock()
	m.seq++
	id := m.seq
	m.client = c
	m.session = id
	m.fail = fail
	m.state = StateConnected
	m.mu.Unlock()

	m.replay(id)
	m.setState(StateListening)

	g, gctx := errgroup.WithContext(ctx)
	seen := make(chan time.Time, 1)
	beats := make(chan bool, 1)

	health := &healthMonitor{
		maxSilence: m.cfg.MaxSilence,
		threshold:  m.cfg.HeartbeatFailures,
		sink:       m.sink,
		logger:     m.logger.With("monitor", "health"),
		now:        m.now,
	}
	heartbeat := &heartbeatMonitor{
		mode:    m.cfg.HeartbeatMode,
		timeout: m.cfg.HeartbeatTimeout,
		sink:    m.sink,
		logger:  m.logger.With("monitor", "heartbeat"),
	}

	g.Go(func() error {
		return m.listen(gctx, c, seen, fail)
	})
	g.Go(func() error {
		ticker := time.NewTicker(m.cfg.HealthInterval)
		defer ticker.Stop()
		return health.run(gctx, ticker.C, seen, beats)
	})
	g.Go(func() error {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		return heartbeat.run(gctx, c, ticker.C, beats)
	})

	return g.Wait()
}

// listen forwards frames to the output channel and reports activity to the
// health monitor.
func (m *Manager) listen(ctx context.Context, c Client, seen chan time.Time, fail <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-fail:
			return err

		case err := <-c.Errors():
			m.drain(ctx, c, seen)
			return err

		case msg := <-c.Messages():
			offerLatest(seen, msg.ReceivedAt)

			select {
			case m.out <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// drain forwards frames the client buffered before its read loop failed.
func (m *Manager) drain(ctx context.Context, c Client, seen chan time.Time) {
	for {
		select {
		case msg := <-c.Messages():
			offerLatest(seen, msg.ReceivedAt)
			select {
			case m.out <- msg:
			case <-ctx.Done():
				return
			}
		default:
			return
		}
	}
}

// replay re-sends every tracked subscription with fresh correlation ids,
// skipping pairs Subscribe already sent on this session.
func (m *Manager) replay(session uint64) {
	subs := m.tracker.Active()
	if len(subs) == 0 {
		return
	}
	m.logger.Info("resubscribing", "subscriptions", len(subs))

	for _, s := range subs {
		if !m.tracker.MarkSent(s.Symbol, s.Channel, session) {
			continue
		}
		cmd := protocol.NewCommand(protocol.ActionSubscribe, protocol.Channel(s.Channel), s.Symbol, m.now())
		m.tracker.Assign(s.Symbol, s.Channel, cmd.ChannelUUID)
		m.sendCommand(cmd)
	}
}

func (m *Manager) sendCommand(cmd protocol.Command) bool {
	data, err := cmd.Encode()
	if err != nil {
		m.logger.Error("encode command", "error", err)
		return false
	}
	ok := m.Send(data)
	if ok {
		m.logger.Info("command sent",
			"action", cmd.Action,
			"channel", cmd.Channel,
			"symbol", cmd.Symbol,
			"channel_uuid", cmd.ChannelUUID,
		)
	}
	return ok
}
