// ABOUTME: Connection Manager event loop driving the lifecycle state machine
// ABOUTME: Owns the live handle, persists session updates, schedules reconnects

package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/wabridge/internal/logbuf"
	"github.com/2389/wabridge/internal/session"
	"github.com/2389/wabridge/internal/wire"
)

// ErrNotConnected is returned by SendText while no authenticated session is
// open.
var ErrNotConnected = errors.New("not connected")

// Config holds the manager's timing and retry policy.
type Config struct {
	// VersionURL is the protocol version descriptor endpoint. Empty means
	// always use the cached default.
	VersionURL string

	// SettleDelay is how long to wait after opening a handle before
	// requesting a pairing code.
	SettleDelay time.Duration

	// ReconnectMinDelay and ReconnectMaxDelay bound the backoff between
	// reconnect attempts after a transient disconnect.
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	// LoggedOutDelay is the fixed delay before the single reconnect that
	// follows an authoritative logout.
	LoggedOutDelay time.Duration

	// ResetDelay is the delay between a manual reset (or pair) and the next
	// connect attempt.
	ResetDelay time.Duration

	// RetryDelay is the delay before retrying after the connect sequence
	// itself failed (store unreachable, dial failed).
	RetryDelay time.Duration

	// MaxRetries bounds consecutive connect-sequence failures before the
	// manager stops auto-retrying and waits for a manual reset. Zero means
	// retry forever.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 3 * time.Second
	}
	if c.ReconnectMinDelay <= 0 {
		c.ReconnectMinDelay = 2 * time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = time.Minute
	}
	if c.LoggedOutDelay <= 0 {
		c.LoggedOutDelay = 2 * time.Second
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = 500 * time.Millisecond
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

// timerKind distinguishes scheduled loop callbacks.
type timerKind int

const (
	timerNone timerKind = iota
	timerReconnect
	timerPairCode
)

// loopMsg is one unit of work for the event loop: either a wire event or a
// timer firing. The epoch stamps when it was produced; stale messages are
// dropped.
type loopMsg struct {
	epoch uint64
	evt   wire.Event
	timer timerKind
	phone string
}

type pairOp struct {
	phone string
	reply chan error
}

type resetOp struct {
	reply chan error
}

// Manager owns the live connection handle and runs the state machine.
type Manager struct {
	cfg    Config
	store  session.Store
	dialer wire.Dialer
	logs   *logbuf.Buffer
	logger *slog.Logger

	onMessage func(wire.InboundMessage)

	ops    chan any
	loopCh chan loopMsg
	done   chan struct{}

	// Loop-owned; never touched outside Run.
	epoch        uint64
	pendingPhone string
	errRetries   int

	// Snapshot state, readable from any goroutine.
	mu          sync.RWMutex
	status      Status
	qrDataURL   string
	pairingCode string
	attempts    int
	client      wire.Client
}

// New creates a manager. Run must be called before operations take effect.
func New(cfg Config, store session.Store, dialer wire.Dialer, logs *logbuf.Buffer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg.withDefaults(),
		store:  store,
		dialer: dialer,
		logs:   logs,
		logger: logger.With("component", "manager"),
		ops:    make(chan any),
		loopCh: make(chan loopMsg, 64),
		done:   make(chan struct{}),
		status: StatusInitializing,
	}
}

// OnMessage registers the inbound-message handler. It is invoked on the event
// loop, only while the status is connected. Must be set before Run.
func (m *Manager) OnMessage(fn func(wire.InboundMessage)) {
	m.onMessage = fn
}

// Run starts the initial connect attempt and processes events until the
// context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	m.logger.Info("connection manager starting")

	m.connect(ctx, "")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connection manager shutting down")
			m.epoch++
			m.releaseClient()
			m.setState(StatusDisconnected, "", "")
			return nil
		case o := <-m.ops:
			switch o := o.(type) {
			case pairOp:
				o.reply <- m.handlePair(ctx, o.phone)
			case resetOp:
				o.reply <- m.handleReset(ctx)
			}
		case msg := <-m.loopCh:
			if msg.epoch != m.epoch {
				m.logger.Debug("dropping stale loop message", "epoch", msg.epoch, "current", m.epoch)
				continue
			}
			if msg.evt != nil {
				m.handleWireEvent(ctx, msg.evt)
				continue
			}
			switch msg.timer {
			case timerReconnect:
				m.connect(ctx, msg.phone)
			case timerPairCode:
				m.requestPairingCode(ctx, msg.phone)
			}
		}
	}
}

// Pair wipes the session and reconnects in code-based pairing mode for the
// given phone number (digits only).
func (m *Manager) Pair(ctx context.Context, phone string) error {
	return m.submit(ctx, pairOp{phone: phone, reply: make(chan error, 1)})
}

// Reset releases the live handle, wipes the session store and schedules a
// fresh connect attempt.
func (m *Manager) Reset(ctx context.Context) error {
	return m.submit(ctx, resetOp{reply: make(chan error, 1)})
}

func (m *Manager) submit(ctx context.Context, o any) error {
	var reply chan error
	switch o := o.(type) {
	case pairOp:
		reply = o.reply
	case resetOp:
		reply = o.reply
	}
	select {
	case m.ops <- o:
	case <-m.done:
		return errors.New("connection manager stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendText forwards a text message over the live handle. It fails with
// ErrNotConnected unless an authenticated session is open.
func (m *Manager) SendText(ctx context.Context, to wire.JID, text string) error {
	m.mu.RLock()
	client, status := m.client, m.status
	m.mu.RUnlock()
	if status != StatusConnected || client == nil {
		return ErrNotConnected
	}
	return client.SendText(ctx, to, text)
}

// Snapshot returns the current published connection state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Status:            m.status,
		QRDataURL:         m.qrDataURL,
		PairingCode:       m.pairingCode,
		ReconnectAttempts: m.attempts,
	}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// connect runs one connect attempt. It supersedes any pending timers, loads
// the stored session, fetches the protocol version best-effort and opens a
// new live handle. phone is non-empty for code-based pairing.
func (m *Manager) connect(ctx context.Context, phone string) {
	m.epoch++
	m.releaseClient()
	m.pendingPhone = phone
	m.setState(StatusConnecting, "", "")
	m.logs.Append("Connecting to WhatsApp...")

	creds, err := m.loadCreds(ctx)
	if err != nil {
		m.enterError(fmt.Errorf("loading stored session: %w", err))
		return
	}
	if creds == nil {
		m.logger.Info("no stored session, starting fresh pairing flow")
	}

	version := m.protocolVersion(ctx)

	client, err := m.dialer.Dial(ctx, wire.DialConfig{Creds: creds, Version: version})
	if err != nil {
		m.enterError(fmt.Errorf("opening connection: %w", err))
		return
	}
	m.adoptClient(client)
	go m.pump(client, m.epoch)
	m.logger.Info("connection opened", "version", version, "pairing_phone", phone != "")

	if phone != "" {
		// Let the handle settle before asking the remote for a code.
		m.schedule(m.cfg.SettleDelay, loopMsg{timer: timerPairCode, phone: phone})
	}
}

// loadCreds reads the stored credential bundle. Absence yields (nil, nil);
// any other failure aborts the attempt — proceeding with a fabricated fresh
// identity would desynchronize from a real remote session.
func (m *Manager) loadCreds(ctx context.Context) (*wire.Credentials, error) {
	data, err := m.store.Read(ctx, session.CredsKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var creds wire.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decoding stored credentials: %w", err)
	}
	return &creds, nil
}

// protocolVersion fetches the latest descriptor, falling back to the cached
// default. The fetch is best-effort and never aborts the attempt.
func (m *Manager) protocolVersion(ctx context.Context) wire.Version {
	if m.cfg.VersionURL == "" {
		return wire.DefaultVersion
	}
	v, err := wire.FetchLatestVersion(ctx, m.cfg.VersionURL)
	if err != nil {
		m.logger.Warn("version fetch failed, using cached default",
			"default", wire.DefaultVersion, "error", err)
		return wire.DefaultVersion
	}
	return v
}

// pump forwards one client's events into the loop, stamped with the epoch the
// client was adopted under.
func (m *Manager) pump(client wire.Client, epoch uint64) {
	for evt := range client.Events() {
		select {
		case m.loopCh <- loopMsg{epoch: epoch, evt: evt}:
		case <-m.done:
			return
		}
	}
}

// schedule arranges a loop message after the delay, stamped with the current
// epoch so a superseding operation invalidates it.
func (m *Manager) schedule(d time.Duration, msg loopMsg) {
	msg.epoch = m.epoch
	time.AfterFunc(d, func() {
		select {
		case m.loopCh <- msg:
		case <-m.done:
		}
	})
}

func (m *Manager) handleWireEvent(ctx context.Context, evt wire.Event) {
	switch evt := evt.(type) {
	case wire.QRChallenge:
		dataURL, err := renderQRDataURL(evt.Code)
		if err != nil {
			m.logger.Error("rendering QR challenge", "error", err)
			return
		}
		m.errRetries = 0
		m.setState(StatusScanning, dataURL, "")
		m.setAttempts(0)
		m.logs.Append("QR code updated — scan it with WhatsApp on your phone")

	case wire.CredsUpdate:
		// The store write is the durable commit point: fail the attempt
		// rather than proceed with diverged credentials.
		if err := m.persistCreds(ctx, evt.Creds); err != nil {
			m.logs.Append("Failed to persist credentials — restarting connection")
			m.enterError(err)
		}

	case wire.KeysUpdate:
		if err := m.persistKeys(ctx, evt.Entries); err != nil {
			m.logs.Append("Failed to persist key material — restarting connection")
			m.enterError(err)
		}

	case wire.Connected:
		m.errRetries = 0
		m.pendingPhone = ""
		m.setState(StatusConnected, "", "")
		m.setAttempts(0)
		m.logger.Info("authenticated session open", "self", evt.Self)
		if evt.Self.IsEmpty() {
			m.logs.Append("Connected to WhatsApp")
		} else {
			m.logs.Appendf("Connected to WhatsApp as %s", evt.Self)
		}

	case wire.InboundMessage:
		if m.Status() == StatusConnected && m.onMessage != nil {
			m.onMessage(evt)
		}

	case wire.Closed:
		m.handleClosed(ctx, evt)
	}
}

func (m *Manager) handleClosed(ctx context.Context, evt wire.Closed) {
	m.epoch++
	m.releaseClient()

	if evt.Reason.IsLoggedOut() {
		m.logger.Info("authoritative logout, wiping session", "error", evt.Err)
		m.logs.Append("Logged out by WhatsApp — session wiped, re-pairing required")
		m.setState(StatusLoggedOut, "", "")
		m.setAttempts(0)
		m.pendingPhone = ""
		if err := m.store.Clear(ctx); err != nil {
			m.enterError(fmt.Errorf("clearing session after logout: %w", err))
			return
		}
		m.schedule(m.cfg.LoggedOutDelay, loopMsg{timer: timerReconnect})
		return
	}

	attempt := m.incAttempts()
	delay := m.backoff(attempt)
	m.setState(StatusReconnecting, "", "")
	m.logger.Warn("connection closed, reconnecting",
		"reason", evt.Reason, "attempt", attempt, "delay", delay, "error", evt.Err)
	m.logs.Appendf("Disconnected (%s) — reconnecting in %s", evt.Reason, delay)
	m.schedule(delay, loopMsg{timer: timerReconnect, phone: m.pendingPhone})
}

// backoff doubles the reconnect delay per attempt, capped at the maximum.
func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.cfg.ReconnectMinDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.cfg.ReconnectMaxDelay {
			return m.cfg.ReconnectMaxDelay
		}
	}
	return delay
}

func (m *Manager) requestPairingCode(ctx context.Context, phone string) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return
	}
	code, err := client.RequestPairingCode(ctx, phone)
	if err != nil {
		m.enterError(fmt.Errorf("requesting pairing code: %w", err))
		return
	}
	formatted := formatPairingCode(code)
	m.errRetries = 0
	m.setState(StatusPairing, "", formatted)
	m.setAttempts(0)
	m.logs.Appendf("Pairing code: %s — enter it on your phone", formatted)
}

func (m *Manager) handlePair(ctx context.Context, phone string) error {
	if phone == "" {
		return errors.New("phone number required")
	}
	m.logger.Info("manual pairing requested", "phone", phone)
	m.logs.Appendf("Code pairing requested for %s", phone)
	return m.restart(ctx, phone)
}

func (m *Manager) handleReset(ctx context.Context) error {
	m.logger.Info("manual reset requested")
	m.logs.Append("Session reset requested")
	return m.restart(ctx, "")
}

// restart implements the external-reset transition: release the handle, wipe
// the session, clear artifacts and counters, then schedule a fresh connect.
func (m *Manager) restart(ctx context.Context, phone string) error {
	m.epoch++
	m.releaseClient()
	m.errRetries = 0
	m.pendingPhone = phone
	m.setState(StatusDisconnected, "", "")
	m.setAttempts(0)
	if err := m.store.Clear(ctx); err != nil {
		err = fmt.Errorf("clearing session store: %w", err)
		m.enterError(err)
		return err
	}
	m.schedule(m.cfg.ResetDelay, loopMsg{timer: timerReconnect, phone: phone})
	return nil
}

// enterError converts a connect-sequence failure into the error state and a
// delayed retry, unless the retry budget is exhausted.
func (m *Manager) enterError(err error) {
	m.epoch++
	m.releaseClient()
	m.logger.Error("connection attempt failed", "error", err)
	m.logs.Appendf("Connection error: %v", err)
	m.setState(StatusError, "", "")

	m.errRetries++
	if m.cfg.MaxRetries > 0 && m.errRetries > m.cfg.MaxRetries {
		m.logger.Error("retry budget exhausted, waiting for manual reset",
			"failures", m.errRetries)
		m.logs.Append("Retry budget exhausted — use /reset to try again")
		return
	}
	m.schedule(m.cfg.RetryDelay, loopMsg{timer: timerReconnect, phone: m.pendingPhone})
}

func (m *Manager) persistCreds(ctx context.Context, creds *wire.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := m.store.Write(ctx, session.CredsKey, data); err != nil {
		return fmt.Errorf("persisting credentials: %w", err)
	}
	m.logger.Debug("credentials persisted")
	return nil
}

func (m *Manager) persistKeys(ctx context.Context, entries []wire.KeyEntry) error {
	for _, e := range entries {
		key := session.KeyName(e.Category, e.ID)
		if e.Value == nil {
			if err := m.store.Remove(ctx, key); err != nil {
				return fmt.Errorf("removing key material %q: %w", key, err)
			}
			continue
		}
		if err := m.store.Write(ctx, key, e.Value); err != nil {
			return fmt.Errorf("persisting key material %q: %w", key, err)
		}
	}
	return nil
}

// adoptClient installs a new live handle. The previous one must already have
// been released.
func (m *Manager) adoptClient(client wire.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

// releaseClient closes and drops the live handle and invalidates the pairing
// artifact, which never outlives the state that produced it.
func (m *Manager) releaseClient() {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.qrDataURL = ""
	m.pairingCode = ""
	m.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

func (m *Manager) setState(status Status, qrDataURL, pairingCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.qrDataURL = qrDataURL
	m.pairingCode = pairingCode
}

func (m *Manager) setAttempts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = n
}

func (m *Manager) incAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	return m.attempts
}
