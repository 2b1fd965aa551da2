// ABOUTME: Mock Client and Dialer implementations for testing
// ABOUTME: Allows tests to script connection lifecycles without a network

package wire

import (
	"context"
	"errors"
	"sync"
)

// MockClient is a scriptable Client for tests. Events are injected with Emit;
// outbound calls are recorded for assertions.
type MockClient struct {
	mu         sync.Mutex
	events     chan Event
	closed     bool
	sent       []SentText
	pairCalls  []string
	PairCode   string
	PairErr    error
	SendErr    error
	CloseCalls int
}

// SentText records one SendText call.
type SentText struct {
	To   JID
	Text string
}

// NewMockClient creates a mock with a buffered event channel.
func NewMockClient() *MockClient {
	return &MockClient{
		events:   make(chan Event, 32),
		PairCode: "ABCD-1234",
	}
}

// Emit injects an event as if the network produced it. Emitting Closed also
// closes the event stream, matching real client behavior.
func (m *MockClient) Emit(evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events <- evt
	if _, isClosed := evt.(Closed); isClosed {
		m.closed = true
		close(m.events)
	}
}

func (m *MockClient) Events() <-chan Event {
	return m.events
}

func (m *MockClient) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	m.mu.Lock()
	m.pairCalls = append(m.pairCalls, phone)
	m.mu.Unlock()
	if m.PairErr != nil {
		return "", m.PairErr
	}
	return m.PairCode, nil
}

func (m *MockClient) SendText(ctx context.Context, to JID, text string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentText{To: to, Text: text})
	return nil
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// Sent returns a copy of the recorded SendText calls.
func (m *MockClient) Sent() []SentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentText, len(m.sent))
	copy(out, m.sent)
	return out
}

// PairCalls returns the phone numbers passed to RequestPairingCode.
func (m *MockClient) PairCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.pairCalls))
	copy(out, m.pairCalls)
	return out
}

// MockDialer hands out scripted clients in order. When the script runs dry it
// creates fresh MockClients so reconnect loops keep working.
type MockDialer struct {
	mu      sync.Mutex
	queue   []*MockClient
	clients []*MockClient
	configs []DialConfig
	DialErr error
	// DialErrCount limits how many dials fail before DialErr stops applying.
	// Zero means every dial fails while DialErr is set.
	DialErrCount int
	dialErrSeen  int
}

// NewMockDialer creates a dialer that will return the given clients in order.
func NewMockDialer(clients ...*MockClient) *MockDialer {
	return &MockDialer{queue: clients}
}

func (d *MockDialer) Dial(ctx context.Context, cfg DialConfig) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configs = append(d.configs, cfg)

	if d.DialErr != nil {
		if d.DialErrCount == 0 || d.dialErrSeen < d.DialErrCount {
			d.dialErrSeen++
			return nil, d.DialErr
		}
	}

	var c *MockClient
	if len(d.queue) > 0 {
		c = d.queue[0]
		d.queue = d.queue[1:]
	} else {
		c = NewMockClient()
	}
	d.clients = append(d.clients, c)
	return c, nil
}

// DialCount returns how many Dial calls were made, including failed ones.
func (d *MockDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.configs)
}

// Clients returns the clients handed out so far.
func (d *MockDialer) Clients() []*MockClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockClient, len(d.clients))
	copy(out, d.clients)
	return out
}

// Configs returns the DialConfig passed to each Dial call.
func (d *MockDialer) Configs() []DialConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DialConfig, len(d.configs))
	copy(out, d.configs)
	return out
}

// ErrMockDial is a convenience error for scripting dial failures.
var ErrMockDial = errors.New("mock dial failure")
