// ABOUTME: Production Client/Dialer speaking JSON frames over a websocket
// ABOUTME: Translates protocol-engine frames into wire events and back

package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const socketHandshakeTimeout = 10 * time.Second

// frame is the JSON envelope exchanged with the protocol engine. Events from
// the engine mirror the Event types; requests carry an ID echoed by the
// matching "result" frame.
type frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// hello
	Version *Version        `json:"version,omitempty"`
	Creds   json.RawMessage `json:"creds,omitempty"`

	// qr / pair result
	Code  string `json:"code,omitempty"`
	Phone string `json:"phone,omitempty"`

	// connected
	Self string `json:"self,omitempty"`

	// keys.update
	Keys []keyFrame `json:"keys,omitempty"`

	// message / send
	MessageID string `json:"messageId,omitempty"`
	Chat      string `json:"chat,omitempty"`
	Sender    string `json:"sender,omitempty"`
	PushName  string `json:"pushName,omitempty"`
	Text      string `json:"text,omitempty"`
	FromMe    bool   `json:"fromMe,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// closed / result
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

type keyFrame struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	Value    Binary `json:"value,omitempty"`
}

// SocketDialer opens websocket connections to the protocol engine.
type SocketDialer struct {
	endpoint string
	logger   *slog.Logger
	dialer   *websocket.Dialer
}

// NewSocketDialer creates a dialer for the given websocket endpoint.
func NewSocketDialer(endpoint string, logger *slog.Logger) *SocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketDialer{
		endpoint: endpoint,
		logger:   logger.With("component", "wire"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: socketHandshakeTimeout,
		},
	}
}

// Dial opens a connection and performs the hello handshake. The returned
// Client starts emitting events immediately.
func (d *SocketDialer) Dial(ctx context.Context, cfg DialConfig) (Client, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.endpoint, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("dialing protocol engine: %w", err)
	}

	hello := frame{Type: "hello", Version: &cfg.Version}
	if cfg.Creds != nil {
		data, err := json.Marshal(cfg.Creds)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("encoding credentials: %w", err)
		}
		hello.Creds = data
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	c := &socketClient{
		conn:    conn,
		logger:  d.logger,
		events:  make(chan Event, 32),
		pending: make(map[string]chan frame),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// socketClient is one live websocket connection.
type socketClient struct {
	conn   *websocket.Conn
	logger *slog.Logger
	events chan Event

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *socketClient) Events() <-chan Event {
	return c.events
}

// Close tears the connection down without emitting a Closed event; the owner
// initiated the release and is not waiting for one.
func (c *socketClient) Close() error {
	c.shutdown()
	return nil
}

func (c *socketClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}

// readLoop is the sole sender on the events channel and closes it on exit.
func (c *socketClient) readLoop() {
	defer close(c.events)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.failPending()
			select {
			case <-c.closed:
				// Owner-initiated close; no closure event needed.
			default:
				c.emit(Closed{Reason: ReasonConnectionLost, Err: err})
			}
			c.shutdown()
			return
		}

		switch f.Type {
		case "result":
			c.deliverResult(f)
		case "qr":
			c.emit(QRChallenge{Code: f.Code})
		case "connected":
			self, err := ParseJID(f.Self)
			if err != nil {
				c.logger.Warn("connected frame with bad self JID", "self", f.Self, "error", err)
			}
			c.emit(Connected{Self: self})
		case "creds.update":
			var creds Credentials
			if err := json.Unmarshal(f.Creds, &creds); err != nil {
				c.logger.Error("dropping malformed creds.update frame", "error", err)
				continue
			}
			c.emit(CredsUpdate{Creds: &creds})
		case "keys.update":
			entries := make([]KeyEntry, 0, len(f.Keys))
			for _, k := range f.Keys {
				entries = append(entries, KeyEntry{Category: k.Category, ID: k.ID, Value: k.Value})
			}
			c.emit(KeysUpdate{Entries: entries})
		case "message":
			chat, err := ParseJID(f.Chat)
			if err != nil {
				c.logger.Warn("dropping message frame with bad chat JID", "chat", f.Chat, "error", err)
				continue
			}
			sender, _ := ParseJID(f.Sender)
			c.emit(InboundMessage{
				ID:        f.MessageID,
				Chat:      chat,
				Sender:    sender,
				PushName:  f.PushName,
				Text:      f.Text,
				FromMe:    f.FromMe,
				Timestamp: time.Unix(f.Timestamp, 0),
			})
		case "closed":
			c.failPending()
			var closeErr error
			if f.Error != "" {
				closeErr = errors.New(f.Error)
			}
			c.emit(Closed{Reason: parseReason(f.Reason), Err: closeErr})
			c.shutdown()
			return
		default:
			c.logger.Debug("ignoring unknown frame", "type", f.Type)
		}
	}
}

// emit delivers an event unless the connection was already released.
func (c *socketClient) emit(evt Event) {
	select {
	case c.events <- evt:
	case <-c.closed:
	}
}

func (c *socketClient) deliverResult(f frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Debug("result frame with no pending request", "id", f.ID)
		return
	}
	ch <- f
}

// failPending releases every waiter; a closed reply channel reads as a
// connection-closed error.
func (c *socketClient) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

var errConnClosed = errors.New("connection closed")

// request writes a frame with a fresh ID and waits for the matching result.
func (c *socketClient) request(ctx context.Context, f frame) (frame, error) {
	f.ID = uuid.New().String()
	ch := make(chan frame, 1)

	c.pendingMu.Lock()
	c.pending[f.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, f.ID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(f)
	c.writeMu.Unlock()
	if err != nil {
		return frame{}, fmt.Errorf("writing %s frame: %w", f.Type, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return frame{}, errConnClosed
		}
		if resp.Error != "" {
			return frame{}, errors.New(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	case <-c.closed:
		return frame{}, errConnClosed
	}
}

func (c *socketClient) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	resp, err := c.request(ctx, frame{Type: "pair", Phone: phone})
	if err != nil {
		return "", fmt.Errorf("requesting pairing code: %w", err)
	}
	if resp.Code == "" {
		return "", errors.New("requesting pairing code: empty code in result")
	}
	return resp.Code, nil
}

func (c *socketClient) SendText(ctx context.Context, to JID, text string) error {
	_, err := c.request(ctx, frame{Type: "send", Chat: to.String(), Text: text})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// parseReason maps an engine-reported closure reason onto the taxonomy.
func parseReason(reason string) DisconnectReason {
	switch DisconnectReason(reason) {
	case ReasonLoggedOut, ReasonConnectionLost, ReasonStreamError, ReasonServerRestart:
		return DisconnectReason(reason)
	default:
		return ReasonUnknown
	}
}
