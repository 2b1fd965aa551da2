// ABOUTME: Echo policy for inbound messages and normalization for manual sends
// ABOUTME: Reads connection state only through the sender; never mutates it

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/wabridge/internal/logbuf"
	"github.com/2389/wabridge/internal/wire"
)

// sendTimeout bounds a single reply or manual send.
const sendTimeout = 30 * time.Second

// TextSender forwards a text message over the live connection. The connection
// manager satisfies this; it fails with its "not connected" error unless an
// authenticated session is open.
type TextSender interface {
	SendText(ctx context.Context, to wire.JID, text string) error
}

// Config holds relay tuning.
type Config struct {
	// ReplyPrefix is prepended to the echoed text.
	ReplyPrefix string

	// SeenCacheSize bounds the duplicate-suppression cache.
	SeenCacheSize int
}

// Relay applies the auto-reply policy and handles manual sends.
type Relay struct {
	sender TextSender
	logs   *logbuf.Buffer
	logger *slog.Logger
	seen   *seenCache
	prefix string
}

// New creates a relay forwarding through the given sender.
func New(cfg Config, sender TextSender, logs *logbuf.Buffer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.ReplyPrefix
	if prefix == "" {
		prefix = "Echo: "
	}
	return &Relay{
		sender: sender,
		logs:   logs,
		logger: logger.With("component", "relay"),
		seen:   newSeenCache(cfg.SeenCacheSize),
		prefix: prefix,
	}
}

// HandleInbound processes one inbound message event. Self-echoes, messages
// without text and redelivered duplicates are ignored. For everything else a
// log entry is appended and the text is echoed back to the conversation;
// send failures are logged and swallowed.
func (r *Relay) HandleInbound(msg wire.InboundMessage) {
	if msg.FromMe {
		return
	}
	if msg.Text == "" {
		return
	}
	if r.seen.checkAndMark(msg.ID) {
		r.logger.Debug("ignoring redelivered message", "id", msg.ID)
		return
	}

	from := msg.PushName
	if from == "" {
		from = msg.Sender.String()
	}
	r.logs.Appendf("Message from %s: %s", from, msg.Text)
	r.logger.Info("received message", "chat", msg.Chat, "sender", msg.Sender)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := r.sender.SendText(ctx, msg.Chat, r.prefix+msg.Text); err != nil {
		r.logger.Error("failed to send reply", "chat", msg.Chat, "error", err)
		r.logs.Appendf("Failed to reply to %s: %v", msg.Chat, err)
	}
}

// Send forwards a manual send from the HTTP facade. Bare phone numbers are
// normalized to full conversation addresses. The result is reported
// synchronously; ErrNotConnected from the sender passes through.
func (r *Relay) Send(ctx context.Context, to, text string) error {
	jid, err := NormalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := r.sender.SendText(ctx, jid, text); err != nil {
		return err
	}
	r.logs.Appendf("Sent message to %s", jid)
	return nil
}

// NormalizeRecipient turns a recipient string into a conversation address.
// A bare phone number keeps only its digits and gets the default user server;
// anything already containing a server passes through ParseJID unchanged.
func NormalizeRecipient(to string) (wire.JID, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return wire.JID{}, fmt.Errorf("empty recipient")
	}
	if strings.Contains(to, "@") {
		return wire.ParseJID(to)
	}
	var digits strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return wire.JID{}, fmt.Errorf("recipient %q has no digits", to)
	}
	return wire.NewUserJID(digits.String()), nil
}
