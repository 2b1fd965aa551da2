// ABOUTME: Tests for the echo relay policy and recipient normalization
// ABOUTME: Uses a recording TextSender; no live connection involved

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/wabridge/internal/logbuf"
	"github.com/2389/wabridge/internal/wire"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []struct {
		to   wire.JID
		text string
	}
	err error
}

func (s *recordingSender) SendText(ctx context.Context, to wire.JID, text string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, struct {
		to   wire.JID
		text string
	}{to, text})
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestRelay(cfg Config, sender TextSender) (*Relay, *logbuf.Buffer) {
	logs := logbuf.New(20)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, sender, logs, logger), logs
}

func inbound(id, text string) wire.InboundMessage {
	return wire.InboundMessage{
		ID:     id,
		Chat:   wire.NewUserJID("15550001111"),
		Sender: wire.NewUserJID("15550001111"),
		Text:   text,
	}
}

func TestHandleInboundEchoesToSameChat(t *testing.T) {
	sender := &recordingSender{}
	r, logs := newTestRelay(Config{}, sender)

	msg := inbound("M1", "hello there")
	msg.PushName = "Ada"
	r.HandleInbound(msg)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, wire.NewUserJID("15550001111"), sender.sent[0].to)
	assert.Equal(t, "Echo: hello there", sender.sent[0].text)

	lines := logs.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "Message from Ada: hello there")
}

func TestHandleInboundCustomPrefix(t *testing.T) {
	sender := &recordingSender{}
	r, _ := newTestRelay(Config{ReplyPrefix: "You said: "}, sender)

	r.HandleInbound(inbound("M1", "ping"))

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "You said: ping", sender.sent[0].text)
}

func TestHandleInboundSkipsOwnMessages(t *testing.T) {
	sender := &recordingSender{}
	r, logs := newTestRelay(Config{}, sender)

	msg := inbound("M1", "from myself")
	msg.FromMe = true
	r.HandleInbound(msg)

	assert.Equal(t, 0, sender.count())
	assert.Empty(t, logs.Lines())
}

func TestHandleInboundSkipsEmptyText(t *testing.T) {
	sender := &recordingSender{}
	r, logs := newTestRelay(Config{}, sender)

	r.HandleInbound(inbound("M1", ""))

	assert.Equal(t, 0, sender.count())
	assert.Empty(t, logs.Lines())
}

func TestHandleInboundSuppressesRedelivery(t *testing.T) {
	sender := &recordingSender{}
	r, _ := newTestRelay(Config{}, sender)

	r.HandleInbound(inbound("M1", "hello"))
	r.HandleInbound(inbound("M1", "hello"))
	r.HandleInbound(inbound("M2", "different message"))

	assert.Equal(t, 2, sender.count())
}

func TestHandleInboundWithoutIDNeverDeduplicated(t *testing.T) {
	sender := &recordingSender{}
	r, _ := newTestRelay(Config{}, sender)

	r.HandleInbound(inbound("", "one"))
	r.HandleInbound(inbound("", "two"))

	assert.Equal(t, 2, sender.count())
}

func TestHandleInboundSwallowsSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("not connected")}
	r, logs := newTestRelay(Config{}, sender)

	// Must not panic or propagate; the failure lands in the log feed.
	r.HandleInbound(inbound("M1", "hello"))

	var found bool
	for _, line := range logs.Lines() {
		if strings.Contains(line, "Failed to reply") {
			found = true
		}
	}
	assert.True(t, found, "send failure missing from logs: %v", logs.Lines())
}

func TestHandleInboundFallsBackToSenderAddress(t *testing.T) {
	sender := &recordingSender{}
	r, logs := newTestRelay(Config{}, sender)

	r.HandleInbound(inbound("M1", "hi"))

	require.NotEmpty(t, logs.Lines())
	assert.Contains(t, logs.Lines()[0], "Message from 15550001111@s.whatsapp.net: hi")
}

func TestSendNormalizesBareNumber(t *testing.T) {
	sender := &recordingSender{}
	r, logs := newTestRelay(Config{}, sender)

	require.NoError(t, r.Send(context.Background(), "+1 (555) 000-1111", "hello"))
	require.Equal(t, 1, sender.count())
	assert.Equal(t, wire.NewUserJID("15550001111"), sender.sent[0].to)
	assert.Equal(t, "hello", sender.sent[0].text)

	require.NotEmpty(t, logs.Lines())
	assert.Contains(t, logs.Lines()[0], "Sent message to 15550001111@s.whatsapp.net")
}

func TestSendPropagatesSenderError(t *testing.T) {
	wantErr := errors.New("not connected")
	sender := &recordingSender{err: wantErr}
	r, logs := newTestRelay(Config{}, sender)

	err := r.Send(context.Background(), "15550001111", "hello")
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, logs.Lines(), "failed sends must not log success")
}

func TestNormalizeRecipient(t *testing.T) {
	tests := []struct {
		in      string
		want    wire.JID
		wantErr bool
	}{
		{in: "15550001111", want: wire.NewUserJID("15550001111")},
		{in: "+1 555-000-1111", want: wire.NewUserJID("15550001111")},
		{in: " 15550001111 ", want: wire.NewUserJID("15550001111")},
		{in: "15550001111@s.whatsapp.net", want: wire.NewUserJID("15550001111")},
		{in: "12036304@g.us", want: wire.JID{User: "12036304", Server: wire.GroupServer}},
		{in: "", wantErr: true},
		{in: "not-a-number", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := NormalizeRecipient(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeenCacheEvictsOldest(t *testing.T) {
	c := newSeenCache(2)

	assert.False(t, c.checkAndMark("a"))
	assert.False(t, c.checkAndMark("b"))
	assert.True(t, c.checkAndMark("a"))

	// "c" evicts "a", the oldest entry.
	assert.False(t, c.checkAndMark("c"))
	assert.False(t, c.checkAndMark("a"))
}
