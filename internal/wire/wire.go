// ABOUTME: Client/Dialer interfaces and the typed events a live connection emits
// ABOUTME: Includes the disconnect-reason taxonomy used to classify closures

package wire

import (
	"context"
	"time"
)

// DisconnectReason classifies why a live connection closed.
type DisconnectReason string

const (
	// ReasonLoggedOut is an authoritative remote revocation. The session is
	// dead and all stored credentials must be wiped before reconnecting.
	ReasonLoggedOut DisconnectReason = "logged_out"

	// ReasonConnectionLost covers network drops and timeouts.
	ReasonConnectionLost DisconnectReason = "connection_lost"

	// ReasonStreamError is a server-side stream failure.
	ReasonStreamError DisconnectReason = "stream_error"

	// ReasonServerRestart means the server asked us to reconnect.
	ReasonServerRestart DisconnectReason = "server_restart"

	// ReasonUnknown is any closure the adapter could not classify.
	ReasonUnknown DisconnectReason = "unknown"
)

// IsLoggedOut reports whether the reason requires a credential wipe.
func (r DisconnectReason) IsLoggedOut() bool {
	return r == ReasonLoggedOut
}

// Event is a discrete occurrence on a live connection. The concrete types
// below are the full set a Client may emit.
type Event interface {
	wireEvent()
}

// QRChallenge carries a fresh scannable pairing challenge. The remote rotates
// challenges while unscanned, so several may arrive per attempt.
type QRChallenge struct {
	Code string
}

// Connected signals the authenticated session is open.
type Connected struct {
	Self JID
}

// CredsUpdate carries the full replacement credential bundle. It must be
// durably stored before the connection is treated as usable; emitters send it
// before Connected and before any Closed for the same attempt.
type CredsUpdate struct {
	Creds *Credentials
}

// KeysUpdate carries key-material mutations. Entries with a nil Value are
// deletions.
type KeysUpdate struct {
	Entries []KeyEntry
}

// InboundMessage is a message received from the network.
type InboundMessage struct {
	ID        string
	Chat      JID
	Sender    JID
	PushName  string
	Text      string
	FromMe    bool
	Timestamp time.Time
}

// Closed reports that the connection is gone. It is the final event; the
// events channel is closed after it.
type Closed struct {
	Reason DisconnectReason
	Err    error
}

func (QRChallenge) wireEvent()    {}
func (Connected) wireEvent()      {}
func (CredsUpdate) wireEvent()    {}
func (KeysUpdate) wireEvent()     {}
func (InboundMessage) wireEvent() {}
func (Closed) wireEvent()         {}

// Client is one live connection to the network. Exactly zero or one exists at
// any time; the connection manager owns it exclusively.
type Client interface {
	// Events returns the event stream for this connection. The channel is
	// closed after the Closed event is delivered.
	Events() <-chan Event

	// RequestPairingCode asks the remote for a short numeric pairing code for
	// out-of-band (phone number) pairing.
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	// SendText sends a text message to the given conversation address.
	SendText(ctx context.Context, to JID, text string) error

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// DialConfig carries everything a Dialer needs to open a connection.
type DialConfig struct {
	// Creds is the stored credential bundle, or nil to begin a fresh pairing
	// flow.
	Creds *Credentials

	// Version is the protocol version descriptor to announce.
	Version Version
}

// Dialer opens connections to the network.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Client, error)
}
