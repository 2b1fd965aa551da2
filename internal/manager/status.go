// ABOUTME: Connection status enum and the snapshot published to readers
// ABOUTME: Status strings are the exact values the HTTP surface reports

package manager

// Status is the connection lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusConnecting   Status = "connecting"
	StatusScanning     Status = "scanning"
	StatusPairing      Status = "pairing"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusLoggedOut    Status = "logged_out"
	StatusError        Status = "error"
	StatusDisconnected Status = "disconnected"
)

// Snapshot is a point-in-time view of the connection state. The pairing
// artifact fields are mutually exclusive and populated only while the status
// is scanning or pairing respectively.
type Snapshot struct {
	Status            Status
	QRDataURL         string
	PairingCode       string
	ReconnectAttempts int
}
