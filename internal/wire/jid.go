// ABOUTME: JID type for WhatsApp conversation addresses
// ABOUTME: Parsing, normalization of bare phone numbers, and JSON text form

package wire

import (
	"fmt"
	"strings"
)

// Well-known JID servers.
const (
	DefaultUserServer = "s.whatsapp.net"
	GroupServer       = "g.us"
)

// JID is a WhatsApp conversation address of the form user@server.
type JID struct {
	User   string
	Server string
}

// NewUserJID returns the JID for a bare phone number (digits only).
func NewUserJID(user string) JID {
	return JID{User: user, Server: DefaultUserServer}
}

// ParseJID parses "user@server". A bare phone number (no @) is normalized to
// the default user server.
func ParseJID(s string) (JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return JID{}, fmt.Errorf("empty JID")
	}
	user, server, found := strings.Cut(s, "@")
	if !found {
		return NewUserJID(s), nil
	}
	if user == "" || server == "" {
		return JID{}, fmt.Errorf("malformed JID %q", s)
	}
	return JID{User: user, Server: server}, nil
}

func (j JID) String() string {
	if j.IsEmpty() {
		return ""
	}
	return j.User + "@" + j.Server
}

// IsEmpty reports whether the JID has no user component.
func (j JID) IsEmpty() bool {
	return j.User == ""
}

// MarshalText encodes the JID as user@server.
func (j JID) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText decodes user@server, accepting the empty string as the zero JID.
func (j *JID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*j = JID{}
		return nil
	}
	parsed, err := ParseJID(string(data))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
