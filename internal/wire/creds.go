// ABOUTME: Credential and key-material structures persisted between runs
// ABOUTME: Binary wraps []byte with a JSON form that round-trips raw bytes

package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Binary is a byte slice whose JSON encoding preserves raw bytes exactly.
// The session store holds values as text, so binary key material is tagged:
//
//	{"type":"Buffer","data":"<std base64>"}
type Binary []byte

type binaryJSON struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// MarshalJSON encodes the bytes in the tagged Buffer form. A nil slice
// encodes as JSON null.
func (b Binary) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	return json.Marshal(binaryJSON{
		Type: "Buffer",
		Data: base64.StdEncoding.EncodeToString(b),
	})
}

// UnmarshalJSON decodes the tagged Buffer form. JSON null yields a nil slice.
func (b *Binary) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var tagged binaryJSON
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("decoding binary value: %w", err)
	}
	if tagged.Type != "Buffer" {
		return fmt.Errorf("decoding binary value: unexpected type %q", tagged.Type)
	}
	raw, err := base64.StdEncoding.DecodeString(tagged.Data)
	if err != nil {
		return fmt.Errorf("decoding binary value: %w", err)
	}
	*b = raw
	return nil
}

// KeyPair holds a public/private key pair as opaque bytes.
type KeyPair struct {
	Public  Binary `json:"public"`
	Private Binary `json:"private"`
}

// Credentials is the durable authentication bundle for one account. The
// protocol engine creates it on first connect and mutates it through
// CredsUpdate events; the bridge persists it under the "creds" key and hands
// it back on the next dial.
type Credentials struct {
	NoiseKey       KeyPair `json:"noiseKey"`
	IdentityKey    KeyPair `json:"identityKey"`
	RegistrationID uint32  `json:"registrationId"`
	AdvSecretKey   Binary  `json:"advSecretKey"`
	Account        Binary  `json:"account,omitempty"`
	Me             *JID    `json:"me,omitempty"`
	PlatformID     string  `json:"platformId,omitempty"`
	Registered     bool    `json:"registered"`
}

// KeyEntry is one unit of key material addressed by (category, id).
// A nil Value means the entry is no longer trusted and must be removed.
type KeyEntry struct {
	Category string
	ID       string
	Value    []byte
}
