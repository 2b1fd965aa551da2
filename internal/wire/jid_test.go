// ABOUTME: Tests for JID parsing and normalization
// ABOUTME: Bare phone numbers normalize to the default user server

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JID
		wantErr bool
	}{
		{
			name:  "full address",
			input: "15551234567@s.whatsapp.net",
			want:  JID{User: "15551234567", Server: "s.whatsapp.net"},
		},
		{
			name:  "group address",
			input: "123456-7890@g.us",
			want:  JID{User: "123456-7890", Server: GroupServer},
		},
		{
			name:  "bare number normalized",
			input: "15551234567",
			want:  NewUserJID("15551234567"),
		},
		{
			name:  "surrounding whitespace",
			input: "  15551234567  ",
			want:  NewUserJID("15551234567"),
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing user",
			input:   "@s.whatsapp.net",
			wantErr: true,
		},
		{
			name:    "missing server",
			input:   "1555@",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJIDString(t *testing.T) {
	assert.Equal(t, "1555@s.whatsapp.net", NewUserJID("1555").String())
	assert.Equal(t, "", JID{}.String())
	assert.True(t, JID{}.IsEmpty())
}

func TestJIDTextRoundTrip(t *testing.T) {
	j := NewUserJID("15551234567")
	data, err := j.MarshalText()
	require.NoError(t, err)

	var back JID
	require.NoError(t, back.UnmarshalText(data))
	assert.Equal(t, j, back)

	var zero JID
	require.NoError(t, zero.UnmarshalText(nil))
	assert.True(t, zero.IsEmpty())
}
