// ABOUTME: Tests for the bounded log ring buffer
// ABOUTME: Covers ordering, eviction and the formatted line view

package logbuf

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferNewestFirst(t *testing.T) {
	b := New(10)
	b.Append("first")
	b.Append("second")
	b.Append("third")

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, "first", entries[2].Message)
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New(3)
	for i := 1; i <= 5; i++ {
		b.Appendf("line %d", i)
	}

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "line 5", entries[0].Message)
	assert.Equal(t, "line 4", entries[1].Message)
	assert.Equal(t, "line 3", entries[2].Message)
}

func TestBufferLenBounded(t *testing.T) {
	b := New(4)
	assert.Equal(t, 0, b.Len())

	for i := 0; i < 100; i++ {
		b.Append(fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, 4, b.Len())
	assert.Len(t, b.Entries(), 4)
}

func TestBufferLines(t *testing.T) {
	b := New(5)
	b.Appendf("Message from %s: %s", "1555@s.whatsapp.net", "hi")

	lines := b.Lines()
	require.Len(t, lines, 1)
	// "15:04:05 " timestamp prefix followed by the message.
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2} `, lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "Message from 1555@s.whatsapp.net: hi"))
}

func TestBufferDefaultCapacity(t *testing.T) {
	b := New(0)
	for i := 0; i < DefaultCapacity+20; i++ {
		b.Append("x")
	}
	assert.Equal(t, DefaultCapacity, b.Len())
}
