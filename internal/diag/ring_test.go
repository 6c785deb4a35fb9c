package diag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingLogAppendAndSnapshot(t *testing.T) {
	ring := NewRingLog(5)
	ring.Append(Entry{Stage: "fetch", Message: "one"})
	ring.Append(Entry{Stage: "decode", Message: "two"})

	entries := ring.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, "two", entries[1].Message)
	assert.False(t, entries[0].Time.IsZero(), "time is stamped on append")
}

func TestRingLogCapsAtCapacity(t *testing.T) {
	ring := NewRingLog(3)
	for i := 0; i < 10; i++ {
		ring.Append(Entry{Message: fmt.Sprintf("msg-%d", i)})
	}

	assert.Equal(t, 3, ring.Len())
	entries := ring.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "msg-7", entries[0].Message, "oldest surviving entry first")
	assert.Equal(t, "msg-9", entries[2].Message)
}

func TestRingLogDefaultCapacity(t *testing.T) {
	ring := NewRingLog(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		ring.Append(Entry{Message: "x"})
	}
	assert.Equal(t, DefaultCapacity, ring.Len())
}
