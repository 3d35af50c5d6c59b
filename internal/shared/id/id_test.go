package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	sid := NewSessionID()
	assert.True(t, strings.HasPrefix(sid.String(), SessionPrefix+"_"))

	prefix, _, err := Split(sid.String())
	require.NoError(t, err)
	assert.Equal(t, SessionPrefix, prefix)
}

func TestNewConnID(t *testing.T) {
	cid := NewConnID()
	assert.True(t, strings.HasPrefix(cid.String(), ConnPrefix+"_"))
}

func TestGeneratorIsMonotonic(t *testing.T) {
	g := NewGenerator()
	fixed := time.UnixMilli(1700000000000)
	g.now = func() time.Time { return fixed }

	prev := g.Generate()
	for i := 0; i < 1000; i++ {
		next := g.Generate()
		require.Equal(t, 1, next.Compare(prev), "ids must increase within one millisecond")
		prev = next
	}
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no prefix", "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		{"bad ulid", "sess_not-a-ulid"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Split(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestTimestamp(t *testing.T) {
	g := NewGenerator()
	at := time.UnixMilli(1700000000123)
	g.now = func() time.Time { return at }

	ts, err := Timestamp(g.GenerateWithPrefix(SessionPrefix))
	require.NoError(t, err)
	assert.True(t, at.Equal(ts))
}
