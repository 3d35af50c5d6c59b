package env

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Env
	}{
		{"local", Local},
		{"DEV", Dev},
		{" stage ", Stage},
		{"production", Production},
		{"prod", Production},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("qa")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestLoadURL(t *testing.T) {
	raw := Stage.LoadURL("2095", "rewards", "1.2.0")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "widget.stage.cere.io", u.Host)
	assert.Equal(t, "/native.html", u.Path)

	q := u.Query()
	assert.Equal(t, "go", q.Get("platform"))
	assert.Equal(t, "1.2.0", q.Get("v"))
	assert.Equal(t, "2095", q.Get("appId"))
	assert.Equal(t, "rewards", q.Get("mode"))
	assert.Equal(t, "stage", q.Get("env"))
}

func TestAllDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range All() {
		assert.False(t, seen[e.WidgetURL])
		seen[e.WidgetURL] = true
	}
	assert.Len(t, seen, 4)
}

func TestHosts(t *testing.T) {
	assert.Equal(t, []string{"widget-sdk.cere.io", "widget.cere.io"}, Production.Hosts())
	assert.Equal(t, []string{"192.168.100.11:3011", "192.168.100.11:3002"}, Local.Hosts())
}
