package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutOverride(t *testing.T) {
	base := Layout{Width: 100, Height: 90, Top: 5, Left: 5}

	tests := []struct {
		name    string
		payload string
		want    Layout
	}{
		{"empty payload", "", base},
		{"absent fields", `{}`, base},
		{"minus one keeps", `{"width":-1,"height":-1,"top":-1,"left":-1}`, base},
		{"partial", `{"height":50,"left":0}`, Layout{Width: 100, Height: 50, Top: 5, Left: 0}},
		{"zero is a value", `{"top":0}`, Layout{Width: 100, Height: 90, Top: 0, Left: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseLayoutOverride(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.apply(base))
		})
	}

	_, err := parseLayoutOverride("{")
	assert.Error(t, err)
}

func TestParseUserRequiresEmailAndToken(t *testing.T) {
	_, err := parseUser(`{"email":"a@b.co"}`)
	assert.Error(t, err)

	_, err = parseUser(`{"token":"t"}`)
	assert.Error(t, err)

	u, err := parseUser(`{"email":"a@b.co","token":"t","password":"p"}`)
	require.NoError(t, err)
	assert.Equal(t, "p", u.Password)
}

func TestEncodeClaimedRewardsEmpty(t *testing.T) {
	assert.Equal(t, "[]", encodeClaimedRewards(nil))
	assert.Equal(t, "[]", encodeClaimedRewards([]ClaimedReward{}))
}
