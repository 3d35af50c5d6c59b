package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommandName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "setMode", false},
		{"underscored", "__showOnNative", false},
		{"empty", "", true},
		{"leading digit", "1cmd", true},
		{"punctuation", "set-mode", true},
		{"too long", strings.Repeat("a", MaxCommandName+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommandName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, ValidatePayload(nil))
	assert.NoError(t, ValidatePayload([]byte("login")))
	assert.NoError(t, ValidatePayload([]byte(`{"field":"email","value":"a@b.co"}`)))
	assert.Error(t, ValidatePayload([]byte(`{"field":`)))
	assert.Error(t, ValidatePayload([]byte(strings.Repeat("[", 30)+strings.Repeat("]", 30))))
	assert.Error(t, ValidatePayload(make([]byte, MaxPayloadSize+1)))
}
