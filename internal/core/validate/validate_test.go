package validate

import (
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"https://dropzy.app", false},
		{"http://localhost:8000", false},
		{"", true},
		{"ftp://dropzy.app", true},
		{"dropzy.app", true},
		{"https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := BaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	assert.NoError(t, Email("seller@example.com"))
	assert.Error(t, Email(""))
	assert.Error(t, Email("not-an-email"))
	assert.Error(t, Email("Name <seller@example.com>"))
}

func TestCredentials(t *testing.T) {
	require.NoError(t, Credentials("seller@example.com", "secret"))

	err := Credentials("bad", " ")

	var fe criterio.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 2)
	assert.Equal(t, "email", fe[0].Field)
	assert.Equal(t, "password", fe[1].Field)
}

func TestBaseURLField(t *testing.T) {
	err := BaseURLField("api.base_url", "nope")

	var fe criterio.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "api.base_url", fe[0].Field)
}
