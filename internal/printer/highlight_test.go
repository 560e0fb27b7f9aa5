package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlightJSON(t *testing.T) {
	out := HighlightJSON([]byte(`{"title":"Mug \"XL\"","price":-12.5e1,"synced":true,"shop":null,"tags":["a"]}`))

	for _, want := range []string{`"title"`, `"Mug \"XL\""`, "-12.5e1", "true", "null", `"a"`} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "\n", "output is indented")
}

func TestHighlightJSON_Invalid(t *testing.T) {
	assert.Equal(t, "{oops", HighlightJSON([]byte("{oops")))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
