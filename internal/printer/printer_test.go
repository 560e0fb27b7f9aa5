package printer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_SplitsStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Printf("id=%d", 7)
	p.Successf("saved %s", "seller")
	p.Errorf("failed")

	assert.Equal(t, "id=7\n", out.String())
	assert.Contains(t, errOut.String(), "saved seller")
	assert.Contains(t, errOut.String(), "failed")
}

func TestCtx(t *testing.T) {
	p := New(&bytes.Buffer{}, &bytes.Buffer{})
	ctx := NewContext(context.Background(), p)
	assert.Same(t, p, Ctx(ctx))
	assert.NotNil(t, Ctx(context.Background()))
}
