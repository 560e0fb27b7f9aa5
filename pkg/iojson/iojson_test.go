package iojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{}

func (statusErr) Error() string    { return "not found (404)" }
func (statusErr) HTTPStatus() int  { return 404 }
func (statusErr) KindName() string { return "status" }

func TestWriteErrorTo_StatusError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteErrorTo(&buf, fmt.Errorf("get order: %w", statusErr{})))

	var got Error
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "get order: not found (404)", got.Message)
	assert.Equal(t, "status", got.Data["kind"])
	assert.InDelta(t, 404, got.Data["status"], 0)
}

func TestWriteErrorTo_PlainError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteErrorTo(&buf, errors.New("boom")))
	assert.JSONEq(t, `{"message":"boom"}`, buf.String())
}

func TestWriteWith_MarshalFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, WriteWith(&out, &errOut, map[string]any{"ch": make(chan int)}))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "json_error")
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"seller_id":"42"}`), 0o600))

	fr := &FileReader[map[string]string]{fileFlagValue: path}
	assert.True(t, fr.Provided())
	got, err := fr.Read()
	require.NoError(t, err)
	assert.Equal(t, "42", got["seller_id"])

	fr = &FileReader[map[string]string]{fileFlagValue: "-", stdin: strings.NewReader(`{"a":"b"}`)}
	got, err = fr.Read()
	require.NoError(t, err)
	assert.Equal(t, "b", got["a"])

	fr = &FileReader[map[string]string]{fileFlagValue: "-", stdin: strings.NewReader(`nope`)}
	_, err = fr.Read()
	assert.Error(t, err)
}
