package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropzy/dropzy/internal/core/kv"
)

type fakeProber struct {
	version string
	err     error
}

func (f fakeProber) Probe(context.Context, string) (string, error) { return f.version, f.err }

type brokenStore struct{ *kv.Memory }

func (brokenStore) Set(context.Context, string, []byte) error { return errors.New("read-only") }

func TestRunAllAndSummary(t *testing.T) {
	checks := []Check{
		NewConfigCheck("/etc/dropzy.yaml", func(string) error { return nil }),
		NewStorageCheck(kv.NewMemory()),
		NewServerCheck[string](fakeProber{err: errors.New("dial tcp: refused")}, func() string { return "https://dropzy.app" }, nil),
		NewSessionCheck(func() bool { return false }, nil),
	}

	results := RunAll(context.Background(), checks)
	require.Len(t, results, 4)

	passed, warned, failed := Summary(results)
	assert.Equal(t, 3, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 1, failed)
	assert.Equal(t, "https://dropzy.app", results[2].Items[0].Label)
}

func TestStorageCheck_LeavesNoProbeKey(t *testing.T) {
	store := kv.NewMemory()
	result := NewStorageCheck(store).Run(context.Background())

	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, 0, store.Len())
}

func TestStorageCheck_WriteFailure(t *testing.T) {
	result := NewStorageCheck(brokenStore{kv.NewMemory()}).Run(context.Background())
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "read-only")
}

func TestServerCheck_Detail(t *testing.T) {
	c := NewServerCheck[string](fakeProber{version: "1.4.0"}, func() string { return "https://x" }, func(v string) string { return "version " + v })
	result := c.Run(context.Background())
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "version 1.4.0", result.Items[0].Detail)
}

func TestSessionCheck_RejectedToken(t *testing.T) {
	c := NewSessionCheck(func() bool { return true }, func(context.Context) error { return errors.New("session expired (401)") })
	result := c.Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, StatusFail, result.Items[1].Status)
}

func TestConfigCheck_Invalid(t *testing.T) {
	c := NewConfigCheck("cfg.yaml", func(string) error { return errors.New("api.timeout: must be positive") })
	result := c.Run(context.Background())
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestSchemaCheck(t *testing.T) {
	tests := []struct {
		name   string
		report SchemaReporter
		want   Status
		detail string
	}{
		{
			name:   "current",
			report: func(context.Context) (int, int, error) { return 2, 2, nil },
			want:   StatusPass,
			detail: "version 2",
		},
		{
			name:   "behind",
			report: func(context.Context) (int, int, error) { return 1, 2, nil },
			want:   StatusWarn,
			detail: "version 1 of 2",
		},
		{
			name:   "unreadable",
			report: func(context.Context) (int, int, error) { return 0, 0, errors.New("database is locked") },
			want:   StatusFail,
			detail: "database is locked",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewSchemaCheck(tt.report).Run(context.Background())
			require.Len(t, result.Items, 1)
			assert.Equal(t, tt.want, result.Items[0].Status)
			assert.Equal(t, tt.detail, result.Items[0].Detail)
		})
	}
}
