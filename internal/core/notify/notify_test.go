package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftBuild_Defaults(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := Draft{Title: "hello"}.Build("id-1", at)

	assert.Equal(t, "id-1", n.ID)
	assert.Equal(t, TypeInfo, n.Type)
	assert.Equal(t, DefaultIcon, n.Icon)
	assert.Equal(t, DefaultColor, n.Color)
	assert.False(t, n.Read)

	got, err := n.Time()
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}

func TestNotificationTime_Zoneless(t *testing.T) {
	n := Notification{Timestamp: "2025-03-01T12:00:00.123"}
	got, err := n.Time()
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestTerminalPusher_BadgeOnlyOnChange(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPusher(&buf, false)
	ctx := context.Background()

	require.NoError(t, p.SetBadge(ctx, 2))
	require.NoError(t, p.SetBadge(ctx, 2))
	assert.Equal(t, "\x1b]0;dropzy (2)\a", buf.String())

	buf.Reset()
	require.NoError(t, p.SetBadge(ctx, 0))
	assert.Equal(t, "\x1b]0;dropzy\a", buf.String())
}

func TestTerminalPusher_Push(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPusher(&buf, true)

	require.NoError(t, p.Push(context.Background(), Notification{Title: "New order", Message: "#1001"}))
	out := buf.String()
	assert.True(t, len(out) > 0 && out[0] == '\a')
	assert.Contains(t, out, "New order")
	assert.Contains(t, out, "#1001")
}
