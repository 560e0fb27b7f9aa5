package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies request_id and endpoint from the event context onto log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if id := GetRequestID(ctx); id != "" {
		e.Str("request_id", id)
	}

	if ep := GetEndpoint(ctx); ep != "" {
		e.Str("endpoint", ep)
	}
}
