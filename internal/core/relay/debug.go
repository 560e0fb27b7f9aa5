package relay

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger registers hooks that log relay activity. Events are
// logged at debug level, dropped sends at warn and listener panics at error.
func RegisterDebugLogger(r *Relay, logger zerolog.Logger) {
	r.OnEvent(func(ev Event) {
		logger.Debug().Str("event", string(ev.Kind())).Msg("event received")
	})

	r.OnDrop(func(msg any) {
		logger.Warn().Str("message", fmt.Sprintf("%v", msg)).Msg("send dropped: not connected")
	})

	r.OnPanic(func(ev Event, recovered any) {
		logger.Error().
			Str("event", string(ev.Kind())).
			Str("panic", fmt.Sprint(recovered)).
			Msg("listener panicked")
	})
}
