package dropzy

import (
	"context"
	"fmt"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/core/doctor"
)

// RunChecks executes the doctor checks and returns their results. verify
// asks the server whether the stored token is still accepted.
func (a *App) RunChecks(ctx context.Context, configPath string, verify bool) []doctor.Result {
	var verifyFn func(context.Context) error
	if verify {
		verifyFn = func(ctx context.Context) error {
			_, err := a.Client.Request(ctx, api.Request{
				Endpoint: "/api/auth/me",
				NoCache:  true,
			})
			return err
		}
	}

	checks := []doctor.Check{
		doctor.NewConfigCheck(configPath, a.Config.ValidateDeep),
		doctor.NewStorageCheck(a.Store),
		doctor.NewServerCheck[api.Health](a.Bootstrap, a.Bootstrap.URL, func(h api.Health) string {
			if h.Version == "" {
				return h.Status
			}
			return fmt.Sprintf("%s, version %s", h.Status, h.Version)
		}),
		doctor.NewSessionCheck(a.Session.IsAuthenticated, verifyFn),
	}
	if a.DB != nil {
		checks = append(checks, doctor.NewSchemaCheck(func(ctx context.Context) (int, int, error) {
			st, err := a.DB.Schema(ctx)
			return st.Current, st.Latest, err
		}))
	}
	return doctor.RunAll(ctx, checks)
}
