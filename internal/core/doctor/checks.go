package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropzy/dropzy/internal/core/kv"
)

// FuncCheck adapts a validation func into a single item check.
type FuncCheck struct {
	name  string
	label string
	fn    func() error
}

// NewConfigCheck reports the result of validate, usually Config.ValidateDeep.
func NewConfigCheck(configPath string, validate func(string) error) *FuncCheck {
	return &FuncCheck{
		name:  "Configuration",
		label: configPath,
		fn:    func() error { return validate(configPath) },
	}
}

func (c *FuncCheck) Name() string { return c.name }

func (c *FuncCheck) Run(context.Context) Result {
	result := Result{Name: c.name}
	if err := c.fn(); err != nil {
		result.Items = append(result.Items, CheckItem{Label: c.label, Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, CheckItem{Label: c.label, Status: StatusPass, Detail: "valid"})
	return result
}

const storageProbeKey = "doctor:probe"

// StorageCheck verifies the device store accepts writes and reads them back.
type StorageCheck struct {
	store kv.Store
}

func NewStorageCheck(store kv.Store) *StorageCheck {
	return &StorageCheck{store: store}
}

func (c *StorageCheck) Name() string { return "Device storage" }

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	want := fmt.Sprintf("%d", time.Now().UnixNano())
	item := CheckItem{Label: "read/write"}
	switch err := c.roundTrip(ctx, want); {
	case err != nil:
		item.Status = StatusFail
		item.Detail = err.Error()
		item.Hint = "remove the data directory database to start fresh"
	default:
		item.Status = StatusPass
	}
	result.Items = append(result.Items, item)

	keys, err := c.store.Keys(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "keys", Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, CheckItem{Label: "keys", Status: StatusPass, Detail: fmt.Sprintf("%d stored", len(keys))})
	return result
}

func (c *StorageCheck) roundTrip(ctx context.Context, want string) error {
	if err := c.store.Set(ctx, storageProbeKey, []byte(want)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	defer func() { _ = c.store.Delete(ctx, storageProbeKey) }()

	got, err := c.store.Get(ctx, storageProbeKey)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if string(got) != want {
		return errors.New("read back a different value")
	}
	return nil
}

// Prober checks a server base URL. Satisfied by *api.Bootstrap.
type Prober[H any] interface {
	Probe(ctx context.Context, baseURL string) (H, error)
}

// ServerCheck probes the active base URL.
type ServerCheck[H any] struct {
	prober  Prober[H]
	baseURL func() string
	detail  func(H) string
}

// NewServerCheck creates a check probing baseURL(). detail renders the probe
// result for display and may be nil.
func NewServerCheck[H any](prober Prober[H], baseURL func() string, detail func(H) string) *ServerCheck[H] {
	return &ServerCheck[H]{prober: prober, baseURL: baseURL, detail: detail}
}

func (c *ServerCheck[H]) Name() string { return "Server" }

func (c *ServerCheck[H]) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	url := c.baseURL()

	h, err := c.prober.Probe(ctx, url)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  url,
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   "check your connection or run 'dropzy config set-url'",
		})
		return result
	}

	item := CheckItem{Label: url, Status: StatusPass}
	if c.detail != nil {
		item.Detail = c.detail(h)
	}
	result.Items = append(result.Items, item)
	return result
}

// SessionCheck reports whether a user is signed in and, when verify is set,
// whether the server still accepts the token.
type SessionCheck struct {
	authenticated func() bool
	verify        func(ctx context.Context) error
}

func NewSessionCheck(authenticated func() bool, verify func(ctx context.Context) error) *SessionCheck {
	return &SessionCheck{authenticated: authenticated, verify: verify}
}

func (c *SessionCheck) Name() string { return "Session" }

func (c *SessionCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	if !c.authenticated() {
		result.Items = append(result.Items, CheckItem{
			Label:  "signed in",
			Status: StatusWarn,
			Detail: "no session",
			Hint:   "run 'dropzy login'",
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{Label: "signed in", Status: StatusPass})

	if c.verify == nil {
		return result
	}
	if err := c.verify(ctx); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "token accepted",
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   "run 'dropzy login'",
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{Label: "token accepted", Status: StatusPass})
	return result
}

// SchemaReporter returns the applied database schema version and the newest
// one the build knows.
type SchemaReporter func(ctx context.Context) (current, latest int, err error)

// SchemaCheck reports whether the on-device database is fully migrated.
type SchemaCheck struct {
	report SchemaReporter
}

func NewSchemaCheck(report SchemaReporter) *SchemaCheck {
	return &SchemaCheck{report: report}
}

func (c *SchemaCheck) Name() string { return "Database schema" }

func (c *SchemaCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	current, latest, err := c.report(ctx)

	item := CheckItem{Label: "migrations"}
	switch {
	case err != nil:
		item.Status = StatusFail
		item.Detail = err.Error()
	case current < latest:
		item.Status = StatusWarn
		item.Detail = fmt.Sprintf("version %d of %d", current, latest)
		item.Hint = "restart dropzy to apply pending migrations"
	default:
		item.Status = StatusPass
		item.Detail = fmt.Sprintf("version %d", current)
	}
	result.Items = append(result.Items, item)
	return result
}
