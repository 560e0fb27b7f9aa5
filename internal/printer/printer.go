// Package printer writes human oriented command output with the active
// theme styles.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dropzy/dropzy/internal/core/styles"
)

type ctxKey struct{}

// Printer writes status lines. Printf goes to out; the status helpers go to
// err so piped output stays clean.
type Printer struct {
	out io.Writer
	err io.Writer
}

func New(out, err io.Writer) *Printer {
	return &Printer{out: out, err: err}
}

// NewContext stores p in ctx.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer stored in ctx, or one writing to stdout and
// stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout, os.Stderr)
}

func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Successf(format string, args ...any) {
	p.status(styles.TextSuccessStyle.Render("✔"), format, args...)
}

func (p *Printer) Infof(format string, args ...any) {
	p.status(styles.TextPrimaryBoldStyle.Render("•"), format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.status(styles.TextWarningStyle.Render("●"), format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.status(styles.TextErrorStyle.Render("✘"), format, args...)
}

func (p *Printer) status(icon, format string, args ...any) {
	_, _ = fmt.Fprintf(p.err, "%s %s\n", icon, fmt.Sprintf(format, args...))
}
