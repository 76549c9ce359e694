// Package printer writes the user facing output of stamp. Every line is tagged
// with the application name and colored by its kind.
package printer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hay-kot/stamp/pkgs/styles"
)

// AppName is the tag written in front of every line.
const AppName = "stamp"

type ctxkey string

const writerKey = ctxkey("writerKey")

// WithWriter stores the writer printers obtained through Ctx write to.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey, w)
}

func GetWriter(ctx context.Context) (io.Writer, bool) {
	w, ok := ctx.Value(writerKey).(io.Writer)
	return w, ok
}

type Printer struct {
	mu    *sync.Mutex
	out   io.Writer
	base  styles.RenderFunc
	light styles.RenderFunc
}

func New(w io.Writer) *Printer {
	return &Printer{
		mu:    &sync.Mutex{},
		out:   w,
		base:  styles.Tag,
		light: styles.Subtle,
	}
}

// Ctx returns a copy of the printer that writes to the writer stored in ctx,
// or the printer itself when the context carries none.
func (p *Printer) Ctx(ctx context.Context) *Printer {
	w, ok := GetWriter(ctx)
	if !ok {
		return p
	}

	cp := *p
	cp.out = w
	return &cp
}

func (p *Printer) write(msg string, style styles.RenderFunc) {
	if style != nil {
		msg = style(msg)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "[%s] %s\n", p.base(AppName), msg)
}

func (p *Printer) Status(msg string) {
	p.write(msg, styles.Status)
}

func (p *Printer) Success(msg string) {
	p.write(msg, styles.Success)
}

func (p *Printer) Warning(msg string) {
	p.write(msg, styles.Warning)
}

// Error writes err as a red, tagged line.
func (p *Printer) Error(err error) {
	p.write(strings.TrimRight(err.Error(), "\n"), styles.Error)
}

// FatalError writes err inside an error box. Used once, right before the
// process exits non-zero.
func (p *Printer) FatalError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, styles.ErrorBox(AppName+" failed", err.Error()))
}

// Rendered writes the "template → output" line printed after a successful
// file write.
func (p *Printer) Rendered(template, output string) {
	p.write(fmt.Sprintf("%s %s %s %s",
		styles.Success(styles.Check),
		template,
		p.light(styles.Arrow),
		output,
	), nil)
}

// Summary writes the closing line of a batch.
func (p *Printer) Summary(ok, failed int) {
	noun := "files"
	if ok == 1 {
		noun = "file"
	}

	msg := fmt.Sprintf("%d %s generated", ok, noun)
	if failed > 0 {
		p.write(fmt.Sprintf("%s, %d failed", msg, failed), styles.Warning)
		return
	}

	p.write(msg, styles.Status)
}
