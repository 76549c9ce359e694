package printer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestPrinter_Lines(t *testing.T) {
	tests := []struct {
		name  string
		print func(p *Printer)
		want  []string
	}{
		{
			name:  "status",
			print: func(p *Printer) { p.Status("loading config") },
			want:  []string{AppName, "loading config"},
		},
		{
			name:  "error trims trailing newline",
			print: func(p *Printer) { p.Error(errors.New("boom\n")) },
			want:  []string{AppName, "boom"},
		},
		{
			name:  "rendered",
			print: func(p *Printer) { p.Rendered("layouts/page", "site/index.output") },
			want:  []string{"layouts/page", "site/index.output"},
		},
		{
			name:  "summary singular",
			print: func(p *Printer) { p.Summary(1, 0) },
			want:  []string{"1 file generated"},
		},
		{
			name:  "summary with failures",
			print: func(p *Printer) { p.Summary(3, 2) },
			want:  []string{"3 files generated, 2 failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(New(&buf))

			got := buf.String()
			if strings.Count(got, "\n") != 1 || !strings.HasSuffix(got, "\n") {
				t.Errorf("output = %q, want exactly one line", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output = %q, want it to contain %q", got, w)
				}
			}
		})
	}
}

func TestPrinter_Ctx(t *testing.T) {
	var base, scoped bytes.Buffer

	p := New(&base)
	p.Ctx(context.Background()).Status("to base")
	p.Ctx(WithWriter(context.Background(), &scoped)).Status("to scoped")

	if !strings.Contains(base.String(), "to base") || strings.Contains(base.String(), "to scoped") {
		t.Errorf("base output = %q", base.String())
	}
	if !strings.Contains(scoped.String(), "to scoped") {
		t.Errorf("scoped output = %q", scoped.String())
	}
}

func TestDeferredWriter(t *testing.T) {
	var out bytes.Buffer
	dw := NewDeferredWriter(&out)
	p := New(dw)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Status("line")
		}()
	}
	wg.Wait()

	if out.Len() != 0 {
		t.Fatalf("output written before Flush: %q", out.String())
	}

	if err := dw.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if n := strings.Count(out.String(), "\n"); n != 10 {
		t.Errorf("Flush() wrote %d lines, want 10", n)
	}
}
