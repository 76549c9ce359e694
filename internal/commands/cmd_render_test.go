package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hay-kot/stamp/internal/core"
	"github.com/hay-kot/stamp/pkgs/printer"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}

type renderHarness struct {
	cmd    *RenderCmd
	flags  *core.Flags
	stdout *bytes.Buffer
	status *bytes.Buffer
	ctx    context.Context
}

func newRenderHarness(stdin string) renderHarness {
	h := renderHarness{
		flags:  &core.Flags{Jobs: 1},
		stdout: &bytes.Buffer{},
		status: &bytes.Buffer{},
	}

	h.cmd = NewRenderCmd(h.flags)
	h.cmd.stdout = h.stdout
	h.cmd.readStdin = func() (string, error) { return readAll(strings.NewReader(stdin)) }
	h.cmd.pick = func(jobs []core.Job) ([]core.Job, error) { return jobs[:1], nil }
	h.ctx = printer.WithWriter(context.Background(), h.status)

	return h
}

func TestRenderCmd_Execute(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "proj", "cfg")
	dest := filepath.Join(dir, "out")

	writeFile(t, filepath.Join(cfgDir, "a.template"), "{{ include('partials/header') }}name={{ name }}")
	writeFile(t, filepath.Join(cfgDir, "partials", "header.template"), "[{{ site }}]")
	cfgPath := writeFile(t, filepath.Join(cfgDir, "stamp.json"), `{
  "globals": { "name": "Y", "site": "S" },
  "files": [
    { "template": "a", "dest": "b", "locals": { "name": "X" } },
    { "template": "a" }
  ]
}`)

	h := newRenderHarness("")

	report, err := h.cmd.Execute(h.ctx, cfgPath, dest)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Written() != 1 {
		t.Errorf("Written() = %d, want 1", report.Written())
	}

	data, err := os.ReadFile(filepath.Join(dest, "b.output"))
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if got := string(data); got != "[S]name=X" {
		t.Errorf("b.output = %q, want %q", got, "[S]name=X")
	}

	if got := h.stdout.String(); got != "[S]name=Y" {
		t.Errorf("stdout = %q, want %q", got, "[S]name=Y")
	}
	if !strings.Contains(h.status.String(), "1 file generated") {
		t.Errorf("status = %q, want a summary line", h.status.String())
	}
}

func TestRenderCmd_Execute_ReadStdin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "echo.template"), "<pre>{{ body }}</pre>")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.yaml"), `globals:
  body: unused
files:
  - template: echo
`)

	h := newRenderHarness("piped\ntext")
	h.flags.ReadVar = "body"

	if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := h.stdout.String(); got != "<pre>piped\ntext</pre>" {
		t.Errorf("stdout = %q", got)
	}
}

func TestRenderCmd_Execute_SelectAndPick(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t.template"), "{{ n }};")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.json"), `{
  "files": [
    { "template": "t", "tags": ["a"], "locals": { "n": "1" } },
    { "template": "t", "tags": ["b"], "locals": { "n": "2" } },
    { "template": "t", "tags": ["b"], "locals": { "n": "3" } }
  ]
}`)

	t.Run("select", func(t *testing.T) {
		h := newRenderHarness("")
		h.flags.Select = "+b"

		if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := h.stdout.String(); got != "2;3;" {
			t.Errorf("stdout = %q, want %q", got, "2;3;")
		}
	})

	t.Run("select then pick", func(t *testing.T) {
		h := newRenderHarness("")
		h.flags.Select = "+b"
		h.flags.Pick = true

		if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := h.stdout.String(); got != "2;" {
			t.Errorf("stdout = %q, want %q", got, "2;")
		}
	})

	t.Run("pick with read", func(t *testing.T) {
		h := newRenderHarness("")
		h.flags.Pick = true
		h.flags.ReadVar = "x"

		if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err == nil {
			t.Error("Execute() expected error combining --pick and --read")
		}
	})
}

func TestRenderCmd_Execute_Fatal(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing config", func(t *testing.T) {
		h := newRenderHarness("")

		report, err := h.cmd.Execute(h.ctx, filepath.Join(dir, "missing.json"), dir)
		if !errors.Is(err, core.ErrConfigNotFound) {
			t.Errorf("Execute() error = %v, want ErrConfigNotFound", err)
		}
		if len(report.Results) != 0 {
			t.Errorf("Execute() attempted %d jobs", len(report.Results))
		}
		if h.stdout.Len() != 0 || h.status.Len() != 0 {
			t.Errorf("Execute() produced output: %q %q", h.stdout.String(), h.status.String())
		}
	})

	t.Run("no files", func(t *testing.T) {
		cfgPath := writeFile(t, filepath.Join(dir, "empty.json"), `{"files": []}`)
		h := newRenderHarness("")

		if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); !errors.Is(err, core.ErrNoFiles) {
			t.Errorf("Execute() error = %v, want ErrNoFiles", err)
		}
	})
}

func TestRenderCmd_Execute_JobsFailed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.template"), "ok")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.json"), `{
  "files": [
    { "dest": "nothing" },
    { "template": "ok", "dest": "ok" }
  ]
}`)

	h := newRenderHarness("")

	report, err := h.cmd.Execute(h.ctx, cfgPath, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrJobsFailed) {
		t.Fatalf("Execute() error = %v, want ErrJobsFailed", err)
	}

	if report.Failed() != 1 || report.Written() != 1 {
		t.Errorf("report failed=%d written=%d, want 1 and 1", report.Failed(), report.Written())
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "ok.output")); err != nil {
		t.Errorf("sibling job output missing: %v", err)
	}
	if !strings.Contains(h.status.String(), `"template" must be present`) {
		t.Errorf("status = %q, want the validation error", h.status.String())
	}
}

func TestCheckCmd_Check(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.template"), "ok")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.json"), `{
  "files": [
    { "template": "ok", "dest": "ok" },
    { "template": "gone" }
  ]
}`)
	okPath := writeFile(t, filepath.Join(dir, "ok.json"), `{"files": [{ "template": "ok" }]}`)

	status := &bytes.Buffer{}
	ctx := printer.WithWriter(context.Background(), status)

	if err := NewCheckCmd(&core.Flags{}).Check(ctx, okPath); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !strings.Contains(status.String(), "checked 1 files, all valid") {
		t.Errorf("status = %q, want a closing status line", status.String())
	}
	status.Reset()

	err := NewCheckCmd(&core.Flags{}).Check(ctx, cfgPath)
	if !errors.Is(err, ErrInvalidFiles) {
		t.Fatalf("Check() error = %v, want ErrInvalidFiles", err)
	}

	out := status.String()
	if !strings.Contains(out, "ok.output") || !strings.Contains(out, "template does not exist") {
		t.Errorf("status = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "ok.output")); !errors.Is(err, os.ErrNotExist) {
		t.Error("Check() wrote an output file")
	}
}

func TestRenderCmd_Execute_JSONNumbers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t.template"), "count={{ count }} total={{ totals.all }}")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.json"), `{
  "globals": { "totals": { "all": 120 } },
  "files": [{ "template": "t", "locals": { "count": 3 } }]
}`)

	h := newRenderHarness("")

	if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := h.stdout.String(); got != "count=3 total=120" {
		t.Errorf("stdout = %q, want %q", got, "count=3 total=120")
	}
}

func TestRenderCmd_Execute_ReadVariants(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t.template"), "[{{ title }}]")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.json"), `{
  "globals": { "title": "T", "site-name": "S" },
  "files": [{ "template": "t" }]
}`)

	tests := []struct {
		name    string
		readVar string
		stdin   string
		want    string
	}{
		{name: "empty stdin binds empty string", readVar: "title", stdin: "", want: "[]"},
		{name: "hyphenated variable is ignored", readVar: "page-body", stdin: "x", want: "[T]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRenderHarness(tt.stdin)
			h.flags.ReadVar = tt.readVar

			if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got := h.stdout.String(); got != tt.want {
				t.Errorf("stdout = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderCmd_Execute_Warnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t.template"), "ok")
	cfgPath := writeFile(t, filepath.Join(dir, "stamp.json"), `{
  "var_files": [{ "path": "vars/gone.yaml" }],
  "files": [{ "template": "t", "tags": ["a"] }]
}`)

	h := newRenderHarness("")
	h.flags.Select = "+b"

	if _, err := h.cmd.Execute(h.ctx, cfgPath, dir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	status := h.status.String()
	for _, want := range []string{"vars/gone.yaml does not exist", "no files selected"} {
		if !strings.Contains(status, want) {
			t.Errorf("status = %q, want it to contain %q", status, want)
		}
	}
	if h.stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing rendered", h.stdout.String())
	}
}
