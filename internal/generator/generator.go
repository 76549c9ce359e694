package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/hay-kot/stamp/internal/core"
	"github.com/hay-kot/stamp/pkgs/printer"
)

type Generator struct {
	rc      core.RunContext
	globals map[string]any
	engine  Engine
	printer *printer.Printer
	workers int

	stdoutMu sync.Mutex
	stdout   io.Writer
}

type Option func(*Generator)

// WithStdout sets where jobs without a destination are written.
func WithStdout(w io.Writer) Option {
	return func(g *Generator) {
		g.stdout = w
	}
}

func WithPrinter(p *printer.Printer) Option {
	return func(g *Generator) {
		g.printer = p
	}
}

// WithWorkers bounds the number of jobs in flight. Values below one mean one.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		g.workers = max(n, 1)
	}
}

func New(rc core.RunContext, globals map[string]any, opts ...Option) (*Generator, error) {
	engine, err := NewEngine(rc)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		rc:      rc,
		globals: globals,
		engine:  engine,
		printer: printer.ConsolePrinter,
		workers: 1,
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Result is the outcome of a single job.
type Result struct {
	Index  int
	Job    core.Job
	Output string // written file, empty when the job printed to stdout
	Err    error
}

type Report struct {
	Results []Result
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Written counts the jobs that produced a file.
func (r Report) Written() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Output != "" {
			n++
		}
	}
	return n
}

// Generate runs every job and waits for all of them. A failing job is
// reported in its Result and never stops the others. Once ctx is done no
// further jobs are started.
func (g *Generator) Generate(ctx context.Context, jobs []core.Job) Report {
	p := pool.NewWithResults[Result]().WithMaxGoroutines(g.workers)

	for i, job := range jobs {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(jobs)-i).Msg("run cancelled, skipping remaining jobs")
			break
		}

		p.Go(func() Result {
			res := g.Run(job)
			res.Index = i
			return res
		})
	}

	results := p.Wait()
	slices.SortFunc(results, func(a, b Result) int { return a.Index - b.Index })

	return Report{Results: results}
}

// Run validates, renders and writes a single job. Failures are printed before
// returning.
func (g *Generator) Run(job core.Job) Result {
	res := Result{Job: job}

	res.Output, res.Err = g.process(job)
	if res.Err != nil {
		g.printer.Error(res.Err)

		var te *TemplateError
		if errors.As(res.Err, &te) {
			log.Debug().Msg("\n" + te.Pretty())
		}
	}

	return res
}

func (g *Generator) process(job core.Job) (string, error) {
	if err := ValidateJob(job); err != nil {
		return "", err
	}

	tmplPath := core.ResolveTemplatePath(job.Template, g.rc.ConfigDir, g.rc.TemplateExt)

	raw, err := os.ReadFile(tmplPath)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrTemplateRead, tmplPath, err)
	}

	vars := RenderData(g.globals, job)

	log.Debug().
		Str("template", tmplPath).
		Str("dest", job.Dest).
		Int("vars", len(vars)).
		Msg("rendering job")

	rendered, err := g.engine.Render(tmplPath, RewriteIncludes(string(raw), g.rc.ConfigDir), vars)
	if err != nil {
		return "", err
	}

	if job.ToStdout() {
		return "", g.writeStdout(rendered)
	}

	dest := core.ResolveDestPath(job.Dest, g.rc.DestRoot, g.rc.OutputExt)
	if err := writeFile(dest, rendered); err != nil {
		return "", err
	}

	g.printer.Rendered(shortenPath(tmplPath), shortenPath(dest))
	return dest, nil
}

func (g *Generator) writeStdout(rendered string) error {
	g.stdoutMu.Lock()
	defer g.stdoutMu.Unlock()

	_, err := io.WriteString(g.stdout, rendered)
	return err
}

// writeFile atomically replaces dest with content, creating missing parent
// directories. New files are created 0644, existing files keep their mode.
func writeFile(dest, content string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w %s: %w", ErrDirectoryCreate, dir, err)
	}

	_, statErr := os.Stat(dest)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	if err := atomic.WriteFile(dest, strings.NewReader(content)); err != nil {
		return fmt.Errorf("%w %s: %w", ErrFileWrite, dest, err)
	}

	if isNew {
		if err := os.Chmod(dest, 0o644); err != nil {
			return fmt.Errorf("%w %s: %w", ErrFileWrite, dest, err)
		}
	}

	return nil
}

// ValidateJob checks the keys a job needs before any I/O happens.
func ValidateJob(job core.Job) error {
	if job.Template == "" {
		return NewJobError("template", ReasonMissing, job)
	}

	// An empty dest means stdout. A dest that is present but names no file
	// is rejected rather than silently printed.
	if job.Dest != "" && (strings.TrimSpace(job.Dest) == "" || strings.HasSuffix(job.Dest, "/")) {
		return NewJobError("dest", ReasonInvalid, job)
	}

	return nil
}

// RenderData merges the variables a job is rendered with. Later sources win:
// config globals < job globals < job locals.
func RenderData(globals map[string]any, job core.Job) map[string]any {
	return MergeMaps(globals, job.Globals, job.Locals)
}

// MergeMaps merges multiple maps with later maps taking precedence over earlier ones.
// Returns a new map without modifying the input maps.
func MergeMaps[K comparable, V any](mps ...map[K]V) map[K]V {
	result := make(map[K]V)

	for _, m := range mps {
		maps.Copy(result, m)
	}

	return result
}

func shortenPath(path string) string {
	// Relative to the working directory when the file lives below it
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}

	return filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path))
}
