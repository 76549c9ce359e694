package generator

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"text/template"

	"github.com/flosch/pongo2/v6"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/stamp/internal/core"
)

const maxIncludeDepth = 32

var ErrIncludeDepth = errors.New("include depth exceeded")

// pongo2 refuses to execute with a context key outside this set.
var pongoIdentRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Engine renders template text with a set of variables. name identifies the
// template in errors and is usually the path the text was read from.
type Engine interface {
	Render(name, text string, data map[string]any) (string, error)
}

// NewEngine returns the engine configured for the run.
func NewEngine(rc core.RunContext) (Engine, error) {
	switch rc.Engine {
	case core.EngineGoTemplate:
		return &goEngine{rc: rc}, nil
	case core.EnginePongo2, "":
		loader, err := pongo2.NewLocalFileSystemLoader(rc.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create template loader: %w", err)
		}
		return &pongoEngine{rc: rc, set: pongo2.NewSet("stamp", loader), skipped: &sync.Map{}}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", rc.Engine)
	}
}

// includer loads the partial named by an include call. Relative names are
// anchored at the config directory and get the template extension.
type includer struct {
	rc core.RunContext
}

func (in includer) load(name string, depth int) (string, string, error) {
	if depth > maxIncludeDepth {
		return "", "", fmt.Errorf("%w: %s", ErrIncludeDepth, name)
	}

	path := core.ResolveTemplatePath(name, in.rc.ConfigDir, in.rc.TemplateExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read include %s: %w", path, err)
	}

	log.Debug().Str("include", path).Int("depth", depth).Msg("loading partial")
	return path, string(data), nil
}

type pongoEngine struct {
	rc      core.RunContext
	set     *pongo2.TemplateSet
	skipped *sync.Map // keys already reported as unusable
}

func (e *pongoEngine) Render(name, text string, data map[string]any) (string, error) {
	return e.render(name, text, data, 0)
}

func (e *pongoEngine) render(name, text string, data map[string]any, depth int) (string, error) {
	tpl, err := e.set.FromString(text)
	if err != nil {
		return "", NewTemplateError(name, err)
	}

	var includeErr error

	ctx := e.context(data)
	ctx["include"] = func(partial string) (*pongo2.Value, error) {
		path, body, err := includer{rc: e.rc}.load(partial, depth+1)
		if err == nil {
			var out string
			out, err = e.render(path, body, data, depth+1)
			if err == nil {
				return pongo2.AsSafeValue(out), nil
			}
		}

		if includeErr == nil {
			includeErr = err
		}
		return nil, err
	}

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", NewTemplateError(name, err).withCause(includeErr)
	}

	return out, nil
}

// context builds the pongo2 context for data. Keys pongo2 cannot address are
// skipped with a warning. Integral floats become int64 so they print as 3,
// not 3.000000.
func (e *pongoEngine) context(data map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(data)+1)
	for k, v := range data {
		if !pongoIdentRe.MatchString(k) {
			if _, seen := e.skipped.LoadOrStore(k, true); !seen {
				log.Warn().Str("var", k).Msg("variable name is not a valid identifier, not available to templates")
			}
			continue
		}
		ctx[k] = normalizeNumbers(v)
	}
	return ctx
}

// normalizeNumbers returns v with every integral float64 in it, at any depth
// of maps and slices, converted to int64.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeNumbers(item)
		}
		return out
	default:
		return v
	}
}

type goEngine struct {
	rc core.RunContext
}

func (e *goEngine) Render(name, text string, data map[string]any) (string, error) {
	return e.render(name, text, data, 0)
}

func (e *goEngine) render(name, text string, data map[string]any, depth int) (string, error) {
	tmpl := template.New(filepath.Base(name))

	if e.rc.StrictMode {
		tmpl = tmpl.Option("missingkey=error")
	}

	var includeErr error

	tmpl = tmpl.Funcs(template.FuncMap{
		"include": func(partial string) (string, error) {
			path, body, err := includer{rc: e.rc}.load(partial, depth+1)
			if err == nil {
				var out string
				out, err = e.render(path, body, data, depth+1)
				if err == nil {
					return out, nil
				}
			}

			if includeErr == nil {
				includeErr = err
			}
			return "", err
		},
	})

	tmpl, err := tmpl.Parse(text)
	if err != nil {
		return "", NewTemplateError(name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewTemplateError(name, err).withCause(includeErr)
	}

	return buf.String(), nil
}
