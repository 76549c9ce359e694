package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/tidwall/jsonc"
)

const (
	DefaultTemplateExt = ".template"
	DefaultOutputExt   = ".output"

	EnginePongo2     = "pongo2"
	EngineGoTemplate = "gotemplate"
)

var (
	ErrConfigNotFound = errors.New("config path does not exist")
	ErrNoFiles        = errors.New("no files have been declared")
)

type ConfigFile struct {
	Files      []Job          `json:"files" yaml:"files" toml:"files"`
	Globals    map[string]any `json:"globals" yaml:"globals" toml:"globals"`
	VarFiles   []VarFile      `json:"var_files" yaml:"var_files" toml:"var_files"`
	Age        Age            `json:"age" yaml:"age" toml:"age"`
	Engine     string         `json:"engine" yaml:"engine" toml:"engine"`
	StrictMode bool           `json:"strict_mode" yaml:"strict_mode" toml:"strict_mode"`
	Extensions Extensions     `json:"extensions" yaml:"extensions" toml:"extensions"`

	// Path is the absolute path the config was loaded from.
	Path string `json:"-" yaml:"-" toml:"-"`
}

// Dir is the directory templates, includes and var files are resolved
// against.
func (c ConfigFile) Dir() string {
	return filepath.Dir(c.Path)
}

// WithGlobal returns a copy of the config with key bound to value in the
// global variables. The receiver's map is left untouched.
func (c ConfigFile) WithGlobal(key string, value any) ConfigFile {
	globals := make(map[string]any, len(c.Globals)+1)
	for k, v := range c.Globals {
		globals[k] = v
	}
	globals[key] = value
	c.Globals = globals
	return c
}

// Job describes a single template to render.
type Job struct {
	Name     string         `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Template string         `json:"template,omitempty" yaml:"template,omitempty" toml:"template,omitempty"`
	Dest     string         `json:"dest,omitempty" yaml:"dest,omitempty" toml:"dest,omitempty"`
	Locals   map[string]any `json:"locals,omitempty" yaml:"locals,omitempty" toml:"locals,omitempty"`
	Globals  map[string]any `json:"globals,omitempty" yaml:"globals,omitempty" toml:"globals,omitempty"`
	Tags     []string       `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
}

// DisplayName is the name used in output and selection expressions.
func (j Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Template
}

// ToStdout reports whether the rendered job is written to standard output.
func (j Job) ToStdout() bool {
	return j.Dest == ""
}

type Extensions struct {
	Template string `json:"template" yaml:"template" toml:"template"`
	Output   string `json:"output" yaml:"output" toml:"output"`
}

type VarFile struct {
	Path    string `json:"path" yaml:"path" toml:"path"`
	IsVault bool   `json:"vault" yaml:"vault" toml:"vault"`
}

// LoadConfig reads and validates the config file at path. The format is
// picked from the file extension; anything that is not YAML or TOML is read
// as JSON with comments and trailing commas allowed.
func LoadConfig(path string) (ConfigFile, error) {
	cfg := ConfigFile{}

	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return cfg, err
	}

	if _, err := os.Stat(absolutePath); errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	data, err := os.ReadFile(absolutePath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := decode(absolutePath, data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if len(cfg.Files) == 0 {
		return cfg, fmt.Errorf("%w in %s", ErrNoFiles, path)
	}

	cfg.Path = absolutePath
	cfg.setDefaults()

	switch cfg.Engine {
	case EnginePongo2, EngineGoTemplate:
	default:
		return cfg, fmt.Errorf("unknown engine %q (expected %q or %q)", cfg.Engine, EnginePongo2, EngineGoTemplate)
	}

	return cfg, nil
}

func (c *ConfigFile) setDefaults() {
	if c.Globals == nil {
		c.Globals = map[string]any{}
	}
	if c.Engine == "" {
		c.Engine = EnginePongo2
	}
	if c.Extensions.Template == "" {
		c.Extensions.Template = DefaultTemplateExt
	}
	if c.Extensions.Output == "" {
		c.Extensions.Output = DefaultOutputExt
	}
	for i := range c.Files {
		if c.Files[i].Locals == nil {
			c.Files[i].Locals = map[string]any{}
		}
		if c.Files[i].Globals == nil {
			c.Files[i].Globals = map[string]any{}
		}
	}
}

// decode unmarshals data into v using the format implied by the extension
// of path.
func decode(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return yaml.Unmarshal(data, v)
	case ".toml":
		return toml.Unmarshal(data, v)
	default:
		return json.Unmarshal(jsonc.ToJSON(data), v)
	}
}
