package core

// EnvPrefix namespaces the environment variables read by the CLI flags.
const EnvPrefix = "STAMP_"

// Flags holds the values of the global command line flags.
type Flags struct {
	LogLevel     string
	ReadVar      string
	Select       string
	Pick         bool
	Jobs         int
	IdentityFile string
}

// RunContext is the immutable state shared by every job of a run.
type RunContext struct {
	ConfigPath  string
	ConfigDir   string
	DestRoot    string
	TemplateExt string
	OutputExt   string
	Engine      string
	StrictMode  bool
}

// NewRunContext builds the run context for cfg. destRoot must already be
// absolute.
func NewRunContext(cfg ConfigFile, destRoot string) RunContext {
	return RunContext{
		ConfigPath:  cfg.Path,
		ConfigDir:   cfg.Dir(),
		DestRoot:    destRoot,
		TemplateExt: cfg.Extensions.Template,
		OutputExt:   cfg.Extensions.Output,
		Engine:      cfg.Engine,
		StrictMode:  cfg.StrictMode,
	}
}
