// Package commands contains the CLI commands for the application
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/stamp/internal/core"
	"github.com/hay-kot/stamp/internal/generator"
	"github.com/hay-kot/stamp/pkgs/cll"
	"github.com/hay-kot/stamp/pkgs/printer"
)

var envvars = cll.EnvWithPrefix(core.EnvPrefix)

var (
	ErrConfigRequired = errors.New("a path to a config file must be declared")
	ErrJobsFailed     = errors.New("jobs failed")
)

// RenderCmd is the root action: render every job of a config file.
type RenderCmd struct {
	coreFlags *core.Flags

	stdout    io.Writer
	readStdin func() (string, error)
	pick      func([]core.Job) ([]core.Job, error)
}

func NewRenderCmd(coreFlags *core.Flags) *RenderCmd {
	return &RenderCmd{
		coreFlags: coreFlags,
		stdout:    os.Stdout,
		readStdin: func() (string, error) { return CaptureStdin(os.Stdin) },
		pick:      PickJobs,
	}
}

func (rc *RenderCmd) Register(app *cli.Command) *cli.Command {
	app.ArgsUsage = "<config> [dest]"
	app.Description = `Renders every file declared in the config and writes the results below dest
(default: the current directory). Files without a dest are printed to stdout.

Templates and include('path') calls are resolved relative to the config file.

Example config (JSON, YAML and TOML are accepted):
  {
    "globals": { "title": "Docs" },
    "files": [
      { "template": "layouts/page", "dest": "site/index", "locals": { "title": "Home" } },
      { "template": "layouts/snippet" }
    ]
  }`

	app.Flags = append(app.Flags,
		&cli.StringFlag{
			Name:        "read",
			Aliases:     []string{"r"},
			Usage:       "capture piped stdin into the named global variable",
			Sources:     envvars("READ"),
			Destination: &rc.coreFlags.ReadVar,
		},
		&cli.StringFlag{
			Name:        "select",
			Aliases:     []string{"s"},
			Usage:       "only render files matching the expression (+tag and !tag shortcuts allowed)",
			Sources:     envvars("SELECT"),
			Destination: &rc.coreFlags.Select,
		},
		&cli.BoolFlag{
			Name:        "pick",
			Usage:       "choose the files to render interactively",
			Destination: &rc.coreFlags.Pick,
		},
		&cli.IntFlag{
			Name:        "jobs",
			Aliases:     []string{"j"},
			Usage:       "maximum number of files rendered at once",
			Value:       1,
			Sources:     envvars("JOBS"),
			Destination: &rc.coreFlags.Jobs,
		},
		&cli.StringFlag{
			Name:        "identity",
			Aliases:     []string{"i"},
			Usage:       "age identity file used to decrypt vault var files",
			Sources:     envvars("IDENTITY"),
			Destination: &rc.coreFlags.IdentityFile,
		},
	)

	app.Action = rc.render
	return app
}

func (rc *RenderCmd) render(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() < 1 {
		return ErrConfigRequired
	}

	destRoot := c.Args().Get(1)
	if destRoot == "" {
		destRoot = "."
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := rc.Execute(ctx, c.Args().First(), destRoot)
	return err
}

// Execute loads the config at configPath and renders its files below
// destRoot. Per-file failures are printed as they happen and reported
// together through ErrJobsFailed once every file has been attempted.
func (rc *RenderCmd) Execute(ctx context.Context, configPath, destRoot string) (generator.Report, error) {
	flags := rc.coreFlags

	if flags.Pick && flags.ReadVar != "" {
		return generator.Report{}, errors.New("--pick cannot be combined with --read, stdin is needed for the form")
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return generator.Report{}, err
	}

	p := printer.Ctx(ctx)

	cfg, missing, err := cfg.LoadVarFiles(flags.IdentityFile)
	if err != nil {
		return generator.Report{}, err
	}
	for _, path := range missing {
		p.Warning(fmt.Sprintf("vars file %s does not exist, skipped", path))
	}

	destRoot, err = core.NewPathResolver("").Resolve(destRoot)
	if err != nil {
		return generator.Report{}, fmt.Errorf("failed to resolve destination %s: %w", destRoot, err)
	}

	runCtx := core.NewRunContext(cfg, destRoot)

	if flags.ReadVar != "" {
		stdin, err := rc.readStdin()
		if err != nil {
			return generator.Report{}, fmt.Errorf("failed to read stdin: %w", err)
		}

		cfg = cfg.WithGlobal(flags.ReadVar, stdin)

		log.Debug().Str("var", flags.ReadVar).Int("bytes", len(stdin)).Msg("captured stdin")
	}

	jobs, err := rc.selectJobs(cfg.Files)
	if err != nil {
		return generator.Report{}, err
	}
	if len(jobs) == 0 {
		p.Warning("no files selected, nothing to render")
	}

	log.Debug().
		Str("config", runCtx.ConfigPath).
		Str("dest", runCtx.DestRoot).
		Str("engine", runCtx.Engine).
		Int("jobs", len(jobs)).
		Msg("starting run")

	gen, err := generator.New(runCtx, cfg.Globals,
		generator.WithStdout(rc.stdout),
		generator.WithPrinter(p),
		generator.WithWorkers(flags.Jobs),
	)
	if err != nil {
		return generator.Report{}, err
	}

	report := gen.Generate(ctx, jobs)
	p.Summary(report.Written(), report.Failed())

	if failed := report.Failed(); failed > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrJobsFailed, failed, len(jobs))
	}

	return report, nil
}

func (rc *RenderCmd) selectJobs(jobs []core.Job) ([]core.Job, error) {
	var err error

	if rc.coreFlags.Select != "" {
		jobs, err = SelectJobs(jobs, rc.coreFlags.Select)
		if err != nil {
			return nil, err
		}
	}

	if rc.coreFlags.Pick && len(jobs) > 0 {
		jobs, err = rc.pick(jobs)
		if err != nil {
			return nil, err
		}
	}

	return jobs, nil
}
