package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/stamp/internal/core"
	"github.com/hay-kot/stamp/internal/generator"
	"github.com/hay-kot/stamp/pkgs/printer"
)

var ErrInvalidFiles = errors.New("config declares invalid files")

// CheckCmd validates a config without rendering anything.
type CheckCmd struct {
	coreFlags *core.Flags
}

func NewCheckCmd(coreFlags *core.Flags) *CheckCmd {
	return &CheckCmd{coreFlags: coreFlags}
}

func (cc *CheckCmd) Register(app *cli.Command) *cli.Command {
	cmd := &cli.Command{
		Name:      "check",
		Usage:     "validate a config and the templates it references",
		ArgsUsage: "<config>",
		Description: `Loads the config, validates every declared file and checks that its template
exists. Nothing is rendered or written.`,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return ErrConfigRequired
			}

			return cc.Check(ctx, c.Args().First())
		},
	}

	app.Commands = append(app.Commands, cmd)
	return app
}

func (cc *CheckCmd) Check(ctx context.Context, configPath string) error {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	invalid := 0

	for _, job := range cfg.Files {
		if err := checkJob(cfg, job); err != nil {
			p.Error(err)
			invalid++
			continue
		}

		target := "stdout"
		if !job.ToStdout() {
			target = core.EnsureExt(job.Dest, cfg.Extensions.Output)
		}
		p.Success(fmt.Sprintf("%s → %s", job.DisplayName(), target))
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidFiles, invalid, len(cfg.Files))
	}

	p.Status(fmt.Sprintf("checked %d files, all valid", len(cfg.Files)))
	return nil
}

func checkJob(cfg core.ConfigFile, job core.Job) error {
	if err := generator.ValidateJob(job); err != nil {
		return err
	}

	path := core.ResolveTemplatePath(job.Template, cfg.Dir(), cfg.Extensions.Template)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w %s: template does not exist", generator.ErrTemplateRead, path)
		}
		return fmt.Errorf("%w %s: %w", generator.ErrTemplateRead, path, err)
	}

	return nil
}
