package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/stamp/internal/core"
	"github.com/hay-kot/stamp/pkgs/fcrypt"
)

// EncryptCmd manages the vault var files of a config.
type EncryptCmd struct {
	coreFlags *core.Flags
}

func NewEncryptCmd(coreFlags *core.Flags) *EncryptCmd {
	return &EncryptCmd{coreFlags: coreFlags}
}

func (ec *EncryptCmd) Register(app *cli.Command) *cli.Command {
	cmds := []*cli.Command{
		{
			Name:      "encrypt",
			Usage:     "encrypt the vault var files of a config",
			ArgsUsage: "<config>",
			Description: `Encrypts every var file marked 'vault: true' for all configured age
recipients, writing <file>.age next to the plaintext. Files that already have an
encrypted copy are skipped. The plaintext is left in place.`,
			Action: func(ctx context.Context, c *cli.Command) error {
				if c.Args().Len() < 1 {
					return ErrConfigRequired
				}
				return ec.Encrypt(c.Args().First())
			},
		},
		{
			Name:      "decrypt",
			Usage:     "decrypt the vault var files of a config",
			ArgsUsage: "<config>",
			Description: `Decrypts every <file>.age vault var file back to its plaintext path using the
configured age identity (or --identity). Existing plaintext files are skipped.`,
			Action: func(ctx context.Context, c *cli.Command) error {
				if c.Args().Len() < 1 {
					return ErrConfigRequired
				}
				return ec.Decrypt(c.Args().First())
			},
		},
	}

	app.Commands = append(app.Commands, cmds...)
	return app
}

func (ec *EncryptCmd) Encrypt(configPath string) error {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}

	recipients, err := fcrypt.LoadRecipients(cfg.Age.Recipients)
	if err != nil {
		return fmt.Errorf("%s: %w", configPath, err)
	}

	files, err := cfg.VaultFiles()
	if err != nil {
		return err
	}

	encrypted := 0
	for _, source := range files {
		target := source + ".age"

		if !exists(source) {
			log.Debug().Str("file", source).Msg("source file doesn't exist, skipping")
			continue
		}
		if exists(target) {
			log.Debug().Str("file", target).Msg("encrypted file already exists, skipping")
			continue
		}

		if err := fcrypt.EncryptFile(source, target, recipients...); err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", source, err)
		}

		encrypted++
		log.Info().Str("file", target).Msg("file encrypted")
	}

	log.Info().Int("count", encrypted).Msg("encryption complete")
	return nil
}

func (ec *EncryptCmd) Decrypt(configPath string) error {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ageCfg := cfg.Age
	if ec.coreFlags.IdentityFile != "" {
		ageCfg.IdentityFile = ec.coreFlags.IdentityFile
	}
	if ageCfg.IdentityFile == "" {
		return fmt.Errorf("no age identity configured in %s", configPath)
	}

	identityPath, err := core.NewPathResolver(cfg.Dir()).Resolve(ageCfg.IdentityFile)
	if err != nil {
		return err
	}
	ageCfg.IdentityFile = identityPath

	identity, err := ageCfg.ReadIdentity()
	if err != nil {
		return err
	}

	files, err := cfg.VaultFiles()
	if err != nil {
		return err
	}

	decrypted := 0
	for _, target := range files {
		source := target + ".age"

		if !exists(source) {
			log.Debug().Str("file", source).Msg("encrypted file doesn't exist, skipping")
			continue
		}
		if exists(target) {
			log.Debug().Str("file", target).Msg("decrypted file already exists, skipping")
			continue
		}

		if err := fcrypt.DecryptFile(source, target, identity); err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", source, err)
		}

		decrypted++
		log.Info().Str("file", target).Msg("file decrypted")
	}

	log.Info().Int("count", decrypted).Msg("decryption complete")
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
