package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/stamp/pkgs/fcrypt"
)

const vaultExt = ".age"

type Age struct {
	Recipients   []string `json:"recipients" yaml:"recipients" toml:"recipients"`
	IdentityFile string   `json:"identity_file" yaml:"identity_file" toml:"identity_file"`
}

// VaultFiles returns the resolved plaintext paths of every var file marked
// as a vault.
func (c ConfigFile) VaultFiles() ([]string, error) {
	resolver := NewPathResolver(c.Dir())
	files := []string{}

	for _, vf := range c.VarFiles {
		if !vf.IsVault {
			continue
		}
		p, err := resolver.Resolve(strings.TrimSuffix(vf.Path, vaultExt))
		if err != nil {
			return nil, err
		}
		files = append(files, p)
	}

	return files, nil
}

func (a Age) ReadIdentity() (age.Identity, error) {
	return fcrypt.LoadIdentityFile(a.IdentityFile)
}

// LoadVarFiles merges every configured var file into the global variables,
// in order, with file values overriding inline globals. identityFile, when
// set, takes precedence over the configured age identity. Var files that do
// not exist are skipped and returned as missing.
func (c ConfigFile) LoadVarFiles(identityFile string) (ConfigFile, []string, error) {
	if len(c.VarFiles) == 0 {
		return c, nil, nil
	}

	ageCfg := c.Age
	if identityFile != "" {
		ageCfg.IdentityFile = identityFile
	}

	resolver := NewPathResolver(c.Dir())
	if ageCfg.IdentityFile != "" {
		p, err := resolver.Resolve(ageCfg.IdentityFile)
		if err != nil {
			return c, nil, err
		}
		ageCfg.IdentityFile = p
	}

	var (
		identity age.Identity
		missing  []string
	)
	globals := maps.Clone(c.Globals)
	if globals == nil {
		globals = map[string]any{}
	}

	for _, vf := range c.VarFiles {
		path, err := resolver.Resolve(vf.Path)
		if err != nil {
			return c, nil, err
		}

		if vf.IsVault && identity == nil {
			if ageCfg.IdentityFile == "" {
				return c, nil, fmt.Errorf("no identity configured for encrypted file %s", vf.Path)
			}
			identity, err = ageCfg.ReadIdentity()
			if err != nil {
				return c, nil, err
			}
		}

		vars, err := loadVarsFile(path, vf.IsVault, identity)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("path", path).Msg("vars file does not exist, skipping")
				missing = append(missing, vf.Path)
				continue
			}
			return c, nil, fmt.Errorf("failed to load vars file %s: %w", vf.Path, err)
		}

		maps.Copy(globals, vars)
	}

	c.Globals = globals
	return c, missing, nil
}

func loadVarsFile(path string, vault bool, identity age.Identity) (map[string]any, error) {
	if vault && filepath.Ext(path) != vaultExt {
		path += vaultExt
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Format is taken from the extension under the .age suffix
	formatPath := path
	if vault {
		var buf bytes.Buffer
		if err := fcrypt.DecryptReader(bytes.NewReader(data), &buf, identity); err != nil {
			return nil, err
		}
		data = buf.Bytes()
		formatPath = strings.TrimSuffix(path, vaultExt)
	}

	vars := map[string]any{}
	if err := decode(formatPath, data, &vars); err != nil {
		return nil, err
	}

	log.Debug().Str("path", path).Int("keys", len(vars)).Msg("loaded vars file")
	return vars, nil
}
