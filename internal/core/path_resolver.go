package core

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureExt returns name with ext appended, unless name already ends with
// ext.
func EnsureExt(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

// ResolveTemplatePath returns the absolute path of a job template. Relative
// templates are anchored at the config directory.
func ResolveTemplatePath(template, configDir, ext string) string {
	return anchor(EnsureExt(template, ext), configDir)
}

// ResolveDestPath returns the absolute path a job writes to. Relative
// destinations are anchored at the destination root.
func ResolveDestPath(dest, destRoot, ext string) string {
	return anchor(EnsureExt(dest, ext), destRoot)
}

func anchor(p, root string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// PathResolver provides a resolving service for paths that turns a relative or
// paths with '~' type symbols into absolute paths.
type PathResolver struct {
	root string // directory relative paths are resolved against
}

func NewPathResolver(root string) PathResolver {
	return PathResolver{root: root}
}

func (pr PathResolver) Resolve(ip string) (string, error) {
	// Handle home directory expansion
	if strings.HasPrefix(ip, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		ip = filepath.Join(homeDir, strings.TrimPrefix(ip, "~"))
	}

	if filepath.IsAbs(ip) {
		return filepath.Clean(ip), nil
	}

	if pr.root != "" {
		return filepath.Join(pr.root, ip), nil
	}

	// Fallback to absolute path from current directory
	return filepath.Abs(ip)
}
