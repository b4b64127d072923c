package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// ScenarioNotFoundError is returned when a referenced scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path         string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist (resolved to: %s)", e.Path, e.ResolvedPath)
}

// DiscoverScenarios expands paths into scenario files. Relative paths are
// resolved against baseDir. Directories are walked for .yaml and .yml
// files. The result is sorted and free of duplicates.
func DiscoverScenarios(baseDir string, paths ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		resolved := p
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, resolved)
		}

		info, err := os.Stat(resolved)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: p, ResolvedPath: resolved}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, resolved)
			continue
		}

		err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", resolved, err)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
