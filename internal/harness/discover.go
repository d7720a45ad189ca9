package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a named scenario file doesn't exist.
type ScenarioNotFoundError struct {
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario file %q does not exist (resolved to: %s)", e.ScenarioPath, e.ResolvedPath)
}

// FindScenarios returns the scenario files a path names.
//
// A file is returned as is. A directory is walked recursively for *.yaml
// and *.yml files, returned in lexical order so runs are reproducible.
// Relative paths are resolved against baseDir.
func FindScenarios(path, baseDir string) ([]string, error) {
	resolved := path
	if !filepath.IsAbs(resolved) && baseDir != "" {
		resolved = filepath.Join(baseDir, resolved)
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{ScenarioPath: path, ResolvedPath: resolved}
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return []string{resolved}, nil
	}

	var files []string
	err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", resolved, err)
	}
	sort.Strings(files)
	return files, nil
}
