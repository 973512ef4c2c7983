package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// DiscoverScenarios walks root and returns every scenario file under it,
// sorted by path. Scenario files carry a .yaml or .yml extension.
func DiscoverScenarios(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover scenarios under %q: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunFile loads and runs one scenario file. A relative universe path in
// the scenario resolves against the scenario file's directory.
func RunFile(path string) (*Result, error) {
	scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return Run(scenario)
}
