// Package testutil provides shared test helpers for bounce tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Fixture directories, relative to the module root.
const (
	ScenariosDir = "testdata/scenarios"
	CheckDir     = "testdata/check"
)

// CheckCase is a program file with the diagnostic codes it must produce.
type CheckCase struct {
	Name   string
	Source string // path to NAME.bnc
	Golden string // path to NAME.codes
}

// ListScenarios returns the scenario files under root, sorted.
func ListScenarios(root string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(root, "*.toml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ListCheckCases returns every NAME.bnc under root that has a NAME.codes
// file next to it.
func ListCheckCases(root string) ([]CheckCase, error) {
	sources, err := filepath.Glob(filepath.Join(root, "*.bnc"))
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)
	var cases []CheckCase
	for _, src := range sources {
		name := strings.TrimSuffix(filepath.Base(src), ".bnc")
		golden := filepath.Join(root, name+".codes")
		if _, err := os.Stat(golden); err != nil {
			continue
		}
		cases = append(cases, CheckCase{Name: name, Source: src, Golden: golden})
	}
	return cases, nil
}

// ReadLines returns the non-blank lines of path, trimmed. Lines starting
// with # are skipped.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := []string{}
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	return lines, nil
}
