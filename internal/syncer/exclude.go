package syncer

import (
	"bufio"
	"os"
	"strings"

	"github.com/gobwas/glob"

	"github.com/rediacc/desktop/internal/errors"
)

// ExclusionSet is an immutable set of compiled glob patterns over relative
// paths. A pattern matches an entry when it matches the full relative path,
// the basename, or any parent directory of the entry, so excluding
// "node_modules" hides the whole subtree.
type ExclusionSet struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	source string
	g      glob.Glob
}

// CompileExclusions builds an ExclusionSet from inline patterns plus the
// lines of an optional exclude file. Blank lines and '#' comments in the
// file are ignored.
func CompileExclusions(patterns []string, excludeFile string) (*ExclusionSet, error) {
	all := append([]string(nil), patterns...)

	if excludeFile != "" {
		f, err := os.Open(excludeFile)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrPlan,
				"could not read the exclude file "+excludeFile,
				"Check the --exclude-from path")
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			all = append(all, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrPlan,
				"could not read the exclude file "+excludeFile, "")
		}
	}

	set := &ExclusionSet{}
	for _, p := range all {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrPlan,
				"invalid exclude pattern "+p,
				"Patterns use glob syntax, e.g. '*.tmp' or 'logs/**'")
		}
		set.patterns = append(set.patterns, compiledPattern{source: p, g: g})
	}
	return set, nil
}

// Len returns the number of compiled patterns.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Match reports whether the relative path is excluded.
func (s *ExclusionSet) Match(relPath string) bool {
	if s == nil || len(s.patterns) == 0 {
		return false
	}
	relPath = strings.Trim(relPath, "/")
	base := relPath
	if idx := strings.LastIndex(relPath, "/"); idx != -1 {
		base = relPath[idx+1:]
	}
	for _, p := range s.patterns {
		if p.g.Match(relPath) || p.g.Match(base) {
			return true
		}
		// A matching parent directory excludes everything below it.
		for dir := parentOf(relPath); dir != ""; dir = parentOf(dir) {
			if p.g.Match(dir) || p.g.Match(baseOf(dir)) {
				return true
			}
		}
	}
	return false
}

func parentOf(relPath string) string {
	idx := strings.LastIndex(relPath, "/")
	if idx == -1 {
		return ""
	}
	return relPath[:idx]
}

func baseOf(relPath string) string {
	if idx := strings.LastIndex(relPath, "/"); idx != -1 {
		return relPath[idx+1:]
	}
	return relPath
}
