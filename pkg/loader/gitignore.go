// Package loader turns sources (outline documents and directory trees) into
// tree elements ready to be spliced into a model.
// This file handles .gitignore matching for directory scans.
package loader

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ignoreRule is one parsed .gitignore line.
type ignoreRule struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool // contains a slash: matched against the relative path
}

// IgnoreMatcher holds the rules of a single .gitignore file. Paths passed
// to Match are relative to the directory that holds the file, slash
// separated.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// ParseGitignore reads .gitignore rules from r.
// It skips:
//   - empty lines and comments
//   - lines that are only a negation or a slash
func ParseGitignore(r io.Reader) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var rule ignoreRule
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		line = strings.TrimPrefix(line, `\`)
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		if strings.Contains(line, "/") {
			rule.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		if line == "" {
			continue
		}
		rule.pattern = line
		m.rules = append(m.rules, rule)
	}
	return m, scanner.Err()
}

// LoadGitignore reads dir/.gitignore. A missing file yields a nil matcher
// and no error.
func LoadGitignore(dir string) (*IgnoreMatcher, error) {
	file, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return ParseGitignore(file)
}

// Match reports whether rel is ignored. The last matching rule wins, so a
// later negation re-includes a path.
func (m *IgnoreMatcher) Match(rel string, isDir bool) (ignored, matched bool) {
	if m == nil {
		return false, false
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	for _, rule := range m.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		if rule.matches(rel, base) {
			ignored, matched = !rule.negate, true
		}
	}
	return ignored, matched
}

func (r ignoreRule) matches(rel, base string) bool {
	if !r.anchored {
		ok, _ := path.Match(r.pattern, base)
		return ok
	}
	if ok, _ := path.Match(r.pattern, rel); ok {
		return true
	}
	// "**/" matches in any directory.
	if rest, ok := strings.CutPrefix(r.pattern, "**/"); ok {
		for candidate := rel; ; {
			if m, _ := path.Match(rest, candidate); m {
				return true
			}
			i := strings.Index(candidate, "/")
			if i < 0 {
				return false
			}
			candidate = candidate[i+1:]
		}
	}
	// "dir/**" matches everything below dir.
	if prefix, ok := strings.CutSuffix(r.pattern, "/**"); ok {
		if m, _ := path.Match(prefix, rel); m {
			return true
		}
		parts := strings.Split(rel, "/")
		for i := 1; i < len(parts); i++ {
			if m, _ := path.Match(prefix, strings.Join(parts[:i], "/")); m {
				return true
			}
		}
	}
	return false
}

// ignoreScope is a matcher together with the directory its file lives in.
type ignoreScope struct {
	dir     string
	matcher *IgnoreMatcher
}

// ignoreChain is the stack of .gitignore files in effect for a directory,
// outermost first.
type ignoreChain []ignoreScope

// with returns the chain extended by dir's own .gitignore, if any.
func (c ignoreChain) with(dir string) ignoreChain {
	m, err := LoadGitignore(dir)
	if err != nil || m == nil {
		return c
	}
	next := make(ignoreChain, len(c), len(c)+1)
	copy(next, c)
	return append(next, ignoreScope{dir: dir, matcher: m})
}

// ignored evaluates the chain for the absolute path p; deeper files
// override shallower ones.
func (c ignoreChain) ignored(p string, isDir bool) bool {
	result := false
	for _, scope := range c {
		rel, err := filepath.Rel(scope.dir, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if ignored, matched := scope.matcher.Match(rel, isDir); matched {
			result = ignored
		}
	}
	return result
}

// EnsureIgnored makes sure dirName (e.g. ".itv") is ignored by
// projectDir/.gitignore, appending a rule when the existing rules do not
// already cover it. The file is created if missing.
func EnsureIgnored(projectDir, dirName string) error {
	m, err := LoadGitignore(projectDir)
	if err != nil {
		return err
	}
	if ignored, _ := m.Match(dirName, true); ignored {
		return nil
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")
	content, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var toWrite string
	if len(content) > 0 {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n"
	}
	toWrite += "# itv local workspace\n" + dirName + "/\n"

	file, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(toWrite)
	return err
}
