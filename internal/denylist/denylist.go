// Package denylist is the command-security checker behind `hookroute guard`.
// It matches shell commands, file paths and URLs from host tool events
// against irreversible-action patterns.
package denylist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Patterns holds the raw patterns by category.
type Patterns struct {
	// Commands are case-insensitive regular expressions.
	Commands []string `yaml:"commands"`
	// Files are globs: * stays within a directory, ** crosses directories,
	// and a pattern without a leading / matches any path suffix.
	Files []string `yaml:"files"`
	// URLs are globs matched anywhere in the URL.
	URLs []string `yaml:"urls"`
	// ExtendDefaults appends these patterns to DefaultPatterns instead of
	// replacing them.
	ExtendDefaults bool `yaml:"extend_defaults,omitempty"`
}

// Category names a pattern group.
type Category string

const (
	CategoryCommand Category = "command"
	CategoryFile    Category = "file"
	CategoryURL     Category = "url"
)

// Match describes why a resource was denied.
type Match struct {
	Category Category `json:"category"`
	Pattern  string   `json:"pattern"`
	Reason   string   `json:"reason"`
}

type rule struct {
	pattern string
	re      *regexp.Regexp
}

// Denylist holds compiled patterns.
type Denylist struct {
	commands []rule
	files    []rule
	urls     []rule
	raw      Patterns
}

// New compiles p. Every invalid pattern is reported.
func New(p Patterns) (*Denylist, error) {
	d := &Denylist{raw: p}
	var errs []error
	for _, c := range p.Commands {
		re, err := regexp.Compile("(?i)" + c)
		if err != nil {
			errs = append(errs, fmt.Errorf("commands: %q: %w", c, err))
			continue
		}
		d.commands = append(d.commands, rule{pattern: c, re: re})
	}
	for _, f := range p.Files {
		re, err := regexp.Compile(fileGlobToRegex(f))
		if err != nil {
			errs = append(errs, fmt.Errorf("files: %q: %w", f, err))
			continue
		}
		d.files = append(d.files, rule{pattern: f, re: re})
	}
	for _, u := range p.URLs {
		re, err := regexp.Compile("(?i)" + globToRegex(u))
		if err != nil {
			errs = append(errs, fmt.Errorf("urls: %q: %w", u, err))
			continue
		}
		d.urls = append(d.urls, rule{pattern: u, re: re})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return d, nil
}

// NewDefault returns the built-in denylist.
func NewDefault() *Denylist {
	d, err := New(DefaultPatterns)
	if err != nil {
		panic("denylist: invalid default patterns: " + err.Error())
	}
	return d
}

// Load reads a denylist from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Denylist, error) {
	if path == "" {
		return NewDefault(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, fmt.Errorf("read denylist: %w", err)
	}

	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse denylist %s: %w", path, err)
	}
	if p.ExtendDefaults {
		p = Patterns{
			Commands: append(append([]string{}, DefaultPatterns.Commands...), p.Commands...),
			Files:    append(append([]string{}, DefaultPatterns.Files...), p.Files...),
			URLs:     append(append([]string{}, DefaultPatterns.URLs...), p.URLs...),
		}
	}
	d, err := New(p)
	if err != nil {
		return nil, fmt.Errorf("denylist %s: %w", path, err)
	}
	return d, nil
}

// Patterns returns the raw patterns in use.
func (d *Denylist) Patterns() Patterns {
	return d.raw
}

// Check routes resource to the matcher for the host tool. URL-shaped
// resources are always checked against URL patterns.
func (d *Denylist) Check(tool, resource string) (Match, bool) {
	if resource == "" {
		return Match{}, false
	}
	if isURL(resource) || isWebTool(tool) {
		if m, ok := d.CheckURL(resource); ok {
			return m, true
		}
	}
	switch {
	case isCommandTool(tool):
		return d.CheckCommand(resource)
	case isFileTool(tool):
		return d.CheckFile(resource)
	}
	return Match{}, false
}

// CheckCommand matches a shell command string.
func (d *Denylist) CheckCommand(cmd string) (Match, bool) {
	for _, r := range d.commands {
		if r.re.MatchString(cmd) {
			return Match{Category: CategoryCommand, Pattern: r.pattern, Reason: "command pattern blocked: " + r.pattern}, true
		}
	}
	if isPipeToShell(strings.ToLower(cmd)) {
		return Match{Category: CategoryCommand, Pattern: "pipe-to-shell", Reason: "pipe-to-shell execution detected"}, true
	}
	return Match{}, false
}

// CheckFile matches a file path. Paths are compared after cleaning, with
// the home directory folded to ~.
func (d *Denylist) CheckFile(path string) (Match, bool) {
	p := normalizePath(path)
	for _, r := range d.files {
		if r.re.MatchString(p) {
			return Match{Category: CategoryFile, Pattern: r.pattern, Reason: "file pattern blocked: " + r.pattern}, true
		}
	}
	return Match{}, false
}

// CheckURL matches a URL.
func (d *Denylist) CheckURL(url string) (Match, bool) {
	for _, r := range d.urls {
		if r.re.MatchString(url) {
			return Match{Category: CategoryURL, Pattern: r.pattern, Reason: "URL pattern blocked: " + r.pattern}, true
		}
	}
	return Match{}, false
}

func normalizePath(p string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		home = filepath.ToSlash(home)
		if p == home || strings.HasPrefix(p, home+"/") {
			p = "~" + p[len(home):]
		}
	}
	return p
}

// globToRegex converts * and ** to regular expressions and quotes the rest.
func globToRegex(glob string) string {
	escaped := regexp.QuoteMeta(glob)
	escaped = strings.ReplaceAll(escaped, `\*\*/`, "(.*/)?")
	escaped = strings.ReplaceAll(escaped, `\*\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\*`, "[^/]*")
	escaped = strings.ReplaceAll(escaped, `\?`, "[^/]")
	return escaped
}

// fileGlobToRegex anchors a file glob. Absolute and ~ patterns match from
// the start; relative patterns match at any directory boundary.
func fileGlobToRegex(glob string) string {
	body := globToRegex(glob)
	if strings.HasPrefix(glob, "/") || strings.HasPrefix(glob, "~/") {
		return "^" + body + "$"
	}
	return "(^|/)" + body + "$"
}

func isWebTool(tool string) bool {
	t := strings.ToLower(tool)
	return strings.Contains(t, "fetch") || strings.Contains(t, "http") || strings.Contains(t, "browser") || strings.Contains(t, "web")
}

func isFileTool(tool string) bool {
	t := strings.ToLower(tool)
	switch t {
	case "read", "write", "edit", "multiedit", "notebookedit":
		return true
	}
	return strings.Contains(t, "file")
}

func isCommandTool(tool string) bool {
	t := strings.ToLower(tool)
	return t == "bash" || strings.Contains(t, "shell") || strings.Contains(t, "command") || strings.Contains(t, "exec")
}

func isURL(resource string) bool {
	r := strings.ToLower(resource)
	return strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://")
}

var (
	shells      = []string{"sh", "bash", "zsh", "fish", "dash"}
	downloaders = []string{"curl", "wget"}
)

// isPipeToShell detects "curl ... | sh" and "wget ... | sudo bash".
func isPipeToShell(cmd string) bool {
	if !strings.Contains(cmd, "|") {
		return false
	}
	parts := strings.Split(cmd, "|")
	downloaded := false
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if i > 0 && downloaded {
			first := fields[0]
			if first == "sudo" && len(fields) > 1 {
				first = fields[1]
			}
			for _, s := range shells {
				if first == s || strings.HasSuffix(first, "/"+s) {
					return true
				}
			}
		}
		for _, d := range downloaders {
			if fields[0] == d || strings.Contains(part, d+" ") {
				downloaded = true
			}
		}
	}
	return false
}
