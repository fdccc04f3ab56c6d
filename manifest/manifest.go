// Package manifest describes a combine batch in YAML and turns command-line
// arguments into source descriptors.
//
// A manifest lists sources in output order:
//
//	output: book.pdf
//	sources:
//	  - path: cover.pdf
//	  - glob: chapters/**/*.pdf
//	    start: 1
//	  - url: https://example.com/appendix.pdf
//	    end: 3
//
// Relative paths and globs resolve against the manifest's directory. Each glob
// expands to its matches in lexical order, and every match takes the entry's
// page range.
package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfcombine/source"
)

// Manifest is a parsed batch description.
type Manifest struct {
	Output  string  `yaml:"output"`
	Sources []Entry `yaml:"sources"`

	// Dir is the directory relative entries resolve against.
	Dir string `yaml:"-"`
}

// Entry is one source line. Exactly one of Path, URL and Glob is set.
type Entry struct {
	Path  string `yaml:"path,omitempty"`
	URL   string `yaml:"url,omitempty"`
	Glob  string `yaml:"glob,omitempty"`
	Start *int   `yaml:"start,omitempty"`
	End   *int   `yaml:"end,omitempty"`
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	m.Dir = abs
	if m.Output != "" && !filepath.IsAbs(m.Output) {
		m.Output = filepath.Join(abs, m.Output)
	}
	return m, nil
}

// Parse decodes manifest YAML. Dir is left empty, meaning the working directory.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for i, e := range m.Sources {
		if n := e.kinds(); n != 1 {
			return nil, fmt.Errorf("sources[%d]: exactly one of path, url or glob is required, got %d", i, n)
		}
	}
	return &m, nil
}

func (e Entry) kinds() int {
	n := 0
	for _, s := range []string{e.Path, e.URL, e.Glob} {
		if s != "" {
			n++
		}
	}
	return n
}

func (e Entry) options() []source.Option {
	var opts []source.Option
	if e.Start != nil {
		opts = append(opts, source.StartPage(*e.Start))
	}
	if e.End != nil {
		opts = append(opts, source.EndPage(*e.End))
	}
	return opts
}

// Descriptors expands the manifest into descriptors in output order.
func (m *Manifest) Descriptors() ([]source.Descriptor, error) {
	var out []source.Descriptor
	for i, e := range m.Sources {
		contents, err := m.contents(e)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		for _, c := range contents {
			d, err := source.New(c, e.options()...)
			if err != nil {
				return nil, fmt.Errorf("sources[%d]: %w", i, err)
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Manifest) contents(e Entry) ([]source.Content, error) {
	switch {
	case e.URL != "":
		c, err := source.ParseURL(e.URL)
		if err != nil {
			return nil, err
		}
		return []source.Content{c}, nil
	case e.Path != "":
		return []source.Content{source.FromPath(m.resolve(e.Path))}, nil
	default:
		matches, err := doublestar.FilepathGlob(m.resolve(e.Glob))
		if err != nil {
			return nil, fmt.Errorf("glob error: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", e.Glob)
		}
		sort.Strings(matches)
		contents := make([]source.Content, len(matches))
		for i, p := range matches {
			contents[i] = source.FromPath(p)
		}
		return contents, nil
	}
}

func (m *Manifest) resolve(p string) string {
	p = filepath.FromSlash(p)
	if m.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ErrBadRange reports a malformed [start:end] suffix.
var ErrBadRange = errors.New("malformed page range")

// ParseArg turns a command-line source into a descriptor. The argument is a
// path or an http, https or file URL, optionally followed by a zero-based
// inclusive page range: a.pdf[2], a.pdf[0:3], a.pdf[4:], a.pdf[:1]. A
// bracketed suffix that is not made of page numbers, such as scan[v2], is
// part of the name, as is one that opens a URL query value: ?x=[1].
func ParseArg(arg string) (source.Descriptor, error) {
	ref, opts, err := splitRange(arg)
	if err != nil {
		return source.Descriptor{}, fmt.Errorf("%s: %w", arg, err)
	}
	var c source.Content
	if isURL(ref) {
		if c, err = source.ParseURL(ref); err != nil {
			return source.Descriptor{}, err
		}
	} else {
		c = source.FromPath(ref)
	}
	return source.New(c, opts...)
}

// ParseArgs applies ParseArg to each argument in order.
func ParseArgs(args []string) ([]source.Descriptor, error) {
	out := make([]source.Descriptor, 0, len(args))
	for _, a := range args {
		d, err := ParseArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "file":
		return true
	}
	return false
}

// rangeSpec matches what may appear between the brackets of a range suffix.
// Signs are accepted so a negative page is reported as an invalid range.
var rangeSpec = regexp.MustCompile(`^-?\d*(:-?\d*)?$`)

func splitRange(arg string) (string, []source.Option, error) {
	if !strings.HasSuffix(arg, "]") {
		return arg, nil, nil
	}
	open := strings.LastIndexByte(arg, '[')
	if open < 0 {
		return arg, nil, nil
	}
	ref, spec := arg[:open], arg[open+1:len(arg)-1]
	if !rangeSpec.MatchString(spec) || opensQueryValue(ref) {
		return arg, nil, nil
	}
	if open == 0 {
		return "", nil, ErrBadRange
	}

	lo, hi, found := strings.Cut(spec, ":")
	if !found {
		n, err := pageNumber(spec)
		if err != nil || spec == "" {
			return "", nil, ErrBadRange
		}
		return ref, []source.Option{source.Pages(n, n)}, nil
	}

	var opts []source.Option
	if lo != "" {
		n, err := pageNumber(lo)
		if err != nil {
			return "", nil, err
		}
		opts = append(opts, source.StartPage(n))
	}
	if hi != "" {
		n, err := pageNumber(hi)
		if err != nil {
			return "", nil, err
		}
		opts = append(opts, source.EndPage(n))
	}
	return ref, opts, nil
}

// opensQueryValue reports whether a bracket following ref starts the value
// of a URL query parameter.
func opensQueryValue(ref string) bool {
	return strings.HasSuffix(ref, "=") && strings.Contains(ref, "?") && isURL(ref)
}

func pageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a page number", ErrBadRange, s)
	}
	return n, nil
}
