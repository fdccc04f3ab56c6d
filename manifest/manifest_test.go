package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfcombine/errkind"
	"github.com/wudi/pdfcombine/source"
)

func bounds(d source.Descriptor) (start, end int, hasStart, hasEnd bool) {
	start, hasStart = d.Start()
	end, hasEnd = d.End()
	return
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		arg              string
		wantPath         string
		wantURL          string
		start, end       int
		hasStart, hasEnd bool
	}{
		{arg: "a.pdf", wantPath: "a.pdf"},
		{arg: "a.pdf[0:2]", wantPath: "a.pdf", start: 0, end: 2, hasStart: true, hasEnd: true},
		{arg: "b.pdf[3:]", wantPath: "b.pdf", start: 3, hasStart: true},
		{arg: "c.pdf[:1]", wantPath: "c.pdf", end: 1, hasEnd: true},
		{arg: "d.pdf[4]", wantPath: "d.pdf", start: 4, end: 4, hasStart: true, hasEnd: true},
		{arg: "dir/[draft] e.pdf", wantPath: "dir/[draft] e.pdf"},
		{arg: "dir/[draft] e.pdf[1]", wantPath: "dir/[draft] e.pdf", start: 1, end: 1, hasStart: true, hasEnd: true},
		{arg: "https://example.com/x.pdf[2:5]", wantURL: "https://example.com/x.pdf", start: 2, end: 5, hasStart: true, hasEnd: true},
		{arg: "file:///tmp/y.pdf", wantURL: "file:///tmp/y.pdf"},
		{arg: "scan[v2]", wantPath: "scan[v2]"},
		{arg: "a.pdf[x]", wantPath: "a.pdf[x]"},
		{arg: "a.pdf[1:y]", wantPath: "a.pdf[1:y]"},
		{arg: "https://h/a.pdf?x=[1]", wantURL: "https://h/a.pdf?x=[1]"},
		{arg: "https://h/a.pdf?x=[1][0:2]", wantURL: "https://h/a.pdf?x=[1]", start: 0, end: 2, hasStart: true, hasEnd: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			d, err := ParseArg(tt.arg)
			require.NoError(t, err)
			switch c := d.Content().(type) {
			case source.PathContent:
				assert.Equal(t, tt.wantPath, c.Path)
			case source.URLContent:
				assert.Equal(t, tt.wantURL, c.URL.String())
			default:
				t.Fatalf("unexpected content %T", c)
			}
			start, end, hasStart, hasEnd := bounds(d)
			assert.Equal(t, tt.hasStart, hasStart)
			assert.Equal(t, tt.hasEnd, hasEnd)
			if hasStart {
				assert.Equal(t, tt.start, start)
			}
			if hasEnd {
				assert.Equal(t, tt.end, end)
			}
		})
	}
}

func TestParseArgErrors(t *testing.T) {
	for _, arg := range []string{"a.pdf[]", "a.pdf[-]", "a.pdf[1:-]", "[1:2]"} {
		_, err := ParseArg(arg)
		assert.ErrorIs(t, err, ErrBadRange, arg)
	}

	_, err := ParseArg("a.pdf[3:1]")
	assert.True(t, errors.Is(err, errkind.InvalidSourceRange))
	_, err = ParseArg("a.pdf[-1]")
	assert.True(t, errors.Is(err, errkind.InvalidSourceRange))
}

func TestParseArgs(t *testing.T) {
	ds, err := ParseArgs([]string{"a.pdf", "b.pdf[1]"})
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, source.PathContent{Path: "b.pdf"}, ds[1].Content())

	_, err = ParseArgs([]string{"a.pdf", "b.pdf[]"})
	assert.Error(t, err)
}

func TestParseRequiresOneKind(t *testing.T) {
	_, err := Parse([]byte("sources:\n  - path: a.pdf\n    url: https://example.com/a.pdf\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("sources:\n  - start: 1\n"))
	assert.Error(t, err)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))
}

func TestLoadAndExpand(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "cover.pdf"))
	touch(t, filepath.Join(dir, "chapters", "02", "b.pdf"))
	touch(t, filepath.Join(dir, "chapters", "01", "a.pdf"))
	touch(t, filepath.Join(dir, "chapters", "notes.txt"))

	mf := filepath.Join(dir, "book.yaml")
	require.NoError(t, os.WriteFile(mf, []byte(`
output: out/book.pdf
sources:
  - path: cover.pdf
  - glob: chapters/**/*.pdf
    start: 1
  - url: https://example.com/appendix.pdf
    end: 3
`), 0o644))

	m, err := Load(mf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "book.pdf"), m.Output)

	ds, err := m.Descriptors()
	require.NoError(t, err)
	require.Len(t, ds, 4)

	var paths []string
	for _, d := range ds[:3] {
		paths = append(paths, d.Content().(source.PathContent).Path)
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "cover.pdf"),
		filepath.Join(dir, "chapters", "01", "a.pdf"),
		filepath.Join(dir, "chapters", "02", "b.pdf"),
	}, paths)

	for _, d := range ds[1:3] {
		start, _, hasStart, hasEnd := bounds(d)
		assert.True(t, hasStart)
		assert.False(t, hasEnd)
		assert.Equal(t, 1, start)
	}
	_, end, hasStart, hasEnd := bounds(ds[3])
	assert.False(t, hasStart)
	assert.True(t, hasEnd)
	assert.Equal(t, 3, end)
	assert.Equal(t, "https://example.com/appendix.pdf", ds[3].Content().(source.URLContent).URL.String())
}

func TestDescriptorsEmptyGlob(t *testing.T) {
	m := &Manifest{Dir: t.TempDir(), Sources: []Entry{{Glob: "*.pdf"}}}
	_, err := m.Descriptors()
	assert.ErrorContains(t, err, "no files match")
}

func TestDescriptorsInvalidRange(t *testing.T) {
	start, end := 4, 2
	m := &Manifest{Sources: []Entry{{Path: "a.pdf", Start: &start, End: &end}}}
	_, err := m.Descriptors()
	assert.True(t, errors.Is(err, errkind.InvalidSourceRange))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
