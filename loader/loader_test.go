package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfcombine/errkind"
	"github.com/wudi/pdfcombine/fetch"
	"github.com/wudi/pdfcombine/internal/testutil"
	"github.com/wudi/pdfcombine/source"
)

type unknownContent struct{ source.Content }

func absPath(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	require.NoError(t, err)
	return abs
}

func TestLoadVariants(t *testing.T) {
	lib := &testutil.FakeLibrary{}
	pathA := absPath(t, "fixtures/a.pdf")
	files := testutil.NewFiles().
		Put(pathA, testutil.EncodeFake("a", 3)).
		Put(absPath(t, "fixtures/garbage.pdf"), []byte("garbage"))
	fetcher := testutil.NewFetcher().
		Respond("https://example.com/b.pdf", testutil.Response{Data: testutil.EncodeFake("b", 2)}).
		Respond("https://example.com/empty.pdf", testutil.Response{Data: nil})

	l := New(lib, WithFileReader(files), WithFetcher(fetcher))
	ctx := context.Background()
	urlContent := func(raw string) source.Content {
		c, err := source.ParseURL(raw)
		require.NoError(t, err)
		return c
	}

	handle := &testutil.FakeDoc{Name: "h", Pages: 4}
	tests := []struct {
		name    string
		content source.Content
		pages   int
		kind    errkind.Kind
		wantErr bool
	}{
		{"document handle", source.FromDocument(handle), 4, 0, false},
		{"foreign handle", source.FromDocument(&testutil.Combined{}), 0, errkind.InvalidSourceContent, true},
		{"nil handle", source.DocumentContent{}, 0, errkind.InvalidSourceContent, true},
		{"bytes", source.FromBytes(testutil.EncodeFake("raw", 5)), 5, 0, false},
		{"empty bytes", source.FromBytes(nil), 0, errkind.InvalidPDFData, true},
		{"garbage bytes", source.FromBytes([]byte("nope")), 0, errkind.InvalidPDFData, true},
		{"relative path", source.FromPath("fixtures/a.pdf"), 3, 0, false},
		{"missing path", source.FromPath("fixtures/missing.pdf"), 0, errkind.FilePathCannotBeRead, true},
		{"unparsable file", source.FromPath("fixtures/garbage.pdf"), 0, errkind.InvalidPDFData, true},
		{"file url", source.FromURL(&url.URL{Scheme: "file", Path: filepath.ToSlash(pathA)}), 3, 0, false},
		{"missing file url", source.FromURL(&url.URL{Scheme: "file", Path: "/nowhere/x.pdf"}), 0, errkind.FilePathDoesNotResolveToAValidFileURL, true},
		{"remote host file url", source.FromURL(&url.URL{Scheme: "file", Host: "nas", Path: "/x.pdf"}), 0, errkind.FilePathDoesNotResolveToAValidFileURL, true},
		{"remote url", urlContent("https://example.com/b.pdf"), 2, 0, false},
		{"unreachable url", urlContent("https://unreachable.invalid/x.pdf"), 0, errkind.URLCannotBeDownloaded, true},
		{"empty download", urlContent("https://example.com/empty.pdf"), 0, errkind.InvalidPDFData, true},
		{"unsupported scheme", urlContent("ftp://example.com/x.pdf"), 0, errkind.URLCannotBeDownloaded, true},
		{"nil url", source.URLContent{}, 0, errkind.InvalidSourceContent, true},
		{"unknown content", unknownContent{}, 0, errkind.InvalidSourceContent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Load(ctx, tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.kind), "got %v, want kind %v", err, tt.kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pages, got.Pages)
			assert.Equal(t, tt.pages, got.Doc.PageCount())
			id, err := source.IdentityOf(tt.content)
			require.NoError(t, err)
			assert.Equal(t, id, got.Identity)
		})
	}
}

func TestLoadHandleReturnedAsIs(t *testing.T) {
	handle := &testutil.FakeDoc{Name: "h", Pages: 1}
	got, err := New(&testutil.FakeLibrary{}).Load(context.Background(), source.FromDocument(handle))
	require.NoError(t, err)
	assert.Same(t, handle, got.Doc)
}

func TestLoadAsKeepsCallerIdentity(t *testing.T) {
	handle := &testutil.FakeDoc{Name: "h", Pages: 2}
	content := source.FromDocument(handle)
	id, err := source.IdentityOf(content)
	require.NoError(t, err)

	got, err := New(&testutil.FakeLibrary{}).LoadAs(context.Background(), id, content)
	require.NoError(t, err)
	assert.Equal(t, id, got.Identity)

	_, err = New(&testutil.FakeLibrary{}).LoadAs(context.Background(), "bytes:x", source.FromBytes(nil))
	assert.Equal(t, errkind.InvalidPDFData, errkind.Of(err))
}

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			w.Write(testutil.EncodeFake("remote", 6))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := fetch.New(fetch.DefaultConfig(), fetch.WithLogger(zerolog.Nop()))
	l := New(&testutil.FakeLibrary{}, WithFetcher(f))

	ok, _ := source.ParseURL(srv.URL + "/ok.pdf")
	got, err := l.Load(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Pages)

	missing, _ := source.ParseURL(srv.URL + "/missing.pdf")
	_, err = l.Load(context.Background(), missing)
	require.Error(t, err)
	assert.Equal(t, errkind.URLCannotBeDownloaded, errkind.Of(err))
	var se *fetch.StatusError
	assert.True(t, errors.As(err, &se))
}
