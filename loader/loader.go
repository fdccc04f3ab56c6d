// Package loader turns source content into parsed documents. It is the only
// place that reads files or downloads remote content.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wudi/pdfcombine/document"
	"github.com/wudi/pdfcombine/errkind"
	"github.com/wudi/pdfcombine/fetch"
	"github.com/wudi/pdfcombine/observability"
	"github.com/wudi/pdfcombine/source"
)

// FileReader reads a local file.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSReader reads from the local filesystem.
type OSReader struct{}

func (OSReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Loaded is a parsed document and its page count.
type Loaded struct {
	Identity source.Identity
	Doc      document.Document
	Pages    int
}

// Loader resolves Content into a Loaded document.
type Loader struct {
	lib     document.Library
	files   FileReader
	fetcher fetch.Fetcher
	logger  observability.Logger
	tracer  observability.Tracer
}

// Option configures a Loader.
type Option func(*Loader)

func WithFileReader(r FileReader) Option        { return func(l *Loader) { l.files = r } }
func WithFetcher(f fetch.Fetcher) Option        { return func(l *Loader) { l.fetcher = f } }
func WithLogger(lg observability.Logger) Option { return func(l *Loader) { l.logger = lg } }
func WithTracer(t observability.Tracer) Option  { return func(l *Loader) { l.tracer = t } }

// New returns a Loader that reads from the OS and fetches with a default
// HTTP fetcher unless overridden.
func New(lib document.Library, opts ...Option) *Loader {
	l := &Loader{
		lib:    lib,
		files:  OSReader{},
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = fetch.New(fetch.DefaultConfig())
	}
	return l
}

// Load produces the document for c. Errors are *errkind.Error.
func (l *Loader) Load(ctx context.Context, c source.Content) (*Loaded, error) {
	id, _ := source.IdentityOf(c)
	return l.LoadAs(ctx, id, c)
}

// LoadAs is Load with the identity supplied by the caller. Value document
// handles get a new identity on every IdentityOf call, so a cache must pass
// the key it stores the result under.
func (l *Loader) LoadAs(ctx context.Context, id source.Identity, c source.Content) (*Loaded, error) {
	ctx, span := l.tracer.StartSpan(ctx, observability.SpanLoad)
	defer span.Finish()

	start := time.Now()
	doc, err := l.load(ctx, c)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag("identity", string(id))
	l.logger.Debug("source loaded",
		observability.String("identity", string(id)),
		observability.Int("pages", doc.PageCount()),
		observability.Duration("took", time.Since(start)),
	)
	return &Loaded{Identity: id, Doc: doc, Pages: doc.PageCount()}, nil
}

func (l *Loader) load(ctx context.Context, c source.Content) (document.Document, error) {
	switch v := c.(type) {
	case source.DocumentContent:
		if v.Doc == nil {
			return nil, errkind.Newf(errkind.InvalidSourceContent, "document handle is nil")
		}
		if err := l.lib.Validate(v.Doc); err != nil {
			return nil, errkind.New(errkind.InvalidSourceContent, err)
		}
		return v.Doc, nil

	case source.BytesContent:
		return l.parse(ctx, v.Data)

	case source.PathContent:
		path, err := filepath.Abs(v.Path)
		if err != nil {
			return nil, errkind.New(errkind.FilePathCannotBeRead, err)
		}
		data, err := l.files.ReadFile(path)
		if err != nil {
			return nil, errkind.New(errkind.FilePathCannotBeRead, err)
		}
		return l.parse(ctx, data)

	case source.URLContent:
		if v.URL == nil {
			return nil, errkind.Newf(errkind.InvalidSourceContent, "url is nil")
		}
		if source.IsFileURL(v.URL) {
			return l.loadFileURL(ctx, v)
		}
		return l.download(ctx, v)

	default:
		return nil, errkind.Newf(errkind.InvalidSourceContent, "unsupported content %T", c)
	}
}

func (l *Loader) loadFileURL(ctx context.Context, v source.URLContent) (document.Document, error) {
	path, err := source.FileURLPath(v.URL)
	if err != nil {
		return nil, errkind.New(errkind.FilePathDoesNotResolveToAValidFileURL, err)
	}
	data, err := l.files.ReadFile(path)
	if err != nil {
		return nil, errkind.New(errkind.FilePathDoesNotResolveToAValidFileURL, err)
	}
	return l.parse(ctx, data)
}

func (l *Loader) download(ctx context.Context, v source.URLContent) (document.Document, error) {
	switch strings.ToLower(v.URL.Scheme) {
	case "http", "https":
	default:
		return nil, errkind.Newf(errkind.URLCannotBeDownloaded, "unsupported scheme %q", v.URL.Scheme)
	}
	raw := v.URL.String()
	data, err := l.fetcher.Fetch(ctx, raw)
	if err != nil {
		l.logger.Debug("fetch failed", observability.String("url", v.URL.Redacted()), observability.Err(err))
		return nil, errkind.New(errkind.URLCannotBeDownloaded, err)
	}
	return l.parse(ctx, data)
}

func (l *Loader) parse(ctx context.Context, data []byte) (document.Document, error) {
	if len(data) == 0 {
		return nil, errkind.New(errkind.InvalidPDFData, document.ErrEmptyData)
	}
	doc, err := l.lib.Parse(ctx, data)
	if err != nil {
		return nil, errkind.New(errkind.InvalidPDFData, err)
	}
	if doc == nil {
		return nil, errkind.New(errkind.InvalidPDFData, errors.New("parser returned no document"))
	}
	return doc, nil
}

func (l *Loaded) String() string {
	return fmt.Sprintf("%s (%d pages)", l.Identity, l.Pages)
}
