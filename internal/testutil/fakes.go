// Package testutil provides in-memory collaborators and generated PDF fixtures for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wudi/pdfcombine/document"
)

// FakeDoc is a document made of Pages numbered pages.
type FakeDoc struct {
	Name  string
	Pages int
}

func (d *FakeDoc) PageCount() int { return d.Pages }

// FakePage identifies page Index of document Doc.
type FakePage struct {
	Doc   string
	Index int
}

func (p FakePage) String() string { return fmt.Sprintf("%s.page%d", p.Doc, p.Index) }

// EncodeFake returns bytes that FakeLibrary parses into a FakeDoc.
func EncodeFake(name string, pages int) []byte {
	return []byte(fmt.Sprintf("FAKEPDF:%s:%d", name, pages))
}

var ErrNotFake = errors.New("not a fake pdf")

// FakeLibrary implements document.Library over FakeDoc values.
type FakeLibrary struct {
	parses atomic.Int32
}

func (l *FakeLibrary) Parses() int { return int(l.parses.Load()) }

func (l *FakeLibrary) Parse(_ context.Context, data []byte) (document.Document, error) {
	l.parses.Add(1)
	parts := strings.Split(string(data), ":")
	if len(parts) != 3 || parts[0] != "FAKEPDF" {
		return nil, ErrNotFake
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad page count %q", ErrNotFake, parts[2])
	}
	return &FakeDoc{Name: parts[1], Pages: n}, nil
}

func (l *FakeLibrary) Validate(doc document.Document) error {
	if d, ok := doc.(*FakeDoc); !ok || d == nil {
		return ErrNotFake
	}
	return nil
}

func (l *FakeLibrary) ExtractPages(doc document.Document, start, end int) ([]document.Page, error) {
	d, ok := doc.(*FakeDoc)
	if !ok {
		return nil, ErrNotFake
	}
	if start < 0 || end >= d.Pages || start > end {
		return nil, document.ErrPageOutOfRange
	}
	pages := make([]document.Page, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, FakePage{Doc: d.Name, Index: i})
	}
	return pages, nil
}

func (l *FakeLibrary) NewAssembler() document.Assembler { return &FakeAssembler{} }

func (l *FakeLibrary) Encode(_ context.Context, doc document.Document, w io.Writer) error {
	c, ok := doc.(*Combined)
	if !ok {
		return ErrNotFake
	}
	_, err := io.WriteString(w, strings.Join(c.Labels(), ","))
	return err
}

// Combined is the output document produced by FakeAssembler.
type Combined struct {
	Pages []FakePage
}

func (c *Combined) PageCount() int { return len(c.Pages) }

// Labels returns "doc.pageN" for each page in order.
func (c *Combined) Labels() []string {
	out := make([]string, len(c.Pages))
	for i, p := range c.Pages {
		out[i] = p.String()
	}
	return out
}

type FakeAssembler struct {
	pages []FakePage
}

func (a *FakeAssembler) AppendPages(pages []document.Page) error {
	for _, p := range pages {
		fp, ok := p.(FakePage)
		if !ok {
			return ErrNotFake
		}
		a.pages = append(a.pages, fp)
	}
	return nil
}

func (a *FakeAssembler) Document() (document.Document, error) {
	return &Combined{Pages: a.pages}, nil
}

// Files is an in-memory loader.FileReader that counts reads per path.
type Files struct {
	mu    sync.Mutex
	data  map[string][]byte
	reads map[string]int
	// Gate, when set, blocks every read until it is closed.
	Gate chan struct{}
}

func NewFiles() *Files {
	return &Files{data: map[string][]byte{}, reads: map[string]int{}}
}

// Put stores data under the absolute path.
func (f *Files) Put(path string, data []byte) *Files {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[path] = data
	return f
}

func (f *Files) ReadFile(path string) ([]byte, error) {
	if f.Gate != nil {
		<-f.Gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[path]++
	d, ok := f.data[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file or directory", path)
	}
	return d, nil
}

func (f *Files) Reads(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[path]
}

func (f *Files) TotalReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.reads {
		n += c
	}
	return n
}

// Response is a canned Fetcher result.
type Response struct {
	Data []byte
	Err  error
	// Wait, when set, delays the response until it is closed or ctx ends.
	Wait chan struct{}
}

// Fetcher is an in-memory fetch.Fetcher that counts calls per URL.
type Fetcher struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     map[string]int
	cancelled atomic.Int32
}

func NewFetcher() *Fetcher {
	return &Fetcher{responses: map[string]Response{}, calls: map[string]int{}}
}

func (f *Fetcher) Respond(url string, r Response) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = r
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	r, ok := f.responses[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("GET %s: connection refused", url)
	}
	if r.Wait != nil {
		select {
		case <-r.Wait:
		case <-ctx.Done():
			f.cancelled.Add(1)
			return nil, ctx.Err()
		}
	}
	return r.Data, r.Err
}

func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Cancelled is the number of fetches that ended because their context did.
func (f *Fetcher) Cancelled() int { return int(f.cancelled.Load()) }
