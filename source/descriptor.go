// Package source describes what goes into a combined document: the content of
// each source, the pages wanted from it, and the identity used to coalesce
// repeated sources within a batch.
package source

import (
	"fmt"

	"github.com/wudi/pdfcombine/errkind"
)

// Descriptor is one requested source plus its optional page range.
// Pages are numbered from 0. The zero value is not valid; use New.
type Descriptor struct {
	content  Content
	start    int
	end      int
	hasStart bool
	hasEnd   bool
}

// Option sets a page bound on a Descriptor.
type Option func(*Descriptor)

// StartPage sets the first page to use. Absent means 0.
func StartPage(n int) Option {
	return func(d *Descriptor) { d.start, d.hasStart = n, true }
}

// EndPage sets the last page to use. Absent means the last page of the document.
func EndPage(n int) Option {
	return func(d *Descriptor) { d.end, d.hasEnd = n, true }
}

// Pages sets both bounds, inclusive.
func Pages(start, end int) Option {
	return func(d *Descriptor) {
		StartPage(start)(d)
		EndPage(end)(d)
	}
}

// New validates content and bounds and returns an immutable Descriptor.
// Checks that need the page count are deferred to ResolveRange.
func New(c Content, opts ...Option) (Descriptor, error) {
	d := Descriptor{content: c}
	for _, opt := range opts {
		opt(&d)
	}
	if err := checkContent(c); err != nil {
		return Descriptor{}, err
	}
	if d.hasStart && d.start < 0 {
		return Descriptor{}, errkind.Newf(errkind.InvalidSourceRange, "start page %d is negative", d.start)
	}
	if d.hasEnd && d.end < 0 {
		return Descriptor{}, errkind.Newf(errkind.InvalidSourceRange, "end page %d is negative", d.end)
	}
	if d.hasStart && d.hasEnd && d.start > d.end {
		return Descriptor{}, errkind.Newf(errkind.InvalidSourceRange, "start page %d is after end page %d", d.start, d.end)
	}
	return d, nil
}

// Must is New that panics on error, for literals in tests and examples.
func Must(c Content, opts ...Option) Descriptor {
	d, err := New(c, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func checkContent(c Content) error {
	switch v := c.(type) {
	case nil:
		return errkind.Newf(errkind.InvalidSourceContent, "content is missing")
	case DocumentContent:
		if v.Doc == nil {
			return errkind.Newf(errkind.InvalidSourceContent, "document handle is nil")
		}
	case BytesContent:
		// emptiness is reported as InvalidPDFData when the bytes are parsed
	case PathContent:
		if v.Path == "" {
			return errkind.Newf(errkind.InvalidSourceContent, "file path is empty")
		}
	case URLContent:
		if v.URL == nil {
			return errkind.Newf(errkind.InvalidSourceContent, "url is nil")
		}
	default:
		return errkind.Newf(errkind.InvalidSourceContent, "unsupported content %T", c)
	}
	return nil
}

func (d Descriptor) Content() Content { return d.content }

// Start returns the requested first page and whether it was set.
func (d Descriptor) Start() (int, bool) { return d.start, d.hasStart }

// End returns the requested last page and whether it was set.
func (d Descriptor) End() (int, bool) { return d.end, d.hasEnd }

func (d Descriptor) String() string {
	bound := func(n int, ok bool) string {
		if !ok {
			return ""
		}
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("%s[%s:%s]", describe(d.content), bound(d.start, d.hasStart), bound(d.end, d.hasEnd))
}

func describe(c Content) string {
	switch v := c.(type) {
	case DocumentContent:
		return fmt.Sprintf("document(%d pages)", v.Doc.PageCount())
	case BytesContent:
		return fmt.Sprintf("bytes(%d)", len(v.Data))
	case PathContent:
		return v.Path
	case URLContent:
		return v.URL.Redacted()
	default:
		return fmt.Sprintf("%T", c)
	}
}
