// Package document defines the document collaborator used by the combiner and
// a PDF implementation of it that copies page object graphs between files.
package document

import (
	"context"
	"io"
)

// Document is a parsed, page-addressable document.
type Document interface {
	PageCount() int
}

// Page is an opaque page extracted from a Document.
type Page interface{}

// Library parses, slices, assembles and encodes documents.
type Library interface {
	Parse(ctx context.Context, data []byte) (Document, error)
	// Validate reports whether doc is a document this library can read pages from.
	Validate(doc Document) error
	// ExtractPages returns pages start..end inclusive, 0-based.
	ExtractPages(doc Document, start, end int) ([]Page, error)
	NewAssembler() Assembler
	Encode(ctx context.Context, doc Document, w io.Writer) error
}

// Assembler accumulates pages into a new output document.
type Assembler interface {
	AppendPages(pages []Page) error
	Document() (Document, error)
}
