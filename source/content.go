package source

import (
	"net/url"
	"strings"

	"github.com/wudi/pdfcombine/document"
)

// Content is the payload of a Descriptor. It is implemented only by the
// variants in this package.
type Content interface {
	content()
}

// DocumentContent is an already parsed document.
type DocumentContent struct {
	Doc document.Document
}

// BytesContent is an encoded document held in memory.
type BytesContent struct {
	Data []byte
}

// PathContent is a local file path, relative paths resolve against the
// working directory.
type PathContent struct {
	Path string
}

// URLContent is a file:// or remote URL.
type URLContent struct {
	URL *url.URL
}

func (DocumentContent) content() {}
func (BytesContent) content()    {}
func (PathContent) content()     {}
func (URLContent) content()      {}

func FromDocument(doc document.Document) Content { return DocumentContent{Doc: doc} }
func FromBytes(data []byte) Content              { return BytesContent{Data: data} }
func FromPath(path string) Content               { return PathContent{Path: path} }
func FromURL(u *url.URL) Content                 { return URLContent{URL: u} }

// ParseURL parses raw into URLContent.
func ParseURL(raw string) (Content, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return URLContent{URL: u}, nil
}

// IsFileURL reports whether u addresses the local filesystem.
func IsFileURL(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Scheme, "file")
}
