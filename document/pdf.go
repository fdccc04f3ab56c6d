package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	lpdf "github.com/ledongthuc/pdf"
)

var (
	ErrEmptyData      = errors.New("empty document data")
	ErrForeignDoc     = errors.New("document was not produced by this library")
	ErrPageOutOfRange = errors.New("page out of range")
	ErrMalformed      = errors.New("malformed pdf")
)

// Config controls output encoding.
type Config struct {
	// Version is written into the file header, "1.0" through "1.7".
	Version string
	// Compression is the zlib level for streams that have to be re-encoded.
	Compression int
}

func DefaultConfig() Config {
	return Config{Version: "1.7", Compression: 9}
}

// PDF is a parsed document. Its pages stay backed by the original bytes.
type PDF struct {
	data      []byte
	reader    *lpdf.Reader
	pages     []pageNode
	encrypted bool
	// header version of data when this codec wrote it, empty otherwise
	written string
}

// pageNode is a page dictionary together with the attributes it inherits
// from its ancestors in the page tree.
type pageNode struct {
	v       lpdf.Value
	inherit map[string]lpdf.Value
}

func (p *PDF) PageCount() int {
	if p == nil {
		return 0
	}
	return len(p.pages)
}

// sourcePage is one occurrence of a page in an output document.
type sourcePage struct {
	doc   *PDF
	index int
}

// Codec implements Library with github.com/ledongthuc/pdf for reading and
// its own object writer for output.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) *Codec {
	if cfg.Version == "" {
		cfg.Version = DefaultConfig().Version
	}
	return &Codec{cfg: cfg}
}

func (c *Codec) Parse(ctx context.Context, data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parse(data []byte) (doc *PDF, err error) {
	defer recoverMalformed(&err)
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	trailer := r.Trailer()
	root := trailer.Key("Root").Key("Pages")
	if root.Kind() != lpdf.Dict {
		return nil, fmt.Errorf("%w: missing page tree", ErrMalformed)
	}
	doc = &PDF{data: data, reader: r, encrypted: !trailer.Key("Encrypt").IsNull()}
	if err := doc.collect(root, nil, 0); err != nil {
		return nil, err
	}
	return doc, nil
}

// Page attributes a page may inherit from its Pages ancestors.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

const maxTreeDepth = 64

func (p *PDF) collect(node lpdf.Value, inherit map[string]lpdf.Value, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("%w: page tree nested deeper than %d", ErrMalformed, maxTreeDepth)
	}
	switch node.Key("Type").Name() {
	case "Pages":
		next := make(map[string]lpdf.Value, len(inheritable))
		for k, v := range inherit {
			next[k] = v
		}
		for _, k := range inheritable {
			if v := node.Key(k); !v.IsNull() {
				next[k] = v
			}
		}
		kids := node.Key("Kids")
		for i := 0; i < kids.Len(); i++ {
			if err := p.collect(kids.Index(i), next, depth+1); err != nil {
				return err
			}
		}
	case "Page":
		p.pages = append(p.pages, pageNode{v: node, inherit: inherit})
	default:
		// Missing /Type on a leaf is common enough to accept.
		if !node.Key("Contents").IsNull() || !node.Key("MediaBox").IsNull() {
			p.pages = append(p.pages, pageNode{v: node, inherit: inherit})
		}
	}
	return nil
}

func (c *Codec) Validate(doc Document) error {
	p, ok := doc.(*PDF)
	if !ok || p == nil || p.reader == nil {
		return ErrForeignDoc
	}
	return nil
}

func (c *Codec) ExtractPages(doc Document, start, end int) ([]Page, error) {
	if err := c.Validate(doc); err != nil {
		return nil, err
	}
	p := doc.(*PDF)
	if start < 0 || end >= len(p.pages) || start > end {
		return nil, fmt.Errorf("%w: %d..%d of %d", ErrPageOutOfRange, start, end, len(p.pages))
	}
	out := make([]Page, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, sourcePage{doc: p, index: i})
	}
	return out, nil
}

func (c *Codec) NewAssembler() Assembler {
	return &assembler{cfg: c.cfg}
}

func (c *Codec) Encode(ctx context.Context, doc Document, w io.Writer) error {
	if err := c.Validate(doc); err != nil {
		return err
	}
	p := doc.(*PDF)
	if p.written == c.cfg.Version {
		_, err := w.Write(p.data)
		return err
	}
	pages := make([]sourcePage, len(p.pages))
	for i := range pages {
		pages[i] = sourcePage{doc: p, index: i}
	}
	data, err := writePages(ctx, pages, c.cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type assembler struct {
	cfg   Config
	pages []sourcePage
}

func (a *assembler) AppendPages(pages []Page) error {
	batch := make([]sourcePage, 0, len(pages))
	for i, pg := range pages {
		sp, ok := pg.(sourcePage)
		if !ok || sp.doc == nil {
			return fmt.Errorf("append page %d: unexpected page type %T", len(a.pages)+i, pg)
		}
		batch = append(batch, sp)
	}
	a.pages = append(a.pages, batch...)
	return nil
}

func (a *assembler) Document() (Document, error) {
	data, err := writePages(context.Background(), a.pages, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("build combined document: %w", err)
	}
	doc, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("reread combined document: %w", err)
	}
	doc.written = a.cfg.Version
	return doc, nil
}

// The reader reports broken input by panicking.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrMalformed, r)
	}
}
