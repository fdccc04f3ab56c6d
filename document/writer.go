package document

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
	lpdf "github.com/ledongthuc/pdf"
	"golang.org/x/crypto/blake2b"
)

const (
	catalogNum = 1
	pagesNum   = 2

	maxObjectDepth = 64
)

// Page keys that point back into the source document's structure.
var skipPageKeys = map[string]bool{
	"Type":          true,
	"Parent":        true,
	"Annots":        true,
	"B":             true,
	"StructParents": true,
}

// objectWriter copies page object graphs into a new file. Streams and typed
// dictionaries become indirect objects, interned by content so resources
// shared between pages, or identical across sources, are written once.
type objectWriter struct {
	cfg    Config
	bodies [][]byte
	byHash map[[32]byte]int
}

func writePages(ctx context.Context, pages []sourcePage, cfg Config) (data []byte, err error) {
	defer recoverMalformed(&err)
	w := &objectWriter{
		cfg:    cfg,
		bodies: make([][]byte, pagesNum),
		byHash: make(map[[32]byte]int),
	}
	kids := make([]int, 0, len(pages))
	for i, pg := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num, err := w.page(pg)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		kids = append(kids, num)
	}

	var b bytes.Buffer
	b.WriteString("<</Type /Pages /Kids [")
	for i, k := range kids {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d 0 R", k)
	}
	fmt.Fprintf(&b, "] /Count %d>>", len(kids))
	w.bodies[pagesNum-1] = b.Bytes()
	w.bodies[catalogNum-1] = []byte(fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", pagesNum))
	return w.finish(), nil
}

// page writes a fresh page object on every call, so a page repeated in the
// output keeps its own entry in the page tree.
func (w *objectWriter) page(pg sourcePage) (int, error) {
	node := pg.doc.pages[pg.index]
	entries := make(map[string]lpdf.Value)
	for _, k := range inheritable {
		if v, ok := node.inherit[k]; ok {
			entries[k] = v
		}
	}
	for _, k := range node.v.Keys() {
		if !skipPageKeys[k] {
			entries[k] = node.v.Key(k)
		}
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<</Type /Page /Parent %d 0 R", pagesNum)
	for _, k := range keys {
		b.WriteString(" /" + escapeName(k) + " ")
		if err := w.value(&b, pg.doc, entries[k], 1); err != nil {
			return 0, fmt.Errorf("/%s: %w", k, err)
		}
	}
	b.WriteString(">>")
	return w.add(b.Bytes()), nil
}

func (w *objectWriter) value(b *bytes.Buffer, doc *PDF, v lpdf.Value, depth int) error {
	if depth > maxObjectDepth {
		return fmt.Errorf("%w: objects nested deeper than %d", ErrMalformed, maxObjectDepth)
	}
	switch v.Kind() {
	case lpdf.Null:
		b.WriteString("null")
	case lpdf.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case lpdf.Integer:
		b.WriteString(strconv.FormatInt(v.Int64(), 10))
	case lpdf.Real:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'f', -1, 64))
	case lpdf.String:
		b.WriteByte('<')
		b.WriteString(hex.EncodeToString([]byte(v.RawString())))
		b.WriteByte('>')
	case lpdf.Name:
		b.WriteString("/" + escapeName(v.Name()))
	case lpdf.Array:
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			if err := w.value(b, doc, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case lpdf.Dict:
		switch v.Key("Type").Name() {
		case "Page", "Pages", "Catalog":
			// Never pull another page or the source catalog in through a reference.
			b.WriteString("null")
		case "":
			return w.dict(b, doc, v, depth)
		default:
			var body bytes.Buffer
			if err := w.dict(&body, doc, v, depth); err != nil {
				return err
			}
			fmt.Fprintf(b, "%d 0 R", w.intern(body.Bytes()))
		}
	case lpdf.Stream:
		num, err := w.stream(doc, v, depth)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "%d 0 R", num)
	}
	return nil
}

func (w *objectWriter) dict(b *bytes.Buffer, doc *PDF, v lpdf.Value, depth int) error {
	b.WriteString("<<")
	for i, k := range v.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("/" + escapeName(k) + " ")
		if err := w.value(b, doc, v.Key(k), depth+1); err != nil {
			return err
		}
	}
	b.WriteString(">>")
	return nil
}

func (w *objectWriter) stream(doc *PDF, v lpdf.Value, depth int) (int, error) {
	data, reencoded, err := w.streamData(doc, v)
	if err != nil {
		return 0, err
	}
	var b bytes.Buffer
	b.WriteString("<<")
	for _, k := range v.Keys() {
		if k == "Length" || reencoded && (k == "Filter" || k == "DecodeParms") {
			continue
		}
		b.WriteString("/" + escapeName(k) + " ")
		if err := w.value(&b, doc, v.Key(k), depth+1); err != nil {
			return 0, err
		}
		b.WriteByte(' ')
	}
	if reencoded && w.cfg.Compression != 0 {
		b.WriteString("/Filter /FlateDecode ")
	}
	fmt.Fprintf(&b, "/Length %d>>\nstream\n", len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return w.intern(b.Bytes()), nil
}

// streamData returns the stream bytes as stored when they can be copied
// unchanged. Encrypted sources are decoded and compressed again instead.
func (w *objectWriter) streamData(doc *PDF, v lpdf.Value) ([]byte, bool, error) {
	if !doc.encrypted {
		off, err := streamOffset(v)
		if err != nil {
			return nil, false, err
		}
		n := v.Key("Length").Int64()
		if off < 0 || n < 0 || off+n > int64(len(doc.data)) {
			return nil, false, fmt.Errorf("%w: stream at %d with length %d exceeds file", ErrMalformed, off, n)
		}
		return doc.data[off : off+n], false, nil
	}

	rc := v.Reader()
	defer rc.Close()
	plain, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("decode stream: %w", err)
	}
	if w.cfg.Compression == 0 {
		return plain, true, nil
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, w.cfg.Compression)
	if err != nil {
		return nil, false, err
	}
	if _, err := zw.Write(plain); err != nil {
		return nil, false, err
	}
	if err := zw.Close(); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// The reader only exposes where a stream's data starts through String,
// which formats a stream as "<<header>>@offset".
func streamOffset(v lpdf.Value) (int64, error) {
	s := v.String()
	i := strings.LastIndexByte(s, '@')
	if i < 0 {
		return 0, fmt.Errorf("%w: stream without data offset", ErrMalformed)
	}
	off, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: stream offset %q", ErrMalformed, s[i+1:])
	}
	return off, nil
}

func (w *objectWriter) add(body []byte) int {
	w.bodies = append(w.bodies, body)
	return len(w.bodies)
}

func (w *objectWriter) intern(body []byte) int {
	sum := blake2b.Sum256(body)
	if num, ok := w.byHash[sum]; ok {
		return num
	}
	num := w.add(body)
	w.byHash[sum] = num
	return num
}

func (w *objectWriter) finish() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", w.cfg.Version)
	offsets := make([]int, len(w.bodies))
	for i, body := range w.bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(w.bodies)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d /Root %d 0 R>>\nstartxref\n%d\n%%%%EOF\n",
		len(w.bodies)+1, catalogNum, xrefOffset)
	return buf.Bytes()
}

func escapeName(n string) string {
	var b strings.Builder
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < '!' || c > '~' || strings.IndexByte("#()<>[]{}/%", c) >= 0 {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
