package source

import "github.com/wudi/pdfcombine/errkind"

// Range is an inclusive, validated page index range.
type Range struct {
	Start int
	End   int
}

// Len is the number of pages in r.
func (r Range) Len() int { return r.End - r.Start + 1 }

// ResolveRange applies d's bounds to a document of pageCount pages.
// A missing start means 0 and a missing end means the last page.
func ResolveRange(pageCount int, d Descriptor) (Range, error) {
	r := Range{Start: 0, End: pageCount - 1}
	if s, ok := d.Start(); ok {
		r.Start = s
	}
	if e, ok := d.End(); ok {
		r.End = e
	}
	switch {
	case r.Start < 0:
		return Range{}, errkind.Newf(errkind.InvalidSourceRange, "start page %d is negative", r.Start)
	case r.End >= pageCount:
		return Range{}, errkind.Newf(errkind.InvalidSourceRange, "end page %d is beyond the last page of a %d page document", r.End, pageCount)
	case r.Start > r.End:
		return Range{}, errkind.Newf(errkind.InvalidSourceRange, "start page %d is after end page %d", r.Start, r.End)
	}
	return r, nil
}
