// Package errkind classifies combine failures.
//
// Every failure surfaced by a batch carries exactly one Kind. Kind values
// implement error so callers can match them with errors.Is:
//
//	if errors.Is(err, errkind.URLCannotBeDownloaded) { ... }
package errkind

import (
	"errors"
	"fmt"
)

// Kind is the classification of a combine failure.
type Kind int

const (
	NoSources Kind = iota
	InvalidSourceContent
	InvalidPDFData
	FilePathCannotBeRead
	FilePathDoesNotResolveToAValidFileURL
	URLCannotBeDownloaded
	InvalidSourceRange
	Unknown
)

var kindNames = map[Kind]string{
	NoSources:                             "no sources",
	InvalidSourceContent:                  "invalid source content",
	InvalidPDFData:                        "invalid pdf data",
	FilePathCannotBeRead:                  "file path cannot be read",
	FilePathDoesNotResolveToAValidFileURL: "file path does not resolve to a valid file url",
	URLCannotBeDownloaded:                 "url cannot be downloaded",
	InvalidSourceRange:                    "invalid source range",
	Unknown:                               "unknown",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error implements error so a bare Kind can be used as a sentinel.
func (k Kind) Error() string { return k.String() }

// NoSource marks an error that is not tied to a particular source position.
const NoSource = -1

// Error is a classified failure, optionally tied to a source position.
type Error struct {
	Kind   Kind
	Source int
	Err    error
}

// New wraps err with kind. err may be nil.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Source: NoSource, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Source != NoSource {
		msg = fmt.Sprintf("source %d: %s", e.Source, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against a bare Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// WithSource returns a copy of e tied to source position idx.
// Positions already set are preserved.
func (e *Error) WithSource(idx int) *Error {
	if e.Source != NoSource {
		return e
	}
	cp := *e
	cp.Source = idx
	return &cp
}

// Of returns the kind of err, or Unknown when err is unclassified.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}

// Classify returns err as an *Error, wrapping unclassified errors as Unknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if k, ok := err.(Kind); ok {
		return New(k, nil)
	}
	return New(Of(err), err)
}
