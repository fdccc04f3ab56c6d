package source

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// Identity is the cache key of a source's content. Descriptors with equal
// identities resolve to the same loaded document within a batch.
//
// A file:// URL and a plain path to the same file get different identities:
// they fail with different error kinds and are loaded separately.
type Identity string

var uncomparable atomic.Uint64

// IdentityOf derives the identity of c.
func IdentityOf(c Content) (Identity, error) {
	switch v := c.(type) {
	case DocumentContent:
		return documentIdentity(v), nil
	case BytesContent:
		sum := blake2b.Sum256(v.Data)
		return Identity("bytes:" + hex.EncodeToString(sum[:])), nil
	case PathContent:
		p, err := CanonicalPath(v.Path)
		if err != nil {
			return "", err
		}
		return Identity("file:" + p), nil
	case URLContent:
		if IsFileURL(v.URL) {
			p, err := FileURLPath(v.URL)
			if err != nil {
				return "", err
			}
			return Identity("fileurl:" + p), nil
		}
		s, err := NormalizeURL(v.URL)
		if err != nil {
			return "", err
		}
		return Identity("url:" + s), nil
	default:
		return "", fmt.Errorf("no identity for content %T", c)
	}
}

func documentIdentity(v DocumentContent) Identity {
	rv := reflect.ValueOf(v.Doc)
	if rv.Kind() == reflect.Ptr {
		return Identity(fmt.Sprintf("document:%T:%x", v.Doc, rv.Pointer()))
	}
	// Value handles have no stable address and are never coalesced.
	return Identity(fmt.Sprintf("document:%T:#%d", v.Doc, uncomparable.Add(1)))
}

// foldNormalization is set where the file system treats names that differ
// only in Unicode normalization as the same file.
var foldNormalization = runtime.GOOS == "darwin"

// CanonicalPath returns the absolute, cleaned form of path. On macOS it is
// also NFC-normalized; elsewhere byte-different names stay distinct.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(abs)
	if foldNormalization {
		p = norm.NFC.String(p)
	}
	return p, nil
}

// FileURLPath extracts the canonical local path addressed by a file:// URL.
func FileURLPath(u *url.URL) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file url: %s", u.Redacted())
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return "", fmt.Errorf("file url with remote host %q", u.Host)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("file url has no path")
	}
	return CanonicalPath(filepath.FromSlash(p))
}

// NormalizeURL returns a canonical string for a remote URL: lower-case
// scheme and host, IDNA host, no default port, no fragment, sorted query.
func NormalizeURL(u *url.URL) (string, error) {
	if u == nil {
		return "", fmt.Errorf("nil url")
	}
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Fragment = ""
	n.RawFragment = ""

	host, port := n.Hostname(), n.Port()
	if host != "" && net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("normalize host %q: %w", host, err)
		}
		host = strings.ToLower(ascii)
	}
	if (n.Scheme == "http" && port == "80") || (n.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		n.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		n.Host = "[" + host + "]"
	default:
		n.Host = host
	}

	if n.Path == "" && n.Opaque == "" {
		n.Path = "/"
	}
	if n.RawQuery != "" {
		n.RawQuery = n.Query().Encode()
	}
	return n.String(), nil
}
