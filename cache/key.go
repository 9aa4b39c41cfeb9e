package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key is a fixed-width hex digest identifying one entry within a namespace.
type Key string

// String returns the hex digest.
func (k Key) String() string {
	return string(k)
}

// Normalize canonicalises free text so that equivalent queries share a key:
// Unicode NFC, case folding, trimmed, with whitespace runs collapsed to one space.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	// Casers are stateful and must not be shared between goroutines.
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NewKey derives the key for input within namespace.
func NewKey(ns Namespace, input string) Key {
	return digest(ns, Normalize(input))
}

// URLKey derives a content key from a URL. Paths and queries stay case-sensitive.
func URLKey(raw string) Key {
	return digest(NamespaceContent, NormalizeURL(raw))
}

// NormalizeURL lowercases scheme and host, strips default ports and the
// fragment, and gives empty paths a trailing slash. Unparseable input is
// returned trimmed.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func digest(ns Namespace, normalized string) Key {
	h := sha256.New()
	h.Write([]byte(ns))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return Key(hex.EncodeToString(h.Sum(nil)))
}
