// Package fp fingerprints manifest entries so duplicate jobs, same
// source landing on the same destination, can be dropped before they
// are enqueued.
package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// NormalizeSource trims surrounding whitespace. Further normalization
// rules (e.g. URL normalization) can be added later as needed.
func NormalizeSource(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeDestPath trims whitespace and cleans the path using
// filepath.Clean, so "/tmp/dir/../file" and "/tmp/file" collapse to
// the same entry.
func NormalizeDestPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}

// Fingerprint computes a stable hex-encoded SHA-256 over the
// normalized source and destination pair.
func Fingerprint(source, destPath string) string {
	ns := NormalizeSource(source)
	nd := NormalizeDestPath(destPath)
	h := sha256.New()
	// Use a separator that cannot be confused; NUL works for all inputs here.
	h.Write([]byte(ns))
	h.Write([]byte{0})
	h.Write([]byte(nd))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
