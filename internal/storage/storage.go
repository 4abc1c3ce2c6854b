// Package storage keeps uploaded claim documents in a local directory or
// an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrNotFound   = errors.New("object_not_found")
	ErrInvalidKey = errors.New("invalid_object_key")
)

// Store is a flat key/value object store.
type Store interface {
	// Put writes r under key and returns the URL clients use to fetch it.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StoredName builds the object key of an upload: the upload time in unix
// milliseconds, a dash, then the original name with whitespace runs
// replaced by underscores.
func StoredName(unixMilli int64, original string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" {
		base = "file"
	}
	var b strings.Builder
	inSpace := false
	for _, r := range base {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strconv.FormatInt(unixMilli, 10) + "-" + b.String()
}

// KeyFromURL recovers the object key from a URL returned by Put.
func KeyFromURL(url string) string {
	if url == "" {
		return ""
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return path.Base(url)
}

func validKey(key string) error {
	if key == "" || key == "." || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
