// Package storage keeps uploaded diary images outside the database.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("image not found")

// ErrInvalidKey is returned for keys that could escape the store.
var ErrInvalidKey = errors.New("invalid image key")

// Object is an opened image.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ImageStore persists image blobs under opaque keys.
type ImageStore interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// imageExts maps the image types http.DetectContentType reports to the
// extension a key gets. Lookups in both directions go through this table so
// the served type never depends on the host's mime database.
var imageExts = map[string]string{
	"image/avif":               ".avif",
	"image/bmp":                ".bmp",
	"image/gif":                ".gif",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/webp":               ".webp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// NewKey builds a collision-free key that keeps a readable form of the
// uploaded file name: <uuid>_<name><ext>. The client's extension is dropped
// and ext is chosen from contentType, the sniffed type of the bytes.
func NewKey(original, contentType string) string {
	name := SanitizeName(original)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return uuid.NewString() + "_" + name + ImageExt(contentType)
}

// ImageExt returns the key extension for a sniffed image type, or "" for
// types outside the table.
func ImageExt(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return imageExts[strings.ToLower(strings.TrimSpace(mediaType))]
}

// ContentTypeFor is the type served for key. Anything that is not a known
// image extension is served as application/octet-stream.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ext == ".ico" {
		return "image/x-icon"
	}
	for ct, e := range imageExts {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

// SanitizeName reduces an uploaded file name to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "image"
	}
	if r := []rune(out); len(r) > 100 {
		out = string(r[len(r)-100:])
	}
	return out
}

// ValidKey reports whether key is a single path element without traversal.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, "/\\") && !strings.Contains(key, "..")
}
