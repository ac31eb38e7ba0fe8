package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Get and Delete for a key with no object.
var ErrNotFound = errors.New("blob not found")

// BlobStore is an opaque object store addressed by key. Put returns the URL
// clients use to fetch the object.
type BlobStore interface {
	Put(ctx context.Context, key, mimeType string, r io.Reader) (url string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// Key joins parts into a slash separated object key ending in the extension
// for mimeType.
func Key(mimeType string, parts ...string) string {
	return path.Join(parts...) + MimeTypeToExt(mimeType)
}

func MimeTypeToExt(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".jpg"
	}
}

func ExtToMimeType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "image/jpeg"
	}
}
