// Package media stores uploaded images (recipe photos and avatars).
//
// Files are addressed by a key such as "recipes/cs1v8l3a0s7g00fqg3ag.png".
// The database stores only the key; Store.URL turns it into something a
// browser can fetch. Two backends exist:
//
//	LocalStore — files under a directory, served by the API at /media/
//	S3Store    — objects in an S3-compatible bucket
package media

import (
	"context"
	"strings"

	"github.com/rs/xid"
)

// Key prefixes, one per kind of upload.
const (
	PrefixRecipes = "recipes"
	PrefixAvatars = "avatars"
)

// Store is the file lifecycle contract used by the services and the
// offline tools.
type Store interface {
	// Save writes data under key, replacing any existing file.
	Save(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns the public address of key.
	URL(key string) string
}

// NewKey returns a fresh, collision-free key like "avatars/<xid>.jpg".
// xid ids sort by creation time, so a directory listing reads oldest first.
func NewKey(prefix, ext string) string {
	return prefix + "/" + xid.New().String() + "." + strings.TrimPrefix(ext, ".")
}
