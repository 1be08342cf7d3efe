// Package storage keeps uploaded media outside the database and hands back
// the URL clients fetch it from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FolderImages  = "images"
	FolderVideos  = "videos"
	FolderAvatars = "avatars"
)

var ErrNotOwned = errors.New("url does not belong to this store")

type BlobStore interface {
	Put(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
}

// objectKey builds "<folder>/<uuid>-<base name>" so two uploads never collide
// and a client-supplied name cannot escape the folder.
func objectKey(folder, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "_" {
		name = "file"
	}
	return fmt.Sprintf("%s/%s-%s", folder, uuid.NewString(), name)
}
