package engine

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Upload is one file received in a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MediaStore keeps uploads on disk under Dir and serves them below URLPrefix.
type MediaStore struct {
	Dir       string
	URLPrefix string
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Save writes u under issues/<issueID>/ with a random name and returns the
// relative path.
func (m MediaStore) Save(issueID string, u Upload) (string, error) {
	ct := http.DetectContentType(u.Data)
	ext, ok := imageExt[ct]
	if !ok {
		return "", fmt.Errorf("%s: %w", u.Filename, ErrUnsupportedMedia)
	}
	rel := path.Join("issues", issueID, uuid.NewString()+ext)
	full := filepath.Join(m.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, u.Data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// Remove deletes stored files, ignoring ones already gone.
func (m MediaStore) Remove(rels ...string) {
	for _, rel := range rels {
		_ = os.Remove(filepath.Join(m.Dir, filepath.FromSlash(rel)))
	}
}

// URL turns a stored relative path into the address clients fetch.
func (m MediaStore) URL(rel string) string {
	prefix := m.URLPrefix
	if prefix == "" {
		prefix = "/media/"
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(rel, "/")
}
