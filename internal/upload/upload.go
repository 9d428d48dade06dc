// Package upload stores user-submitted images under the public directory.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType rejects files that are not jpeg, png, gif or webp images.
	ErrUnsupportedType = errors.New("upload: only image files are allowed (jpeg, jpg, png, gif, webp)")
	// ErrTooLarge rejects files above the configured size limit.
	ErrTooLarge = errors.New("upload: file too large")
)

// Category is the upload sub-folder a file belongs to.
type Category string

const (
	Movies    Category = "movies"
	Actors    Category = "actors"
	Directors Category = "directors"
)

const publicPrefix = "/uploads/"

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Storage writes images below <publicDir>/uploads.
type Storage struct {
	publicDir string
	maxBytes  int64
}

// NewStorage constructs a Storage rooted at publicDir.
func NewStorage(publicDir string, maxBytes int64) *Storage {
	return &Storage{publicDir: publicDir, maxBytes: maxBytes}
}

// MaxBytes reports the per-file limit.
func (s *Storage) MaxBytes() int64 {
	return s.maxBytes
}

// EnsureDirs creates the upload folders for every category.
func (s *Storage) EnsureDirs() error {
	for _, c := range []Category{Movies, Actors, Directors} {
		if err := os.MkdirAll(s.dir(c), 0o755); err != nil {
			return fmt.Errorf("create upload dir %s: %w", c, err)
		}
	}
	return nil
}

// Validate checks the extension, declared content type and size of an upload.
func (s *Storage) Validate(fh *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return ErrUnsupportedType
	}
	contentType := strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type")))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !allowedTypes[contentType] {
		return ErrUnsupportedType
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return ErrTooLarge
	}
	return nil
}

// Save validates and writes the file, returning its public path
// (/uploads/<category>/<name>-<uuid><ext>).
func (s *Storage) Save(category Category, fh *multipart.FileHeader) (string, error) {
	if err := s.Validate(fh); err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.dir(category), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := FileName(fh.Filename)
	dst, err := os.OpenFile(filepath.Join(s.dir(category), name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	reader := io.Reader(src)
	if s.maxBytes > 0 {
		reader = io.LimitReader(src, s.maxBytes+1)
	}
	written, copyErr := io.Copy(dst, reader)
	closeErr := dst.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close upload: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		_ = os.Remove(dst.Name())
		return "", ErrTooLarge
	}
	return publicPrefix + string(category) + "/" + name, nil
}

// SaveAll stores every file or none: on failure, files already written are removed.
func (s *Storage) SaveAll(category Category, files []*multipart.FileHeader) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		p, err := s.Save(category, fh)
		if err != nil {
			s.RemoveAll(paths)
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Remove deletes the file behind a public path. Missing files and paths outside the
// upload folders are ignored.
func (s *Storage) Remove(publicPath string) error {
	local, ok := s.localPath(publicPath)
	if !ok {
		return nil
	}
	if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// RemoveAll removes each path, best effort.
func (s *Storage) RemoveAll(publicPaths []string) {
	for _, p := range publicPaths {
		_ = s.Remove(p)
	}
}

func (s *Storage) dir(category Category) string {
	return filepath.Join(s.publicDir, "uploads", string(category))
}

func (s *Storage) localPath(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, publicPrefix) {
		return "", false
	}
	clean := path.Clean(publicPath)
	if !strings.HasPrefix(clean, publicPrefix) {
		return "", false
	}
	rel := strings.TrimPrefix(clean, "/")
	parts := strings.Split(rel, "/")
	if len(parts) != 3 {
		return "", false
	}
	switch Category(parts[1]) {
	case Movies, Actors, Directors:
	default:
		return "", false
	}
	return filepath.Join(s.publicDir, filepath.FromSlash(rel)), true
}

// FileName builds a collision-free name from the client's file name: whitespace and
// unsafe characters become dashes and a UUID is appended before the extension.
func FileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Trim(unsafeChars.ReplaceAllString(stem, "-"), "-.")
	if stem == "" {
		stem = "image"
	}
	if len(stem) > 64 {
		stem = stem[:64]
	}
	return stem + "-" + uuid.NewString() + ext
}
