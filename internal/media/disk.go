// Package media stores uploaded message attachments on the local filesystem
// and hands back the URL path they are served under.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/skillsetu/skillsetu/internal/application"
)

// URLPrefix is the path the HTTP layer serves stored uploads under.
const URLPrefix = "/uploads/message-uploads/"

// maxUploadSize bounds a single attachment at 25 MiB.
const maxUploadSize = 25 << 20

// DiskStore writes uploads beneath a root directory. Filenames are derived
// from the upload time, never from client input.
type DiskStore struct {
	root string
	now  func() time.Time
}

// NewDiskStore creates the root directory if needed and returns a store over
// it.
func NewDiskStore(root string, now func() time.Time) (*DiskStore, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %q: %w", root, err)
	}
	return &DiskStore{root: root, now: now}, nil
}

// Save streams the upload to disk and returns its public URL path.
func (s *DiskStore) Save(ctx context.Context, upload application.MediaUpload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d%s", s.now().UnixNano(), safeExtension(upload.Filename))
	target := filepath.Join(s.root, name)

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}

	// Read one byte past the limit so an oversized upload is detected
	// instead of truncated.
	written, err := io.Copy(file, io.LimitReader(upload.Data, maxUploadSize+1))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if written > maxUploadSize {
		os.Remove(target)
		return "", &application.ValidationError{FieldErrors: map[string]string{
			"file": fmt.Sprintf("file exceeds the %d MiB limit", maxUploadSize>>20),
		}}
	}

	return URLPrefix + name, nil
}

// Root returns the directory uploads are stored under.
func (s *DiskStore) Root() string {
	return s.root
}

// safeExtension keeps only a plausible file extension from the client-supplied
// name, dropping any path components.
func safeExtension(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filepath.ToSlash(filename))))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
