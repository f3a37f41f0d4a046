package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skillsetu/skillsetu/internal/application"
)

func TestDiskStore_Save(t *testing.T) {
	root := t.TempDir()
	at := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	store, err := NewDiskStore(root, func() time.Time { return at })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := store.Save(context.Background(), application.MediaUpload{
		Filename: "photo.PNG",
		Data:     strings.NewReader("fake image bytes"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(url, URLPrefix) {
		t.Fatalf("expected %s prefix, got %q", URLPrefix, url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Fatalf("expected lowercased extension, got %q", url)
	}

	stored, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(url, URLPrefix)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(stored) != "fake image bytes" {
		t.Fatalf("unexpected contents %q", stored)
	}
}

func TestDiskStore_RejectsDuplicateTimestamp(t *testing.T) {
	root := t.TempDir()
	at := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	store, err := NewDiskStore(root, func() time.Time { return at })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upload := application.MediaUpload{Filename: "a.png", Data: strings.NewReader("x")}
	if _, err := store.Save(context.Background(), upload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The clock is frozen, so the second save collides with the first file.
	upload.Data = strings.NewReader("y")
	if _, err := store.Save(context.Background(), upload); err == nil {
		t.Fatal("expected error")
	}
}

func TestDiskStore_RejectsOversizedUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.Save(context.Background(), application.MediaUpload{
		Filename: "huge.png",
		Data:     bytes.NewReader(make([]byte, maxUploadSize+1)),
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["file"]; !ok {
		t.Fatalf("expected file error, got %v", vErr.FieldErrors)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the partial file removed, found %d entries", len(entries))
	}
}

func TestDiskStore_AcceptsUploadAtTheLimit(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := store.Save(context.Background(), application.MediaUpload{
		Filename: "exact.png",
		Data:     bytes.NewReader(make([]byte, maxUploadSize)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, URLPrefix) {
		t.Fatalf("expected %s prefix, got %q", URLPrefix, url)
	}
}

func TestDiskStore_CanceledContext(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Save(ctx, application.MediaUpload{Filename: "a.png", Data: strings.NewReader("x")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSafeExtension(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"photo.png", ".png"},
		{"PHOTO.JPG", ".jpg"},
		{"archive.tar.gz", ".gz"},
		{"../../etc/passwd", ""},
		{"noextension", ""},
		{"trailingdot.", "."},
		{"weird.alongextension", ""},
	}
	for _, tc := range cases {
		if got := safeExtension(tc.filename); got != tc.want {
			t.Errorf("safeExtension(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}
