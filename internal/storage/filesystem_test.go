package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveUpload(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	path, err := store.SaveUpload(context.Background(), "vacation photo.JPG", strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("SaveUpload error: %v", err)
	}
	if filepath.Dir(path) != store.BasePath() {
		t.Fatalf("file landed outside the store: %s", path)
	}
	if !strings.HasSuffix(path, ".JPG") {
		t.Fatalf("extension not preserved: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("content mismatch: %q", data)
	}
}

func TestSaveUploadRejectsUnknownExtension(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := store.SaveUpload(context.Background(), "payload.exe", strings.NewReader("x")); err == nil {
		t.Fatal("expected rejection for .exe upload")
	}
	if _, err := store.SaveUpload(context.Background(), "noext", strings.NewReader("x")); err == nil {
		t.Fatal("expected rejection for extensionless upload")
	}
}

func TestSaveUploadNeutralizesTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	path, err := store.SaveUpload(context.Background(), "../../../../etc/evil.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SaveUpload error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("traversal escaped the store root: %s", path)
	}
}

func TestRemove(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	path, err := store.SaveUpload(context.Background(), "a.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SaveUpload error: %v", err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present after Remove: %v", err)
	}
	// Removing again must stay quiet.
	if err := store.Remove(path); err != nil {
		t.Fatalf("second Remove error: %v", err)
	}
}

func TestAllowedFile(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"diagram.png", true},
		{"loop.gif", true},
		{"clip.mp4", false},
		{"archive.zip", false},
		{"noext", false},
	}
	for _, tc := range cases {
		if got := AllowedFile(tc.name); got != tc.want {
			t.Errorf("AllowedFile(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestContentTypeForName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a.jpg", "image/jpeg"},
		{"a.jpeg", "image/jpeg"},
		{"a.unknown", "image/jpeg"},
	}
	for _, tc := range cases {
		if got := ContentTypeForName(tc.name); got != tc.want {
			t.Errorf("ContentTypeForName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
