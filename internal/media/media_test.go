package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"eduadmin-sync/internal/content"
)

func TestBaseName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"https://cdn.example.com/img/photo.jpg", "photo"},
		{"https://cdn.example.com/img/photo-129.jpg", "photo"},
		{"https://cdn.example.com/img/photo-129.jpg?v=2", "photo"},
		{"https://cdn.example.com/img/course-intro.png", "course-intro"},
		{"https://cdn.example.com/img/2024.png", "2024"},
		{"https://cdn.example.com/img/-12.png", "-12"},
		{"https://cdn.example.com/", ""},
	}

	for _, tc := range testCases {
		if got := BaseName(tc.input); got != tc.expected {
			t.Errorf("BaseName(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestImport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/photo-129.jpg") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jpegbytes"))
	}))
	defer server.Close()

	store := content.NewMemoryStore()
	imp := NewImporter(t.TempDir(), store)

	id, err := imp.Import(context.Background(), server.URL+"/img/photo-129.jpg", "photo")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	found, err := store.FindMediaByTitlePrefix(context.Background(), "photo")
	if err != nil || found != id {
		t.Errorf("Expected media %d registered, got %d (err %v)", id, found, err)
	}

	entries, _ := os.ReadDir(imp.Dir)
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "photo-") || !strings.HasSuffix(entries[0].Name(), ".jpg") {
		t.Errorf("Expected one downloaded photo-*.jpg file, got %v", entries)
	}

	if _, err := imp.Import(context.Background(), server.URL+"/missing.jpg", "missing"); err == nil {
		t.Error("Expected error for 404 image")
	}
}
