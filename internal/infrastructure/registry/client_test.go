package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

func TestLookupResolvesFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files/abc-123" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.SourceFile{
			ID:       "abc-123",
			Filename: "contract.pdf",
			Path:     "/data/uploads/contract.pdf",
		})
	}))
	defer server.Close()

	client := New(server.URL, nil)
	file, err := client.Lookup(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if file.Path != "/data/uploads/contract.pdf" || file.Filename != "contract.pdf" {
		t.Fatalf("unexpected file: %+v", file)
	}
}

func TestLookupMapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, nil)
	_, err := client.Lookup(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("Lookup() error = %v, want file-not-found kind", err)
	}
}

func TestRegisterSendsArtifactMetadata(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/files" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(domain.RegisteredFile{
			FileID:   "new-id",
			Filename: "ocr-1.pdf",
		})
	}))
	defer server.Close()

	client := New(server.URL, nil)
	rf, err := client.Register(context.Background(), "run-1", "/data/f/ocr/basic/final/ocr-1.pdf", domain.ArtifactOCRPDF)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if rf.FileID != "new-id" {
		t.Fatalf("registered id = %q", rf.FileID)
	}
	// The registry did not echo a path; the local one is kept.
	if rf.Path != "/data/f/ocr/basic/final/ocr-1.pdf" {
		t.Fatalf("registered path = %q", rf.Path)
	}
	if payload["kind"] != "ocr_pdf" || payload["run_id"] != "run-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["filename"] != "ocr-1.pdf" {
		t.Fatalf("payload filename = %v", payload["filename"])
	}
}

func TestRegisterMapsServerErrorToTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, nil)
	_, err := client.Register(context.Background(), "run-1", "/tmp/a.pdf", domain.ArtifactOCRPDF)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("Register() error = %v, want temporary kind", err)
	}
}
