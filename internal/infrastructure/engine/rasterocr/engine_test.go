package rasterocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type fakeRunner struct {
	pages    int
	tessErr  error
	calls    []string
	renderAt string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		f.renderAt = prefix
		for i := 1; i <= f.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if f.tessErr != nil {
			return nil, []byte("tesseract blew up"), f.tessErr
		}
		base := args[1]
		return nil, nil, os.WriteFile(base+".pdf", []byte("%PDF page"), 0o644)
	default:
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
}

type fakeToolkit struct {
	merged []string
	dst    string
	err    error
}

func (f *fakeToolkit) Validate(string) error            { return nil }
func (f *fakeToolkit) PageCount(string) (int, error)    { return 0, nil }
func (f *fakeToolkit) Bookmarks(string) ([]domain.Bookmark, error) {
	return nil, nil
}
func (f *fakeToolkit) WriteBookmarks(string, []domain.Bookmark) error { return nil }
func (f *fakeToolkit) ExtractPages(string, string, domain.PageRange) error {
	return nil
}
func (f *fakeToolkit) Merge(srcs []string, dst string) error {
	f.merged = srcs
	f.dst = dst
	return f.err
}

func TestRunRasterizesOCRsAndRecombines(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ocr-1.pdf")

	runner := &fakeRunner{pages: 3}
	tk := &fakeToolkit{}
	e := New(runner, tk, "", "", 0)

	if err := e.Run(context.Background(), "in.pdf", out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(tk.merged) != 3 {
		t.Fatalf("merged %d page pdfs, want 3: %v", len(tk.merged), tk.merged)
	}
	if tk.dst != out {
		t.Fatalf("merge destination = %s, want %s", tk.dst, out)
	}
	// pdftoppm once, tesseract once per page.
	var tessCalls int
	for _, c := range runner.calls {
		if c == "tesseract" {
			tessCalls++
		}
	}
	if tessCalls != 3 {
		t.Fatalf("tesseract invoked %d times, want 3", tessCalls)
	}
	// Page workspace is removed after a successful run.
	if _, err := os.Stat(out + ".pages"); !os.IsNotExist(err) {
		t.Fatalf("page workspace survived: %v", err)
	}
}

func TestRunFailsWhenNoPagesRendered(t *testing.T) {
	e := New(&fakeRunner{pages: 0}, &fakeToolkit{}, "", "", 300)
	err := e.Run(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if err == nil || !strings.Contains(err.Error(), "no pages rendered") {
		t.Fatalf("Run() error = %v, want no-pages failure", err)
	}
}

func TestRunSurfacesTesseractFailure(t *testing.T) {
	e := New(&fakeRunner{pages: 2, tessErr: errors.New("exit status 1")}, &fakeToolkit{}, "", "", 300)
	err := e.Run(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if err == nil || !strings.Contains(err.Error(), "tesseract") {
		t.Fatalf("Run() error = %v, want tesseract failure", err)
	}
}
