package pdfcpukit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

// Toolkit implements ports.PDFToolkit on top of pdfcpu.
type Toolkit struct {
	conf *model.Configuration
}

func New() *Toolkit {
	conf := model.NewDefaultConfiguration()
	// Scanned input is frequently produced by sloppy generators.
	conf.ValidationMode = model.ValidationRelaxed
	return &Toolkit{conf: conf}
}

func (t *Toolkit) Validate(path string) error {
	if _, err := os.Stat(path); err != nil {
		return domain.WrapError(domain.ErrFileNotFound, "validate pdf", err)
	}
	if err := api.ValidateFile(path, t.conf); err != nil {
		return domain.WrapError(domain.ErrNotPDF, "validate pdf", err)
	}
	return nil
}

func (t *Toolkit) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", path, err)
	}
	return n, nil
}

func (t *Toolkit) ExtractPages(src, dst string, r domain.PageRange) error {
	if err := api.TrimFile(src, dst, []string{r.String()}, t.conf); err != nil {
		return fmt.Errorf("extract pages %s of %s: %w", r, src, err)
	}
	return nil
}

func (t *Toolkit) Merge(srcs []string, dst string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("merge: no input files")
	}
	if err := api.MergeCreateFile(srcs, dst, false, t.conf); err != nil {
		return fmt.Errorf("merge %d files into %s: %w", len(srcs), dst, err)
	}
	return nil
}

func (t *Toolkit) Bookmarks(path string) ([]domain.Bookmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for outline: %w", err)
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, t.conf)
	if err != nil {
		// No outline is the common case for scans, not a failure.
		return nil, nil
	}
	return flattenOutline(bms, 1), nil
}

// flattenOutline walks the nested outline depth first into the flat
// (level, title, 0-based page) form the pipeline carries between stages.
func flattenOutline(bms []pdfcpu.Bookmark, level int) []domain.Bookmark {
	var out []domain.Bookmark
	for _, bm := range bms {
		out = append(out, domain.Bookmark{
			Level: level,
			Title: bm.Title,
			Page:  bm.PageFrom - 1,
		})
		if len(bm.Kids) > 0 {
			out = append(out, flattenOutline(bm.Kids, level+1)...)
		}
	}
	return out
}

// WriteBookmarks replaces the outline of path. pdfcpu always writes a fresh
// container, and the temp-then-rename dance keeps a half-written file from
// ever shadowing the merged artifact.
func (t *Toolkit) WriteBookmarks(path string, bookmarks []domain.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}

	tmpPath := filepath.Join(filepath.Dir(path), "outline-"+uuid.NewString()+".pdf")
	if err := api.AddBookmarksFile(path, tmpPath, nestOutline(bookmarks), true, t.conf); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write outline: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace pdf with bookmarked copy: %w", err)
	}
	return nil
}

// nestOutline rebuilds the pdfcpu bookmark tree from the flat level form.
// Entries with page numbers already 1-based (post projection).
func nestOutline(flat []domain.Bookmark) []pdfcpu.Bookmark {
	var roots []pdfcpu.Bookmark
	var stack []*pdfcpu.Bookmark

	for _, bm := range flat {
		node := pdfcpu.Bookmark{Title: bm.Title, PageFrom: bm.Page}

		depth := bm.Level
		if depth < 1 {
			depth = 1
		}
		if depth > len(stack)+1 {
			depth = len(stack) + 1
		}
		stack = stack[:depth-1]

		if len(stack) == 0 {
			roots = append(roots, node)
			stack = append(stack, &roots[len(roots)-1])
			continue
		}
		parent := stack[len(stack)-1]
		parent.Kids = append(parent.Kids, node)
		stack = append(stack, &parent.Kids[len(parent.Kids)-1])
	}
	return roots
}
