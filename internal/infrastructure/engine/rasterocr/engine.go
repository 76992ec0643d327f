// Package rasterocr drives the advanced OCR engine: each page is rasterized
// with pdftoppm, OCR'd with tesseract into a single-page PDF, and the pages
// are recombined. Slower than the direct pass but handles image-and-text
// hybrids the basic engine trips over.
package rasterocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/document-ocr-service/internal/core/ports"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/engine"
)

type Engine struct {
	runner   engine.Runner
	toolkit  ports.PDFToolkit
	pdftoppm string
	tessbin  string
	dpi      int
}

func New(runner engine.Runner, toolkit ports.PDFToolkit, pdftoppm, tessbin string, dpi int) *Engine {
	if runner == nil {
		runner = engine.ExecRunner{}
	}
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if tessbin == "" {
		tessbin = "tesseract"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Engine{
		runner:   runner,
		toolkit:  toolkit,
		pdftoppm: pdftoppm,
		tessbin:  tessbin,
		dpi:      dpi,
	}
}

func (e *Engine) Name() string { return "rasterocr" }

// Run rasterizes inPath, OCRs every page, and recombines into outPath.
// The page workspace lives next to the output so a crashed worker leaves
// its leftovers inside the run's tmp tree, where the merger's cleanup
// removes them.
func (e *Engine) Run(ctx context.Context, inPath, outPath string) error {
	pagesDir := outPath + ".pages"
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return fmt.Errorf("create raster workspace: %w", err)
	}
	defer os.RemoveAll(pagesDir)

	prefix := filepath.Join(pagesDir, "page")
	_, stderr, err := e.runner.Run(ctx, e.pdftoppm,
		"-r", fmt.Sprintf("%d", e.dpi),
		"-png",
		inPath,
		prefix,
	)
	if err != nil {
		return fmt.Errorf("pdftoppm %s: %w: %s", inPath, err, engine.FirstLine(stderr))
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return fmt.Errorf("collect rendered pages: %w", err)
	}
	sort.Strings(images)
	if len(images) == 0 {
		return fmt.Errorf("pdftoppm %s: no pages rendered", inPath)
	}

	pagePDFs := make([]string, 0, len(images))
	for _, img := range images {
		base := strings.TrimSuffix(img, ".png")
		// tesseract appends .pdf to the output base itself.
		_, stderr, err := e.runner.Run(ctx, e.tessbin, img, base, "pdf")
		if err != nil {
			return fmt.Errorf("tesseract %s: %w: %s", img, err, engine.FirstLine(stderr))
		}
		pagePDFs = append(pagePDFs, base+".pdf")
	}

	if err := e.toolkit.Merge(pagePDFs, outPath); err != nil {
		return fmt.Errorf("recombine ocr pages: %w", err)
	}
	return nil
}
