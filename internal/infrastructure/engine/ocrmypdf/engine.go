// Package ocrmypdf drives the basic OCR engine: a direct PDF-to-PDF pass
// through the ocrmypdf executable.
package ocrmypdf

import (
	"context"
	"fmt"
	"os"

	"github.com/kirillkom/document-ocr-service/internal/infrastructure/engine"
)

type Engine struct {
	runner engine.Runner
	binary string
}

func New(runner engine.Runner, binary string) *Engine {
	if runner == nil {
		runner = engine.ExecRunner{}
	}
	if binary == "" {
		binary = "ocrmypdf"
	}
	return &Engine{runner: runner, binary: binary}
}

func (e *Engine) Name() string { return "ocrmypdf" }

// Run OCRs inPath into outPath. Re-running with the same arguments is safe:
// ocrmypdf overwrites outPath and the engine keeps no state of its own.
func (e *Engine) Run(ctx context.Context, inPath, outPath string) error {
	_, stderr, err := e.runner.Run(ctx, e.binary,
		"--optimize", "1",
		"--force-ocr",
		"--rotate-pages",
		inPath,
		outPath,
	)
	if err != nil {
		return fmt.Errorf("ocrmypdf %s: %w: %s", inPath, err, engine.FirstLine(stderr))
	}
	if info, statErr := os.Stat(outPath); statErr != nil || info.Size() == 0 {
		return fmt.Errorf("ocrmypdf %s: output missing or empty", inPath)
	}
	return nil
}
