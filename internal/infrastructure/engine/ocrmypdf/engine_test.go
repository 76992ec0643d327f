package ocrmypdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRunner struct {
	calls  [][]string
	stderr []byte
	err    error
	onRun  func(name string, args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.onRun != nil {
		f.onRun(name, args)
	}
	return nil, f.stderr, f.err
}

func TestRunInvokesBinaryWithForcedOCR(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	runner := &fakeRunner{
		onRun: func(_ string, args []string) {
			// The real binary writes the output file; emulate that.
			_ = os.WriteFile(out, []byte("%PDF"), 0o644)
		},
	}
	e := New(runner, "")

	if err := e.Run(context.Background(), "in.pdf", out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("got %d exec calls, want 1", len(runner.calls))
	}
	call := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"ocrmypdf", "--force-ocr", "--rotate-pages", "in.pdf", out} {
		if !strings.Contains(call, want) {
			t.Errorf("call %q missing %q", call, want)
		}
	}
}

func TestRunSurfacesStderrOnFailure(t *testing.T) {
	runner := &fakeRunner{
		err:    errors.New("exit status 2"),
		stderr: []byte("PriorOcrFoundError: page already has text\nmore detail"),
	}
	e := New(runner, "ocrmypdf")

	err := e.Run(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if err == nil {
		t.Fatal("Run() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "PriorOcrFoundError") {
		t.Fatalf("error %q does not carry stderr", err)
	}
	if strings.Contains(err.Error(), "more detail") {
		t.Fatalf("error %q should carry only the first stderr line", err)
	}
}

func TestRunFailsWhenOutputMissing(t *testing.T) {
	// Engine exits 0 but produced nothing.
	e := New(&fakeRunner{}, "ocrmypdf")
	err := e.Run(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	if err == nil || !strings.Contains(err.Error(), "output missing") {
		t.Fatalf("Run() error = %v, want missing-output failure", err)
	}
}
