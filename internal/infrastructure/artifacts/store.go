package artifacts

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

const (
	batchInputPrefix  = "part-"
	batchOutputPrefix = "ocr-"
)

// Store manages the on-disk artifact layout for OCR runs:
//
//	<base>/<file_id>/ocr/<option>/tmp/    ephemeral batch files
//	<base>/<file_id>/ocr/<option>/final/  merged PDF + DOCX renditions
//
// The tmp dir of a run is exclusively owned by that run; final names carry a
// uuid suffix so retried runs never collide.
type Store struct {
	base string
}

func New(base string) (*Store, error) {
	if base == "" {
		base = "./data/files"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact base dir: %w", err)
	}
	return &Store{base: base}, nil
}

func (s *Store) dir(loc domain.ArtifactLocation) string {
	return filepath.Join(s.base, loc.FileID, "ocr", string(loc.Option), string(loc.Phase))
}

func (s *Store) TmpDir(loc domain.ArtifactLocation) (string, error) {
	dir := s.dir(loc.WithPhase(domain.PhaseTmp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}
	return dir, nil
}

func (s *Store) FinalDir(loc domain.ArtifactLocation) (string, error) {
	dir := s.dir(loc.WithPhase(domain.PhaseFinal))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create final dir: %w", err)
	}
	return dir, nil
}

func (s *Store) NewBatchInputPath(loc domain.ArtifactLocation) (string, error) {
	dir, err := s.TmpDir(loc)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, batchInputPrefix+uuid.NewString()+".pdf"), nil
}

// NewBatchOutputPath names the output ocr-<start>-<end>-<uuid>.pdf. The page
// range lives in the filename because a recovered output's provenance must
// survive a worker crash, and merge order depends on it.
func (s *Store) NewBatchOutputPath(loc domain.ArtifactLocation, r domain.PageRange) (string, error) {
	dir, err := s.TmpDir(loc)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%d-%d-%s.pdf", batchOutputPrefix, r.Start, r.End, uuid.NewString())
	return filepath.Join(dir, name), nil
}

func (s *Store) ListBatchOutputs(loc domain.ArtifactLocation) ([]domain.RecoveredBatch, bool, error) {
	batches, err := listBatchOutputs(s.dir(loc.WithPhase(domain.PhaseTmp)))
	if err != nil {
		return nil, false, err
	}
	if len(batches) > 0 {
		return batches, false, nil
	}

	// A prior partial run may have left its batch outputs under the other
	// option's tmp dir. Adapt to whichever layout holds files; never move
	// or rename directories here.
	alt := loc
	alt.Option = siblingOption(loc.Option)
	altBatches, err := listBatchOutputs(s.dir(alt.WithPhase(domain.PhaseTmp)))
	if err != nil {
		return nil, false, err
	}
	if len(altBatches) > 0 {
		slog.Warn("batch outputs found under sibling option dir",
			"run_id", loc.RunID,
			"expected_option", string(loc.Option),
			"actual_option", string(alt.Option),
		)
		return altBatches, true, nil
	}
	return nil, false, nil
}

func listBatchOutputs(dir string) ([]domain.RecoveredBatch, error) {
	paths, err := listPDFs(dir, batchOutputPrefix)
	if err != nil {
		return nil, err
	}
	var out []domain.RecoveredBatch
	for _, p := range paths {
		r, ok := parseBatchOutputName(filepath.Base(p))
		if !ok {
			// An output whose range cannot be recovered cannot be merged
			// in the right place.
			slog.Warn("skipping batch output with unparseable name", "path", p)
			continue
		}
		out = append(out, domain.RecoveredBatch{Range: r, Path: p})
	}
	domain.SortRecoveredByStartPage(out)
	return out, nil
}

// parseBatchOutputName extracts the page range from ocr-<start>-<end>-<uuid>.pdf.
func parseBatchOutputName(name string) (domain.PageRange, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSuffix(name, ".pdf"), batchOutputPrefix)
	parts := strings.SplitN(trimmed, "-", 3)
	if len(parts) < 3 {
		return domain.PageRange{}, false
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return domain.PageRange{}, false
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.PageRange{}, false
	}
	if start < 1 || end < start {
		return domain.PageRange{}, false
	}
	return domain.PageRange{Start: start, End: end}, true
}

func (s *Store) PromoteFinal(loc domain.ArtifactLocation, tmpPath, name string) (string, error) {
	dir, err := s.FinalDir(loc)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		// tmp and final may sit on different filesystems.
		if copyErr := copyFile(tmpPath, dst); copyErr != nil {
			return "", fmt.Errorf("promote artifact: %w", copyErr)
		}
		_ = os.Remove(tmpPath)
	}
	return dst, nil
}

func (s *Store) ExistingFinalPDF(loc domain.ArtifactLocation) (string, bool, error) {
	paths, err := listPDFs(s.dir(loc.WithPhase(domain.PhaseFinal)), batchOutputPrefix)
	if err != nil {
		return "", false, err
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && info.Size() > 0 {
			return p, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) CleanupTmp(loc domain.ArtifactLocation) error {
	dir := s.dir(loc.WithPhase(domain.PhaseTmp))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove tmp dir: %w", err)
	}
	return nil
}

func listPDFs(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".pdf") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

func siblingOption(opt domain.OCROption) domain.OCROption {
	if opt == domain.OptionBasic {
		return domain.OptionAdvanced
	}
	return domain.OptionBasic
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
