package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]*domain.Run
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*domain.Run)}
}

func (r *fakeRunRepo) Create(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *fakeRunRepo) GetByID(_ context.Context, id string) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRunNotFound, "get run", fmt.Errorf("id=%s", id))
	}
	cp := *run
	return &cp, nil
}

func (r *fakeRunRepo) UpdateStatus(_ context.Context, id string, status domain.RunStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.WrapError(domain.ErrRunNotFound, "update run status", fmt.Errorf("id=%s", id))
	}
	run.Status = status
	run.ErrorMessage = errMessage
	run.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeRunRepo) ListRecent(_ context.Context, limit int) ([]domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFileRepo struct {
	mu         sync.Mutex
	records    map[string]*domain.OCRFile
	registered map[string][]domain.RegisteredFile
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		records:    make(map[string]*domain.OCRFile),
		registered: make(map[string][]domain.RegisteredFile),
	}
}

func pairKey(fileID string, option domain.OCROption) string {
	return fileID + "/" + string(option)
}

func (r *fakeFileRepo) GetOrCreate(_ context.Context, rec *domain.OCRFile) (*domain.OCRFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(rec.FileID, rec.Option)
	if existing, ok := r.records[key]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *rec
	r.records[key] = &cp
	out := cp
	return &out, nil
}

func (r *fakeFileRepo) GetByRunID(_ context.Context, runID string) (*domain.OCRFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.RunID == runID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.WrapError(domain.ErrFileNotFound, "get ocr file by run", fmt.Errorf("run=%s", runID))
}

func (r *fakeFileRepo) GetByFile(_ context.Context, fileID string, option domain.OCROption) (*domain.OCRFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[pairKey(fileID, option)]
	if !ok {
		return nil, domain.WrapError(domain.ErrFileNotFound, "get ocr file", fmt.Errorf("file=%s", fileID))
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeFileRepo) byID(id string) (*domain.OCRFile, error) {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrFileNotFound, "get ocr file", fmt.Errorf("id=%s", id))
}

func (r *fakeFileRepo) UpdateStatus(_ context.Context, id string, status domain.FileStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.byID(id)
	if err != nil {
		return err
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeFileRepo) SetMergedArtifact(_ context.Context, id, ocrPath string, failedBatches int, missingTextPages string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.byID(id)
	if err != nil {
		return err
	}
	rec.OCRPath = ocrPath
	rec.FailedBatches = failedBatches
	rec.MissingTextPages = missingTextPages
	return nil
}

func (r *fakeFileRepo) SetFormattedDocx(_ context.Context, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.byID(id)
	if err != nil {
		return err
	}
	rec.FormattedDocxPath = path
	return nil
}

func (r *fakeFileRepo) SetRawDocx(_ context.Context, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.byID(id)
	if err != nil {
		return err
	}
	rec.RawDocxPath = path
	return nil
}

func (r *fakeFileRepo) SaveRegisteredOutput(_ context.Context, runID string, rf domain.RegisteredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered[runID] = append(r.registered[runID], rf)
	return nil
}

func (r *fakeFileRepo) ListRegisteredOutputs(_ context.Context, runID string) ([]domain.RegisteredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RegisteredFile(nil), r.registered[runID]...), nil
}

type fakeRegistry struct {
	mu         sync.Mutex
	files      map[string]domain.SourceFile
	lookupErr  error
	registered []domain.ArtifactKind
	regErr     error
	nextID     int
}

func (f *fakeRegistry) Lookup(_ context.Context, fileID string) (*domain.SourceFile, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	file, ok := f.files[fileID]
	if !ok {
		return nil, domain.WrapError(domain.ErrFileNotFound, "registry_lookup", fmt.Errorf("file=%s", fileID))
	}
	return &file, nil
}

func (f *fakeRegistry) Register(_ context.Context, _ string, path string, kind domain.ArtifactKind) (domain.RegisteredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regErr != nil {
		return domain.RegisteredFile{}, f.regErr
	}
	f.registered = append(f.registered, kind)
	f.nextID++
	return domain.RegisteredFile{
		FileID:   fmt.Sprintf("reg-%d", f.nextID),
		Filename: filepath.Base(path),
		Path:     path,
	}, nil
}

// fakeToolkit writes the page range into each extracted batch so the fake
// engine can key its behavior off it, and records merge order.
type fakeToolkit struct {
	mu           sync.Mutex
	validateErr  error
	pageCount    int
	pageCountErr error
	bookmarks    []domain.Bookmark
	bookmarksErr error
	writtenBMs   []domain.Bookmark
	writeBMErr   error
	mergedOrder  []string
	mergeErr     error
}

func (t *fakeToolkit) Validate(string) error { return t.validateErr }

func (t *fakeToolkit) PageCount(string) (int, error) {
	if t.pageCountErr != nil {
		return 0, t.pageCountErr
	}
	return t.pageCount, nil
}

func (t *fakeToolkit) ExtractPages(_ string, dst string, r domain.PageRange) error {
	return os.WriteFile(dst, []byte(r.String()), 0o644)
}

func (t *fakeToolkit) Merge(srcs []string, dst string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mergeErr != nil {
		return t.mergeErr
	}
	var parts []string
	for _, src := range srcs {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}
	t.mergedOrder = parts
	return os.WriteFile(dst, []byte(strings.Join(parts, "|")), 0o644)
}

func (t *fakeToolkit) Bookmarks(string) ([]domain.Bookmark, error) {
	if t.bookmarksErr != nil {
		return nil, t.bookmarksErr
	}
	return t.bookmarks, nil
}

func (t *fakeToolkit) WriteBookmarks(_ string, bms []domain.Bookmark) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeBMErr != nil {
		return t.writeBMErr
	}
	t.writtenBMs = bms
	return nil
}

// fakeEngine copies the batch content through and fails configured ranges.
type fakeEngine struct {
	mu         sync.Mutex
	failRanges map[string]bool
	calls      int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Run(_ context.Context, inPath, outPath string) error {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	if e.failRanges[string(data)] {
		return fmt.Errorf("engine failed on pages %s", data)
	}
	return os.WriteFile(outPath, data, 0o644)
}

type fakeStore struct {
	mu      sync.Mutex
	base    string
	counter int
}

func newFakeStore(base string) *fakeStore {
	return &fakeStore{base: base}
}

func (s *fakeStore) dir(loc domain.ArtifactLocation, phase domain.ArtifactPhase) string {
	return filepath.Join(s.base, loc.FileID, "ocr", string(loc.Option), string(phase))
}

func (s *fakeStore) TmpDir(loc domain.ArtifactLocation) (string, error) {
	dir := s.dir(loc, domain.PhaseTmp)
	return dir, os.MkdirAll(dir, 0o755)
}

func (s *fakeStore) FinalDir(loc domain.ArtifactLocation) (string, error) {
	dir := s.dir(loc, domain.PhaseFinal)
	return dir, os.MkdirAll(dir, 0o755)
}

func (s *fakeStore) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("%s%03d.pdf", prefix, s.counter)
}

func (s *fakeStore) NewBatchInputPath(loc domain.ArtifactLocation) (string, error) {
	dir, err := s.TmpDir(loc)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.next("part-")), nil
}

func (s *fakeStore) NewBatchOutputPath(loc domain.ArtifactLocation, r domain.PageRange) (string, error) {
	dir, err := s.TmpDir(loc)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.counter++
	name := fmt.Sprintf("ocr-%d-%d-%03d.pdf", r.Start, r.End, s.counter)
	s.mu.Unlock()
	return filepath.Join(dir, name), nil
}

// ListBatchOutputs hands back glob order on purpose so callers that depend on
// page order have to sort.
func (s *fakeStore) ListBatchOutputs(loc domain.ArtifactLocation) ([]domain.RecoveredBatch, bool, error) {
	paths, _ := filepath.Glob(filepath.Join(s.dir(loc, domain.PhaseTmp), "ocr-*.pdf"))
	var out []domain.RecoveredBatch
	for _, p := range paths {
		trimmed := strings.TrimPrefix(strings.TrimSuffix(filepath.Base(p), ".pdf"), "ocr-")
		parts := strings.SplitN(trimmed, "-", 3)
		if len(parts) < 3 {
			continue
		}
		var r domain.PageRange
		if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &r.Start, &r.End); err != nil {
			continue
		}
		out = append(out, domain.RecoveredBatch{Range: r, Path: p})
	}
	return out, false, nil
}

func (s *fakeStore) PromoteFinal(loc domain.ArtifactLocation, tmpPath, name string) (string, error) {
	dir, err := s.FinalDir(loc)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)
	return dst, os.Rename(tmpPath, dst)
}

func (s *fakeStore) ExistingFinalPDF(loc domain.ArtifactLocation) (string, bool, error) {
	paths, _ := filepath.Glob(filepath.Join(s.dir(loc, domain.PhaseFinal), "ocr-*.pdf"))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Size() > 0 {
			return p, true, nil
		}
	}
	return "", false, nil
}

func (s *fakeStore) CleanupTmp(loc domain.ArtifactLocation) error {
	return os.RemoveAll(s.dir(loc, domain.PhaseTmp))
}

type fakeConverter struct {
	available bool
	err       error
	calls     int
}

func (c *fakeConverter) Available() bool { return c.available }

func (c *fakeConverter) ConvertToDocx(_ context.Context, _, docxPath string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(docxPath, []byte("docx"), 0o644)
}

type fakeRawWriter struct {
	err   error
	calls int
}

func (w *fakeRawWriter) StripToRaw(_, rawPath string) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	return os.WriteFile(rawPath, []byte("raw"), 0o644)
}

type fakeVerifier struct {
	withText int
	total    int
	err      error
}

func (v *fakeVerifier) PagesWithText(string) (int, int, error) {
	return v.withText, v.total, v.err
}

type fakeQueue struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (q *fakeQueue) PublishRunSubmitted(_ context.Context, runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, runID)
	return nil
}

func (q *fakeQueue) SubscribeRunSubmitted(context.Context, func(context.Context, string) error) error {
	return nil
}
