package domain

import (
	"fmt"
	"sort"
	"strings"
)

// PageRange is a 1-based inclusive page interval of the source document.
type PageRange struct {
	Start int `json:"start_page"`
	End   int `json:"end_page"`
}

func (r PageRange) Pages() int {
	return r.End - r.Start + 1
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// SplitPages partitions [1,totalPages] into consecutive ranges of at most
// batchSize pages. The last range may be shorter; there are no gaps and no
// overlaps. A non-positive batchSize falls back to a single range.
func SplitPages(totalPages, batchSize int) []PageRange {
	if totalPages <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = totalPages
	}
	ranges := make([]PageRange, 0, (totalPages+batchSize-1)/batchSize)
	for start := 1; start <= totalPages; start += batchSize {
		end := start + batchSize - 1
		if end > totalPages {
			end = totalPages
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges
}

// Batch describes one burst page-range and its temporary PDF on disk.
// Batches are ephemeral: created by the burster, consumed by exactly one
// OCR worker, deleted after a successful merge.
type Batch struct {
	Range PageRange
	Path  string
}

// BatchResult is the terminal outcome of one OCR batch worker.
type BatchResult struct {
	Batch   Batch
	OCRPath string
	Err     error
}

func (r BatchResult) Failed() bool {
	return r.Err != nil
}

// SortResultsByStartPage orders batch results by ascending start page.
// Merge order is load-bearing: completion order and directory listing order
// carry no correctness guarantee.
func SortResultsByStartPage(results []BatchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Batch.Range.Start < results[j].Batch.Range.Start
	})
}

// RecoveredBatch is a prior attempt's OCR batch output found on disk. The
// page range comes from the output filename, which is the only place it
// survives a process crash.
type RecoveredBatch struct {
	Range PageRange
	Path  string
}

// SortRecoveredByStartPage orders recovered outputs by ascending start page,
// for the same reason SortResultsByStartPage exists.
func SortRecoveredByStartPage(batches []RecoveredBatch) {
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].Range.Start < batches[j].Range.Start
	})
}

// MissingTextPages renders the page ranges covered by failed batches as a
// compact string ("11-20,41-45") for run metadata. Pages in these ranges are
// present in the merged PDF but carry no OCR text layer.
func MissingTextPages(results []BatchResult) string {
	var failed []PageRange
	for _, res := range results {
		if res.Failed() {
			failed = append(failed, res.Batch.Range)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Start < failed[j].Start })

	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

// Bookmark is one flattened outline entry of the source PDF.
// Page is 0-based and absolute within the source document.
type Bookmark struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// ProjectBookmarks recomputes bookmark targets for a merged document that
// covers [rangeStart, rangeEnd] (1-based, inclusive) of the source.
// Bookmarks outside the range are dropped; the returned pages are 1-based
// within the merged document. With the full-document range the projection
// is the identity on page numbers.
func ProjectBookmarks(bookmarks []Bookmark, rangeStart, rangeEnd int) []Bookmark {
	out := make([]Bookmark, 0, len(bookmarks))
	for _, bm := range bookmarks {
		if bm.Page < rangeStart-1 || bm.Page >= rangeEnd {
			continue
		}
		out = append(out, Bookmark{
			Level: bm.Level,
			Title: bm.Title,
			Page:  bm.Page - (rangeStart - 1) + 1,
		})
	}
	return out
}
