// Package textcheck inspects merged OCR output for pages that still lack an
// extractable text layer. The result is advisory metadata on the run; it
// never fails the pipeline.
package textcheck

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// PagesWithText counts pages whose text layer yields at least one
// non-whitespace character.
func (v *Verifier) PagesWithText(path string) (withText, total int, err error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open pdf for text check: %w", err)
	}
	defer f.Close()

	total = reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not count as text-bearing.
			continue
		}
		if strings.TrimSpace(text) != "" {
			withText++
		}
	}
	return withText, total, nil
}
