// Package convert calls the external PDF-to-DOCX conversion service. The
// service is optional: when no base URL is configured the formatted DOCX
// rendition is skipped and the pipeline carries on with the OCR PDF alone.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		executor:   executor,
	}
}

func (c *Client) Available() bool {
	return c.baseURL != ""
}

// ConvertToDocx uploads the PDF at pdfPath and writes the returned DOCX
// bytes to docxPath.
func (c *Client) ConvertToDocx(ctx context.Context, pdfPath, docxPath string) error {
	if !c.Available() {
		return wrapUnavailable("convert_docx", fmt.Errorf("converter base url is not configured"))
	}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("read pdf for conversion: %w", err)
	}

	run := func(ctx context.Context) error {
		return c.postPDF(ctx, pdf, filepath.Base(pdfPath), docxPath)
	}
	if c.executor == nil {
		return wrapUnavailableIfNeeded("convert_docx", run(ctx))
	}
	err = c.executor.Execute(ctx, "convert_docx", run, classifyConverterError)
	return wrapUnavailableIfNeeded("convert_docx", err)
}

func (c *Client) postPDF(ctx context.Context, pdf []byte, filename, docxPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/convert", bytes.NewReader(pdf))
	if err != nil {
		return fmt.Errorf("create convert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Filename", filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("converter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  "convert_docx",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	out, err := os.Create(docxPath)
	if err != nil {
		return fmt.Errorf("create docx output: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("write docx output: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("converter returned an empty document")
	}
	return nil
}
