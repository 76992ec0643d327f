// Package registry talks to the file-tracking service that owns file
// identities: it resolves submitted file ids to paths on the shared volume
// and assigns durable ids to every artifact the pipeline produces.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
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
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Lookup(ctx context.Context, fileID string) (*domain.SourceFile, error) {
	var file domain.SourceFile
	err := c.execute(ctx, "registry_lookup", func(ctx context.Context) error {
		return c.getJSON(ctx, "/v1/files/"+url.PathEscape(fileID), &file, "registry_lookup")
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (c *Client) Register(ctx context.Context, runID, path string, kind domain.ArtifactKind) (domain.RegisteredFile, error) {
	payload := map[string]any{
		"run_id":   runID,
		"path":     path,
		"filename": filepath.Base(path),
		"kind":     string(kind),
	}

	var registered domain.RegisteredFile
	err := c.execute(ctx, "registry_register", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/files", payload, &registered, "registry_register")
	})
	if err != nil {
		return domain.RegisteredFile{}, err
	}
	if registered.Path == "" {
		registered.Path = path
	}
	return registered, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return wrapRegistryError(operation, fn(ctx))
	}
	err := c.executor.Execute(ctx, operation, fn, classifyRegistryError)
	return wrapRegistryError(operation, err)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	return c.do(req, out, operation)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, operation)
}

func (c *Client) do(req *http.Request, out any, operation string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
