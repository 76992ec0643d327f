package convert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
	"github.com/kirillkom/document-ocr-service/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "converter status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("converter %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("converter %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyConverterError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// wrapUnavailableIfNeeded maps connectivity failures onto the converter
// unavailable kind so the renderer can downgrade them to a skipped rendition.
func wrapUnavailableIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrConverterUnavailable) {
		return err
	}

	if resilience.IsCircuitOpen(err) {
		return wrapUnavailable(operation, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrapUnavailable(operation, err)
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && isRetryableHTTPStatus(statusErr.StatusCode) {
		return wrapUnavailable(operation, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return wrapUnavailable(operation, err)
	}
	return err
}

func wrapUnavailable(operation string, err error) error {
	return domain.WrapError(domain.ErrConverterUnavailable, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
