// internal/analysis/client.go

// Package analysis is the HTTP client for the external document-AI
// collaborator: photo clarity checks, contract data extraction and
// per-document field extraction. Each call is a single request that either
// resolves with data or fails with an error, exactly once; retries stay
// inside this client.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	stderrors "contract-wizard/internal/common/errors"
	commonhttp "contract-wizard/internal/common/http"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/common/metrics"
	"contract-wizard/internal/models"
)

var (
	ErrAnalysisTimeout = errors.New("ANALYSIS_API_TIMEOUT")
	ErrAnalysisFailed  = errors.New("ANALYSIS_REQUEST_FAILED")
)

type Client struct {
	config Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: commonhttp.NewClient(config.Timeout, config.APIKey),
		logger: log.WithFields(map[string]interface{}{"component": "analysis-client"}),
	}
}

// VerifyPhoto runs the clarity check over a contract photo. A transport
// failure is treated by the caller as "not clear".
func (c *Client) VerifyPhoto(ctx context.Context, imageRef string) (*models.PhotoVerification, error) {
	var resp verifyPhotoResponse
	if err := c.post(ctx, "verify-photo", verifyPhotoRequest{ImageRef: imageRef}, &resp); err != nil {
		return nil, err
	}
	return &models.PhotoVerification{
		IsCompleteAndClear: resp.IsCompleteAndClear,
		Reason:             resp.Reason,
	}, nil
}

// ExtractContract extracts structured contract fields from an image.
func (c *Client) ExtractContract(ctx context.Context, imageRef string) (*models.ContractData, error) {
	var resp models.ContractData
	if err := c.post(ctx, "extract-contract", extractContractRequest{ImageRef: imageRef}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExtractDocument extracts identity fields from a document image. An error
// sentinel in the response body is a valid result and comes back as an
// analysis with a non-empty Error, not as a Go error.
func (c *Client) ExtractDocument(ctx context.Context, imageRef string, slot models.SlotKey) (*models.DocumentAnalysis, error) {
	var resp extractDocumentResponse
	req := extractDocumentRequest{ImageRef: imageRef, DocumentKind: string(slot)}
	if err := c.post(ctx, "extract-document", req, &resp); err != nil {
		return nil, err
	}

	return &models.DocumentAnalysis{
		Error:           resp.Error,
		Name:            resp.Name,
		DocumentNumber:  resp.DocumentNumber,
		SecondaryNumber: resp.SecondaryNumber,
		AddressLine:     resp.AddressLine,
		Neighborhood:    resp.Neighborhood,
		City:            resp.City,
		State:           resp.State,
		PostalCode:      resp.PostalCode,
	}, nil
}

// post sends one analysis request with bounded retries and exponential
// backoff. Context expiry maps to the timeout sentinel.
func (c *Client) post(ctx context.Context, operation string, payload, out interface{}) error {
	start := time.Now()
	err := c.doPost(ctx, operation, payload, out)
	metrics.AnalysisDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues(operation, "error").Inc()
		return err
	}
	metrics.AnalysisRequests.WithLabelValues(operation, "ok").Inc()
	return nil
}

func (c *Client) doPost(ctx context.Context, operation string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	url := fmt.Sprintf("%s/api/ai/%s", c.config.BaseURL, operation)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return stderrors.NewAnalysisTimeoutError(operation)
			}
		}

		resp, lastErr = c.client.PostJSON(ctx, url, body)

		// Context expiry during the request means timeout, regardless of
		// how the transport reported it.
		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return stderrors.NewAnalysisTimeoutError(operation)
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		c.logger.Warn("analysis request failed", map[string]interface{}{
			"operation": operation,
			"error":     lastErr.Error(),
		})
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, lastErr)
	}

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unexpected response: %v", ErrAnalysisFailed, err)
	}
	return nil
}
