// Package upstream holds the HTTP plumbing shared by the geocoder and
// indicator provider clients. It maps failures onto the domain error taxonomy.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// maxErrorBody caps how much of a non-2xx body is kept in the error message.
const maxErrorBody = 512

// NewHTTPClient returns a client with the given overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// GetJSON issues a GET and decodes a 2xx JSON body into v. Connection
// failures and non-2xx statuses become *domain.TransportError; an
// undecodable body becomes *domain.MalformedResponseError.
func GetJSON(ctx context.Context, hc *http.Client, op, fullURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.TransportError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &domain.MalformedResponseError{Op: op, Reason: fmt.Sprintf("decode body: %v", err)}
	}
	return nil
}
