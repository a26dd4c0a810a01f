package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPReader fetches snapshots from the catalog service's REST API.
type HTTPReader struct {
	baseURL string
	client  *http.Client
}

func NewHTTPReader(baseURL string, timeout time.Duration) *HTTPReader {
	return &HTTPReader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPReader) GetProduct(ctx context.Context, productID int64) (*Snapshot, error) {
	url := fmt.Sprintf("%s/api/v1/products/%d", r.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrProductNotFound
	default:
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	return &snapshot, nil
}
