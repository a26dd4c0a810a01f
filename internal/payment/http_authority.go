package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPAuthority talks to the payment gateway's REST API.
type HTTPAuthority struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAuthority(baseURL string, timeout time.Duration) *HTTPAuthority {
	return &HTTPAuthority{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type createIntentRequest struct {
	Amount float64 `json:"amount"`
}

type intentResponse struct {
	Ref    string       `json:"ref"`
	Status IntentStatus `json:"status"`
}

func (a *HTTPAuthority) CreateIntent(ctx context.Context, amount float64) (string, error) {
	body, err := json.Marshal(createIntentRequest{Amount: amount})
	if err != nil {
		return "", fmt.Errorf("marshal intent request: %w", err)
	}

	url := a.baseURL + "/api/v1/intents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment authority request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment authority returned status %d", resp.StatusCode)
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode intent response: %w", err)
	}

	return out.Ref, nil
}

func (a *HTTPAuthority) IntentStatus(ctx context.Context, intentRef string) (IntentStatus, error) {
	url := fmt.Sprintf("%s/api/v1/intents/%s", a.baseURL, intentRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment authority request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment authority returned status %d", resp.StatusCode)
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}

	return out.Status, nil
}
