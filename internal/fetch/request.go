package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// fetchOnce performs a single GET attempt and normalizes the payload.
// Network errors, non-2xx statuses and undecodable bodies are all
// reported the same way; the retry loop does not distinguish them.
func fetchOnce(
	ctx context.Context,
	client *http.Client,
	url string,
	headers map[string]string,
) ([]any, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	list, err := normalizePayload(body)
	if err != nil {
		return nil, nil, err
	}
	return list, json.RawMessage(body), nil
}

// normalizePayload decodes a JSON body into a list of items.
// An object with a "data" key is unwrapped first; anything that is not
// already a list is wrapped in a single-element one.
func normalizePayload(body []byte) ([]any, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if obj, ok := payload.(map[string]any); ok {
		if inner, exists := obj["data"]; exists {
			payload = inner
		}
	}

	if list, ok := payload.([]any); ok {
		return list, nil
	}
	return []any{payload}, nil
}
