package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"torno/pkg/models"
)

// HTTPModelClient is an HTTP implementation of the ModelClient interface,
// talking to a model sidecar.
type HTTPModelClient struct {
	url    string
	client *http.Client
}

// NewHTTPModelClient creates a new HTTPModelClient.
func NewHTTPModelClient(url string) *HTTPModelClient {
	return &HTTPModelClient{url: url, client: http.DefaultClient}
}

// Run posts the version configuration and input to the sidecar and decodes
// the produced payload.
func (c *HTTPModelClient) Run(ctx context.Context, version *models.EnrichmentVersion, input map[string]any) (map[string]any, error) {
	requestBody, err := json.Marshal(map[string]any{
		"prompt_template": version.PromptTemplate,
		"model_id":        version.ModelID,
		"parameters":      version.Parameters,
		"input":           input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/v1/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model sidecar returned status %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return result, nil
}

var _ ModelClient = (*HTTPModelClient)(nil)
