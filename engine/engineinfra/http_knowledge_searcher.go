package engineinfra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Abraxas-365/converso/engine"
)

// HTTPKnowledgeSearcher consulta la capa de conocimiento del cliente.
// Contrato esperado:
//
//	POST {base}/v1/search  {"query": "...", "filters": {...}}  -> 200 {"documents": [...]}
type HTTPKnowledgeSearcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ engine.KnowledgeSearcher = (*HTTPKnowledgeSearcher)(nil)

func NewHTTPKnowledgeSearcher(baseURL, apiKey string) *HTTPKnowledgeSearcher {
	return &HTTPKnowledgeSearcher{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPKnowledgeSearcher) Search(ctx context.Context, query string, filters map[string]any) ([]engine.Document, error) {
	payload, err := json.Marshal(map[string]any{
		"query":   query,
		"filters": filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/search", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call knowledge service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("knowledge service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Documents []engine.Document `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge response: %w", err)
	}
	return result.Documents, nil
}
