package engineinfra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Abraxas-365/converso/engine"
)

// HTTPSchedulingService agenda citas contra la API del cliente.
// Contrato esperado:
//
//	GET  {base}/v1/slots?specialty=X&from=RFC3339     -> 200 {"slots": [...]}
//	POST {base}/v1/bookings {"specialty","slot","person_ref"} -> 200 {"booking_id": "..."}
type HTTPSchedulingService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ engine.SchedulingService = (*HTTPSchedulingService)(nil)

func NewHTTPSchedulingService(baseURL, apiKey string) *HTTPSchedulingService {
	return &HTTPSchedulingService{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPSchedulingService) AvailableSlots(ctx context.Context, specialty string, from time.Time) ([]time.Time, error) {
	params := url.Values{
		"specialty": {specialty},
		"from":      {from.Format(time.RFC3339)},
	}
	endpoint := fmt.Sprintf("%s/v1/slots?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call scheduling service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scheduling service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Slots []time.Time `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode slots response: %w", err)
	}
	return result.Slots, nil
}

func (s *HTTPSchedulingService) Book(ctx context.Context, specialty string, slot time.Time, personRef string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"specialty":  specialty,
		"slot":       slot.Format(time.RFC3339),
		"person_ref": personRef,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal booking request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/bookings", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call scheduling service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("scheduling service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode booking response: %w", err)
	}
	return result.BookingID, nil
}
