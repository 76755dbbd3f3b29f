package identinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Abraxas-365/converso/identification"
	"github.com/Abraxas-365/converso/pkg/kernel"
)

// HTTPUpstreamDirectory resuelve identidades contra la API del cliente
// (CRM o core). El contrato esperado:
//
//	GET {base}/v1/identities?identifier=NNN  -> 200 identity | 404
//	GET {base}/v1/identities?phone=NNN       -> 200 identity | 404
type HTTPUpstreamDirectory struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ identification.UpstreamDirectory = (*HTTPUpstreamDirectory)(nil)

func NewHTTPUpstreamDirectory(baseURL, apiKey string) *HTTPUpstreamDirectory {
	return &HTTPUpstreamDirectory{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// LookupByIdentifier busca por documento
func (d *HTTPUpstreamDirectory) LookupByIdentifier(ctx context.Context, tenantID kernel.TenantID, identifier string) (*identification.Identity, error) {
	return d.lookup(ctx, tenantID, url.Values{"identifier": {identifier}})
}

// LookupByPhone busca por teléfono del remitente
func (d *HTTPUpstreamDirectory) LookupByPhone(ctx context.Context, tenantID kernel.TenantID, phone string) (*identification.Identity, error) {
	return d.lookup(ctx, tenantID, url.Values{"phone": {phone}})
}

func (d *HTTPUpstreamDirectory) lookup(ctx context.Context, tenantID kernel.TenantID, params url.Values) (*identification.Identity, error) {
	endpoint := fmt.Sprintf("%s/v1/identities?%s", d.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("X-Tenant-ID", tenantID.String())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call upstream directory: %w", err)
	}
	defer resp.Body.Close()

	// No encontrado no es error: el flujo lo maneja como reintento.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upstream directory returned status %d: %s", resp.StatusCode, string(body))
	}

	var identity identification.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode upstream identity: %w", err)
	}
	return &identity, nil
}
