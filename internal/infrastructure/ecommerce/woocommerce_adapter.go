package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/erp/bomsync/internal/domain/integration"
)

const (
	// maxWooCommerceResponseSize limits the response body size to prevent memory exhaustion
	maxWooCommerceResponseSize = 10 * 1024 * 1024
	// maxWooCommercePages stops a runaway variation listing
	maxWooCommercePages = 1000

	headerTotalPages = "X-WP-TotalPages"
)

// WooCommerceAdapter implements integration.StockSource against the
// WooCommerce REST API v3
type WooCommerceAdapter struct {
	config     *WooCommerceConfig
	httpClient *http.Client
	limiter    *rate.Limiter

	tenantConfigs map[uuid.UUID]*WooCommerceConfig
	mu            sync.RWMutex
}

// WooCommerceOption configures a WooCommerceAdapter
type WooCommerceOption func(*WooCommerceAdapter)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) WooCommerceOption {
	return func(a *WooCommerceAdapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) WooCommerceOption {
	return func(a *WooCommerceAdapter) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewWooCommerceAdapter creates an adapter. config is the default store used
// for tenants without their own configuration and may be nil.
func NewWooCommerceAdapter(config *WooCommerceConfig, opts ...WooCommerceOption) (*WooCommerceAdapter, error) {
	timeout := time.Duration(DefaultWooCommerceTimeoutSeconds) * time.Second
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	a := &WooCommerceAdapter{
		config:        config,
		httpClient:    &http.Client{Timeout: timeout},
		tenantConfigs: make(map[uuid.UUID]*WooCommerceConfig),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SetTenantConfig sets the store configuration for a specific tenant
func (a *WooCommerceAdapter) SetTenantConfig(tenantID uuid.UUID, config *WooCommerceConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tenantConfigs[tenantID] = config
	return nil
}

// getTenantConfig retrieves the configuration for a tenant
func (a *WooCommerceAdapter) getTenantConfig(tenantID uuid.UUID) (*WooCommerceConfig, error) {
	a.mu.RLock()
	config, ok := a.tenantConfigs[tenantID]
	a.mu.RUnlock()
	if ok {
		return config, nil
	}
	if a.config != nil {
		return a.config, nil
	}
	return nil, integration.ErrPlatformNotConfigured
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetProduct fetches the stock view of a product
func (a *WooCommerceAdapter) GetProduct(ctx context.Context, tenantID uuid.UUID, externalID int64) (*integration.PlatformProduct, error) {
	config, err := a.getTenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	body, _, err := a.doRequest(ctx, config, http.MethodGet, productPath(externalID), nil, nil)
	if err != nil {
		return nil, err
	}

	var product WooCommerceProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if product.ID == 0 {
		return nil, fmt.Errorf("%w: product %d missing id", integration.ErrPlatformInvalidResponse, externalID)
	}
	return product.toPlatformProduct(), nil
}

// ListVariants fetches every variation of a parent product, following pagination
func (a *WooCommerceAdapter) ListVariants(ctx context.Context, tenantID uuid.UUID, parentExternalID int64) ([]integration.PlatformVariant, error) {
	config, err := a.getTenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	path := productPath(parentExternalID) + "/variations"
	variants := make([]integration.PlatformVariant, 0)

	for page := 1; page <= maxWooCommercePages; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(config.PageSize))
		query.Set("page", strconv.Itoa(page))

		body, header, err := a.doRequest(ctx, config, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}

		var batch []WooCommerceVariation
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
		}
		for i := range batch {
			variants = append(variants, batch[i].toPlatformVariant(parentExternalID))
		}

		if !hasNextPage(header, page, len(batch), config.PageSize) {
			break
		}
	}

	return variants, nil
}

// hasNextPage prefers the X-WP-TotalPages header and falls back to a short page
func hasNextPage(header http.Header, page, got, pageSize int) bool {
	if total, err := strconv.Atoi(header.Get(headerTotalPages)); err == nil {
		return page < total
	}
	return got >= pageSize
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// UpdateProductStock writes stock on a product
func (a *WooCommerceAdapter) UpdateProductStock(ctx context.Context, tenantID uuid.UUID, externalID int64, update integration.StockUpdate) error {
	config, err := a.getTenantConfig(tenantID)
	if err != nil {
		return err
	}
	_, _, err = a.doRequest(ctx, config, http.MethodPut, productPath(externalID), nil, newWooCommerceStockPayload(update))
	return err
}

// UpdateVariantStock writes stock on one variation of a parent product
func (a *WooCommerceAdapter) UpdateVariantStock(ctx context.Context, tenantID uuid.UUID, parentExternalID, variantExternalID int64, update integration.StockUpdate) error {
	config, err := a.getTenantConfig(tenantID)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("%s/variations/%d", productPath(parentExternalID), variantExternalID)
	_, _, err = a.doRequest(ctx, config, http.MethodPut, path, nil, newWooCommerceStockPayload(update))
	return err
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

func productPath(externalID int64) string {
	return "/products/" + strconv.FormatInt(externalID, 10)
}

// doRequest performs an authenticated request and classifies failures into
// the integration error classes
func (a *WooCommerceAdapter) doRequest(ctx context.Context, config *WooCommerceConfig, method, path string, query url.Values, payload any) ([]byte, http.Header, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	endpoint := config.endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("woocommerce: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	req.SetBasicAuth(config.ConsumerKey, config.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWooCommerceResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, classifyWooCommerceError(resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

// classifyWooCommerceError maps an HTTP failure to an integration error class
func classifyWooCommerceError(status int, body []byte) error {
	var apiErr WooCommerceError
	_ = json.Unmarshal(body, &apiErr)

	detail := fmt.Sprintf("HTTP %d", status)
	if apiErr.Code != "" {
		detail = fmt.Sprintf("HTTP %d %s: %s", status, apiErr.Code, apiErr.Message)
	}

	switch {
	case status == http.StatusNotFound, strings.HasSuffix(apiErr.Code, "_invalid_id"):
		return fmt.Errorf("%w: %s", integration.ErrPlatformNotFound, detail)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", integration.ErrPlatformAuthFailed, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", integration.ErrPlatformRateLimited, detail)
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", integration.ErrPlatformUnavailable, detail)
	default:
		return fmt.Errorf("%w: %s", integration.ErrPlatformRequestFailed, detail)
	}
}

var _ integration.StockSource = (*WooCommerceAdapter)(nil)
