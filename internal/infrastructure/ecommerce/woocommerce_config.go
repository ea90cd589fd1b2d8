package ecommerce

import (
	"errors"
	"net/url"
	"strings"
)

const (
	// WooCommerceAPIPath is the REST namespace appended to the store URL
	WooCommerceAPIPath = "/wp-json/wc/v3"
	// DefaultWooCommerceTimeoutSeconds is the HTTP timeout used when none is set
	DefaultWooCommerceTimeoutSeconds = 30
	// DefaultWooCommercePageSize is the number of variations requested per page
	DefaultWooCommercePageSize = 100
	// maxWooCommercePageSize is the upper bound accepted by the REST API
	maxWooCommercePageSize = 100
)

// Errors for WooCommerce configuration
var (
	ErrWooCommerceConfigMissingBaseURL        = errors.New("woocommerce: base URL is required")
	ErrWooCommerceConfigInvalidBaseURL        = errors.New("woocommerce: base URL must be an absolute http(s) URL")
	ErrWooCommerceConfigMissingConsumerKey    = errors.New("woocommerce: consumer key is required")
	ErrWooCommerceConfigMissingConsumerSecret = errors.New("woocommerce: consumer secret is required")
)

// WooCommerceConfig holds the credentials of one WooCommerce store
type WooCommerceConfig struct {
	// BaseURL is the store root, e.g. https://shop.example.com
	BaseURL string
	// ConsumerKey is the REST API key (ck_...)
	ConsumerKey string
	// ConsumerSecret is the REST API secret (cs_...)
	ConsumerSecret string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// PageSize is the per_page value used when listing variations
	PageSize int
}

// NewWooCommerceConfig creates a store configuration with defaults
func NewWooCommerceConfig(baseURL, consumerKey, consumerSecret string) *WooCommerceConfig {
	return &WooCommerceConfig{
		BaseURL:        baseURL,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		TimeoutSeconds: DefaultWooCommerceTimeoutSeconds,
		PageSize:       DefaultWooCommercePageSize,
	}
}

// Validate validates the configuration and fills in defaults
func (c *WooCommerceConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrWooCommerceConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrWooCommerceConfigInvalidBaseURL
	}
	if c.ConsumerKey == "" {
		return ErrWooCommerceConfigMissingConsumerKey
	}
	if c.ConsumerSecret == "" {
		return ErrWooCommerceConfigMissingConsumerSecret
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultWooCommerceTimeoutSeconds
	}
	if c.PageSize <= 0 || c.PageSize > maxWooCommercePageSize {
		c.PageSize = DefaultWooCommercePageSize
	}
	return nil
}

// endpoint joins the REST namespace and a resource path
func (c *WooCommerceConfig) endpoint(path string) string {
	return c.BaseURL + WooCommerceAPIPath + path
}
