package collector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

const (
	// DefaultHTTPTimeout bounds a single provider request.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultPageSize is the number of listings requested per search.
	DefaultPageSize = 100
	// tokenExpirySlack renews the OAuth token this long before expiry.
	tokenExpirySlack = time.Minute
)

// MarketplaceConfig holds provider credentials and endpoints.
type MarketplaceConfig struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	MarketplaceID string
}

// Marketplace queries a listing provider's REST API using OAuth client
// credentials. Safe for concurrent use.
type Marketplace struct {
	cfg        MarketplaceConfig
	httpClient *http.Client
	logger     logger.Interface

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMarketplace creates a marketplace client.
func NewMarketplace(cfg MarketplaceConfig, log logger.Interface) *Marketplace {
	return &Marketplace{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     log,
	}
}

// tokenResponse is the OAuth token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// searchResponse is the provider search payload.
type searchResponse struct {
	Items []searchItem `json:"itemSummaries"`
	Total int          `json:"total"`
}

type searchItem struct {
	ItemID  string `json:"itemId"`
	Title   string `json:"title"`
	ItemURL string `json:"itemWebUrl"`
	Price   struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	ItemEndDate string `json:"itemEndDate"`
}

// Search queries the provider for listings of the given price type
// ("sold" or "ask") matching the query. Authentication, throttling, and
// server failures surface as ErrAuthFailed, ErrRateLimited, and
// TransientError respectively.
func (m *Marketplace) Search(ctx context.Context, q Query, priceType string) ([]Listing, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	keywords := BuildSearchQuery(q)

	params := url.Values{}
	params.Set("q", keywords)
	params.Set("limit", strconv.Itoa(DefaultPageSize))
	if priceType == domain.PriceTypeSold {
		params.Set("filter", "soldItems:true")
	}

	endpoint := strings.TrimRight(m.cfg.BaseURL, "/") + "/item_summary/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Marketplace-Id", m.cfg.MarketplaceID)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, err
	}

	var payload searchResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", decodeErr)
	}

	listings := make([]Listing, 0, len(payload.Items))
	for _, item := range payload.Items {
		priceCents, ok := parsePriceCents(item.Price.Value)
		if !ok {
			m.logger.Warn("Skipping listing with unparseable price",
				"item_id", item.ItemID, "price", item.Price.Value)
			continue
		}

		listing := Listing{
			ExternalID: item.ItemID,
			Title:      item.Title,
			URL:        item.ItemURL,
			PriceCents: priceCents,
			Currency:   item.Price.Currency,
			PriceType:  priceType,
			RawPayload: domain.JSONBMap{
				"itemId":     item.ItemID,
				"title":      item.Title,
				"itemWebUrl": item.ItemURL,
				"price":      item.Price.Value,
				"currency":   item.Price.Currency,
			},
		}
		if item.ItemEndDate != "" {
			if endedAt, parseErr := time.Parse(time.RFC3339, item.ItemEndDate); parseErr == nil {
				listing.EndedAt = &endedAt
			}
		}

		listings = append(listings, listing)
	}

	m.logger.Debug("Provider search completed",
		"query", keywords, "price_type", priceType, "count", len(listings))

	return listings, nil
}

// token returns a valid access token, fetching a new one when the cached
// token is missing or near expiry.
func (m *Marketplace) token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && time.Now().Before(m.tokenExpiry.Add(-tokenExpirySlack)) {
		return m.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString(
		[]byte(m.cfg.ClientID + ":" + m.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("token request failed: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return "", err
	}

	var payload tokenResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return "", fmt.Errorf("failed to decode token response: %w", decodeErr)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token: %w", ErrAuthFailed)
	}

	m.accessToken = payload.AccessToken
	m.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)

	return m.accessToken, nil
}

// classifyStatus maps HTTP status codes to the collector error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("provider returned %d: %w", status, ErrAuthFailed)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("provider returned %d: %w", status, ErrRateLimited)
	case status >= 500:
		return Transient(fmt.Errorf("provider returned %d", status))
	default:
		return fmt.Errorf("provider returned unexpected status %d", status)
	}
}

// parsePriceCents converts a decimal price string to integer cents.
func parsePriceCents(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f*100 + 0.5), true
}
